package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethercoretech/blockexec/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDirectModeAccountRoundTrip(t *testing.T) {
	db := openTestStore(t)
	addr := common.HexToAddress("0x01")

	_, ok, err := db.GetAccount(addr)
	require.NoError(t, err)
	require.False(t, ok)

	acc := schema.Account{Nonce: 1, Balance: uint256.NewInt(500), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}
	require.NoError(t, db.SetAccount(addr, acc))

	got, ok, err := db.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, acc.Nonce, got.Nonce)
	require.Equal(t, acc.Balance.Uint64(), got.Balance.Uint64())
}

func TestDirectModeDeleteAccount(t *testing.T) {
	db := openTestStore(t)
	addr := common.HexToAddress("0x01")
	require.NoError(t, db.SetAccount(addr, schema.EmptyAccount()))
	require.NoError(t, db.DeleteAccount(addr))
	_, ok, err := db.GetAccount(addr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStorageZeroValueReadsAsAbsent(t *testing.T) {
	db := openTestStore(t)
	addr := common.HexToAddress("0x01")
	var key [32]byte
	key[31] = 1

	v, err := db.GetStorage(addr, key)
	require.NoError(t, err)
	require.Equal(t, [32]byte{}, v)

	var value [32]byte
	value[31] = 42
	require.NoError(t, db.SetStorage(addr, key, value))
	got, err := db.GetStorage(addr, key)
	require.NoError(t, err)
	require.Equal(t, value, got)

	// Writing zero deletes the slot.
	require.NoError(t, db.SetStorage(addr, key, [32]byte{}))
	got, err = db.GetStorage(addr, key)
	require.NoError(t, err)
	require.Equal(t, [32]byte{}, got)
}

func TestTransactionBufferIsolationUntilCommit(t *testing.T) {
	db := openTestStore(t)
	addr := common.HexToAddress("0x01")

	require.NoError(t, db.BeginTransaction())
	acc := schema.Account{Nonce: 1, Balance: uint256.NewInt(10), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}
	require.NoError(t, db.SetAccount(addr, acc))

	// Visible within the transaction.
	got, ok, err := db.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Nonce)

	require.Equal(t, []common.Address{addr}, db.GetChangedAccounts())

	require.NoError(t, db.CommitTransaction())

	got, ok, err = db.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Nonce)
}

func TestTransactionRollbackDiscardsBuffer(t *testing.T) {
	db := openTestStore(t)
	addr := common.HexToAddress("0x01")

	require.NoError(t, db.BeginTransaction())
	require.NoError(t, db.SetAccount(addr, schema.Account{Nonce: 9, Balance: uint256.NewInt(1), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))
	require.NoError(t, db.RollbackTransaction())

	_, ok, err := db.GetAccount(addr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDoubleBeginTransactionFails(t *testing.T) {
	db := openTestStore(t)
	require.NoError(t, db.BeginTransaction())
	err := db.BeginTransaction()
	require.Error(t, err)
	require.NoError(t, db.RollbackTransaction())
}

func TestGetAllStorageMergesBufferedOverlay(t *testing.T) {
	db := openTestStore(t)
	addr := common.HexToAddress("0x01")
	var key1, key2 [32]byte
	key1[31] = 1
	key2[31] = 2
	var val1, val2 [32]byte
	val1[31] = 100
	val2[31] = 200

	require.NoError(t, db.SetStorage(addr, key1, val1))

	require.NoError(t, db.BeginTransaction())
	require.NoError(t, db.SetStorage(addr, key2, val2))

	all, err := db.GetAllStorage(addr)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, val1, all[key1])
	require.Equal(t, val2, all[key2])

	require.NoError(t, db.CommitTransaction())
}

func TestCodeRoundTrip(t *testing.T) {
	db := openTestStore(t)
	entry := schema.NewCodeEntry([]byte{0x60, 0x01})
	require.NoError(t, db.SetCode(entry.CodeHash, entry.Bytecode))

	got, ok, err := db.GetCode(entry.CodeHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Bytecode, got)
}

func TestSaveBlockRequiresActiveTransaction(t *testing.T) {
	db := openTestStore(t)
	block := schema.Block{Header: schema.Header{Number: 1}}
	err := db.SaveBlock(block)
	require.Error(t, err)
}

func TestSaveAndGetBlock(t *testing.T) {
	db := openTestStore(t)
	block := schema.Block{Header: schema.Header{Number: 1, GasLimit: 30_000_000}}

	require.NoError(t, db.BeginTransaction())
	require.NoError(t, db.SaveBlock(block))
	require.NoError(t, db.CommitTransaction())

	got, ok, err := db.GetBlock(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, block.Header.Number, got.Header.Number)
}
