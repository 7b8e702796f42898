package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethercoretech/blockexec/schema"
)

type fakeSource struct {
	accounts map[common.Address]schema.Account
	storage  map[common.Address]map[[32]byte][32]byte
}

func (f *fakeSource) GetAccount(addr common.Address) (schema.Account, bool, error) {
	acc, ok := f.accounts[addr]
	return acc, ok, nil
}

func (f *fakeSource) GetAllStorage(addr common.Address) (map[[32]byte][32]byte, error) {
	return f.storage[addr], nil
}

func TestStorageRootEmptyIsEmptyTrieRoot(t *testing.T) {
	src := &fakeSource{storage: map[common.Address]map[[32]byte][32]byte{}}
	root, err := StorageRoot(src, common.HexToAddress("0x01"))
	require.NoError(t, err)
	require.Equal(t, schema.EmptyTrieRoot, root)
}

func TestStorageRootNonEmpty(t *testing.T) {
	addr := common.HexToAddress("0x01")
	key := uint256.NewInt(1).Bytes32()
	val := uint256.NewInt(42).Bytes32()
	src := &fakeSource{storage: map[common.Address]map[[32]byte][32]byte{
		addr: {key: val},
	}}
	root, err := StorageRoot(src, addr)
	require.NoError(t, err)
	require.NotEqual(t, schema.EmptyTrieRoot, root)
}

func TestStateRootSkipsEmptyAndMissingAccounts(t *testing.T) {
	present := common.HexToAddress("0x01")
	missing := common.HexToAddress("0x02")
	empty := common.HexToAddress("0x03")

	src := &fakeSource{
		accounts: map[common.Address]schema.Account{
			present: {Nonce: 1, Balance: uint256.NewInt(100), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash},
			empty:   schema.EmptyAccount(),
		},
		storage: map[common.Address]map[[32]byte][32]byte{},
	}

	root, err := StateRoot(src, []common.Address{present, missing, empty})
	require.NoError(t, err)
	require.NotEqual(t, schema.EmptyTrieRoot, root)

	rootNoExtras, err := StateRoot(src, []common.Address{present})
	require.NoError(t, err)
	require.Equal(t, root, rootNoExtras)
}

func TestTransactionsRootAndReceiptsRootDeterministic(t *testing.T) {
	to := common.HexToAddress("0x02")
	txs := []schema.Transaction{
		{Nonce: 0, To: &to, Value: uint256.NewInt(1), GasLimit: 21000, GasPrice: schema.DefaultGasPrice},
	}
	root1, err := TransactionsRoot(txs)
	require.NoError(t, err)
	root2, err := TransactionsRoot(txs)
	require.NoError(t, err)
	require.Equal(t, root1, root2)

	receipts := []schema.Receipt{
		{TransactionHash: common.HexToHash("0xaa"), Status: 1, GasUsed: 21000, CumulativeGasUsed: 21000},
	}
	rroot1, err := ReceiptsRoot(receipts)
	require.NoError(t, err)
	rroot2, err := ReceiptsRoot(receipts)
	require.NoError(t, err)
	require.Equal(t, rroot1, rroot2)
}

func TestTransactionsRootEmpty(t *testing.T) {
	root, err := TransactionsRoot(nil)
	require.NoError(t, err)
	require.Equal(t, schema.EmptyTrieRoot, root)
}
