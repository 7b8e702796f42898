package executor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethercoretech/blockexec/schema"
)

// fund writes addr as a fresh account holding balance, via a one-shot
// direct-mode write that replaces any existing record.
func fund(t *testing.T, db interface {
	SetAccount(common.Address, schema.Account) error
}, addr common.Address, balance uint64) {
	t.Helper()
	require.NoError(t, db.SetAccount(addr, schema.Account{
		Balance:     uint256.NewInt(balance),
		StorageRoot: schema.EmptyTrieRoot,
		CodeHash:    schema.EmptyCodeHash,
	}))
}

func TestExecuteBlockPlainTransfer(t *testing.T) {
	db := newTestStore(t)
	from := common.HexToAddress("0x01")
	to := common.HexToAddress("0x1002")
	oneEther := new(uint256.Int).Mul(uint256.NewInt(1_000_000_000), uint256.NewInt(1_000_000_000))
	tenEther := new(uint256.Int).Mul(uint256.NewInt(10), oneEther)
	fund(t, db, from, 0)
	require.NoError(t, db.SetAccount(from, schema.Account{Balance: tenEther, StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))

	tx := schema.Transaction{
		From:     from,
		To:       &to,
		Value:    oneEther,
		GasLimit: 21000,
		GasPrice: schema.DefaultGasPrice,
		Nonce:    0,
	}

	be := NewBlockExecutor(db)
	header := schema.Header{Number: 1, GasLimit: 30_000_000}
	result, err := be.ExecuteBlock(header, []schema.Transaction{tx})
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.SuccessfulTxs)
	require.Equal(t, uint64(0), result.FailedTxs)
	require.Equal(t, uint64(21000), result.TotalGasUsed)
	require.Len(t, result.Receipts, 1)
	require.Equal(t, uint8(1), result.Receipts[0].Status)

	toAcc, ok, err := db.GetAccount(to)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, oneEther.Uint64(), toAcc.Balance.Uint64())

	fromAcc, ok, err := db.GetAccount(from)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), fromAcc.Nonce)

	gasCost := new(uint256.Int).Mul(uint256.NewInt(21000), schema.DefaultGasPrice)
	expected := new(uint256.Int).Sub(tenEther, oneEther)
	expected = new(uint256.Int).Sub(expected, gasCost)
	require.Equal(t, expected.Uint64(), fromAcc.Balance.Uint64())
}

func TestExecuteBlockNonceTooLowAlongsideValidTx(t *testing.T) {
	db := newTestStore(t)
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	c := common.HexToAddress("0x1003")
	require.NoError(t, db.SetAccount(a, schema.Account{Nonce: 5, Balance: uint256.NewInt(1_000_000_000_000_000_000), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))
	require.NoError(t, db.SetAccount(b, schema.Account{Balance: uint256.NewInt(1_000_000_000_000_000_000), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))

	badTx := schema.Transaction{From: a, To: &c, Value: uint256.NewInt(1), GasLimit: 21000, GasPrice: schema.DefaultGasPrice, Nonce: 2}
	goodTx := schema.Transaction{From: b, To: &c, Value: uint256.NewInt(1), GasLimit: 21000, GasPrice: schema.DefaultGasPrice, Nonce: 0}

	be := NewBlockExecutor(db)
	header := schema.Header{Number: 1, GasLimit: 30_000_000}
	result, err := be.ExecuteBlock(header, []schema.Transaction{badTx, goodTx})
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.SuccessfulTxs)
	require.Equal(t, uint64(1), result.FailedTxs)
	require.Len(t, result.Receipts, 1)
}

func TestExecuteBlockThreeTxOneSkipped(t *testing.T) {
	db := newTestStore(t)
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	dest := common.HexToAddress("0x1009")
	require.NoError(t, db.SetAccount(a, schema.Account{Balance: uint256.NewInt(1_000_000_000_000_000_000), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))
	require.NoError(t, db.SetAccount(b, schema.Account{Balance: uint256.NewInt(1_000_000_000_000_000_000), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))

	tx1 := schema.Transaction{From: a, To: &dest, Value: uint256.NewInt(1), GasLimit: 21000, GasPrice: schema.DefaultGasPrice, Nonce: 0}
	tx2 := schema.Transaction{From: b, To: &dest, Value: uint256.NewInt(1), GasLimit: 0} // invalid: zero gas
	tx3 := schema.Transaction{From: b, To: &dest, Value: uint256.NewInt(1), GasLimit: 21000, GasPrice: schema.DefaultGasPrice, Nonce: 0}

	be := NewBlockExecutor(db)
	header := schema.Header{Number: 1, GasLimit: 30_000_000}
	result, err := be.ExecuteBlock(header, []schema.Transaction{tx1, tx2, tx3})
	require.NoError(t, err)
	require.Equal(t, uint64(2), result.SuccessfulTxs)
	require.Equal(t, uint64(1), result.FailedTxs)
	require.Equal(t, uint64(42000), result.TotalGasUsed)
	require.Len(t, result.Receipts, 2)

	got, ok, err := db.GetBlock(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Header.Number)
}

func TestExecuteBlockContractCreation(t *testing.T) {
	db := newTestStore(t)
	deployer := common.HexToAddress("0x01")
	require.NoError(t, db.SetAccount(deployer, schema.Account{Balance: uint256.NewInt(100_000_000_000_000_000), StorageRoot: schema.EmptyTrieRoot, CodeHash: schema.EmptyCodeHash}))

	// Init code that deploys a 5-byte runtime (PUSH1 0 PUSH1 0 RETURN),
	// whose first byte is a PUSH1 opcode (0x60), per the creation seed
	// scenario's "first byte is a PUSH opcode" check:
	//   PUSH5 0x60006000f3; PUSH1 0; MSTORE; PUSH1 5; PUSH1 27; RETURN
	initCode := []byte{
		0x64, 0x60, 0x00, 0x60, 0x00, 0xf3,
		0x60, 0x00,
		0x52,
		0x60, 0x05,
		0x60, 0x1b,
		0xf3,
	}

	tx := schema.Transaction{From: deployer, Data: initCode, GasLimit: 2_000_000, GasPrice: schema.DefaultGasPrice, Nonce: 0}

	be := NewBlockExecutor(db)
	header := schema.Header{Number: 1, GasLimit: 30_000_000}
	result, err := be.ExecuteBlock(header, []schema.Transaction{tx})
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.SuccessfulTxs)
	require.NotNil(t, result.ExecutionResults[0].ContractAddress)

	contractAddr := *result.ExecutionResults[0].ContractAddress
	acc, ok, err := db.GetAccount(contractAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, schema.EmptyCodeHash, acc.CodeHash)

	code, ok, err := db.GetCode(acc.CodeHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0x60), code[0])
}
