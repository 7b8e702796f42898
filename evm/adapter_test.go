package evm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethercoretech/blockexec/store"
)

func newTestAdapter(t *testing.T) (*Adapter, *store.Store) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.BeginTransaction())
	t.Cleanup(func() { _ = db.RollbackTransaction() })
	return NewAdapter(db, func(uint64) common.Hash { return common.Hash{} }), db
}

func TestAdapterBalanceMutationsAndJournal(t *testing.T) {
	a, _ := newTestAdapter(t)
	addr := common.HexToAddress("0x01")

	snap := a.Snapshot()
	a.AddBalance(addr, uint256.NewInt(100), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint64(100), a.GetBalance(addr).Uint64())

	a.SubBalance(addr, uint256.NewInt(40), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint64(60), a.GetBalance(addr).Uint64())

	a.RevertToSnapshot(snap)
	require.True(t, a.GetBalance(addr).IsZero())
}

func TestAdapterNonceAndCode(t *testing.T) {
	a, _ := newTestAdapter(t)
	addr := common.HexToAddress("0x01")

	a.SetNonce(addr, 5)
	require.Equal(t, uint64(5), a.GetNonce(addr))

	code := []byte{0x60, 0x01, 0x60, 0x02}
	a.SetCode(addr, code)
	require.Equal(t, code, a.GetCode(addr))
	require.Equal(t, len(code), a.GetCodeSize(addr))
	require.NotEqual(t, schemaEmptyCodeHash, a.GetCodeHash(addr))
}

func TestAdapterStorageDirtyTracking(t *testing.T) {
	a, _ := newTestAdapter(t)
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x01")
	value := common.HexToHash("0x2a")

	require.Equal(t, common.Hash{}, a.GetState(addr, key))
	a.SetState(addr, key, value)
	require.Equal(t, value, a.GetState(addr, key))
	require.True(t, a.accounts[addr].dirtyStorage[key])
}

func TestAdapterSnapshotRevertUndoesStorage(t *testing.T) {
	a, _ := newTestAdapter(t)
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x01")

	snap := a.Snapshot()
	a.SetState(addr, key, common.HexToHash("0x1"))
	a.RevertToSnapshot(snap)
	require.Equal(t, common.Hash{}, a.GetState(addr, key))
}

func TestAdapterSelfDestruct6780RequiresSameTxCreation(t *testing.T) {
	a, _ := newTestAdapter(t)
	addr := common.HexToAddress("0x01")

	// Not created this tx: Selfdestruct6780 is a no-op.
	a.Selfdestruct6780(addr)
	require.False(t, a.HasSelfDestructed(addr))

	a.CreateAccount(addr)
	a.Selfdestruct6780(addr)
	require.True(t, a.HasSelfDestructed(addr))
}

func TestAdapterAccessList(t *testing.T) {
	a, _ := newTestAdapter(t)
	addr := common.HexToAddress("0x01")
	slot := common.HexToHash("0x01")

	require.False(t, a.AddressInAccessList(addr))
	a.AddSlotToAccessList(addr, slot)
	require.True(t, a.AddressInAccessList(addr))
	inAddr, inSlot := a.SlotInAccessList(addr, slot)
	require.True(t, inAddr)
	require.True(t, inSlot)
}
