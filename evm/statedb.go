package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// The methods below implement github.com/ethereum/go-ethereum/core/vm's
// StateDB interface so that vm.NewEVM can drive this adapter directly. Every
// mutation pushes an undo closure onto the journal so Snapshot/RevertToSnapshot
// can discard a reverted call frame's writes without touching the store.

func (a *Adapter) CreateAccount(addr common.Address) {
	ov := a.overlay(addr)
	prevInfo := ov.info
	a.pushJournal(func() { ov.info = prevInfo })
	ov.info = AccountInfo{Balance: ov.info.Balance, Nonce: 0, CodeHash: schemaEmptyCodeHash}
	a.createdTx[addr] = true
}

func (a *Adapter) CreateContract(addr common.Address) {
	// Bytecode and code hash are installed by SetCode once the
	// interpreter finishes running the init code; nothing to do here
	// beyond marking the account as touched.
	a.overlay(addr).touched = true
}

func (a *Adapter) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	if amount.IsZero() {
		return
	}
	ov := a.overlay(addr)
	prev := ov.info.Balance.Clone()
	a.pushJournal(func() { ov.info.Balance = prev })
	ov.info.Balance = new(uint256.Int).Sub(ov.info.Balance, amount)
	ov.touched = true
}

func (a *Adapter) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	if amount.IsZero() {
		return
	}
	ov := a.overlay(addr)
	prev := ov.info.Balance.Clone()
	a.pushJournal(func() { ov.info.Balance = prev })
	ov.info.Balance = new(uint256.Int).Add(ov.info.Balance, amount)
	ov.touched = true
}

func (a *Adapter) GetBalance(addr common.Address) *uint256.Int {
	return a.overlay(addr).info.Balance
}

func (a *Adapter) GetNonce(addr common.Address) uint64 {
	return a.overlay(addr).info.Nonce
}

func (a *Adapter) SetNonce(addr common.Address, nonce uint64) {
	ov := a.overlay(addr)
	prev := ov.info.Nonce
	a.pushJournal(func() { ov.info.Nonce = prev })
	ov.info.Nonce = nonce
	ov.touched = true
}

func (a *Adapter) GetCodeHash(addr common.Address) common.Hash {
	return a.overlay(addr).info.CodeHash
}

func (a *Adapter) GetCode(addr common.Address) []byte {
	ov := a.overlay(addr)
	if ov.codeLoaded {
		return ov.code
	}
	ov.code = a.codeByHash(ov.info.CodeHash)
	ov.codeLoaded = true
	return ov.code
}

func (a *Adapter) GetCodeSize(addr common.Address) int {
	return len(a.GetCode(addr))
}

func (a *Adapter) SetCode(addr common.Address, code []byte) {
	ov := a.overlay(addr)
	prevCode, prevLoaded, prevHash := ov.code, ov.codeLoaded, ov.info.CodeHash
	a.pushJournal(func() {
		ov.code, ov.codeLoaded, ov.info.CodeHash = prevCode, prevLoaded, prevHash
	})
	ov.code = code
	ov.codeLoaded = true
	ov.info.CodeHash = codeHash(code)
	ov.touched = true
}

func (a *Adapter) AddRefund(gas uint64) {
	prev := a.refund
	a.pushJournal(func() { a.refund = prev })
	a.refund += gas
}

func (a *Adapter) SubRefund(gas uint64) {
	prev := a.refund
	a.pushJournal(func() { a.refund = prev })
	if gas > a.refund {
		a.refund = 0
		return
	}
	a.refund -= gas
}

func (a *Adapter) GetRefund() uint64 { return a.refund }

func (a *Adapter) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	v, err := a.db.GetStorage(addr, [32]byte(key))
	if err != nil {
		return common.Hash{}
	}
	return common.Hash(v)
}

func (a *Adapter) GetState(addr common.Address, key common.Hash) common.Hash {
	return a.storageRead(addr, key)
}

func (a *Adapter) SetState(addr common.Address, key, value common.Hash) {
	ov := a.overlay(addr)
	prev, hadPrev := ov.storage[key]
	prevDirty := ov.dirtyStorage[key]
	a.pushJournal(func() {
		if hadPrev {
			ov.storage[key] = prev
		} else {
			delete(ov.storage, key)
		}
		ov.dirtyStorage[key] = prevDirty
	})
	ov.storage[key] = value
	ov.dirtyStorage[key] = true
	ov.touched = true
}

func (a *Adapter) GetStorageRoot(addr common.Address) common.Hash {
	acc, exists, err := a.db.GetAccount(addr)
	if err != nil || !exists {
		return schemaEmptyTrieRoot
	}
	return acc.StorageRoot
}

func (a *Adapter) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if m, ok := a.transient[addr]; ok {
		return m[key]
	}
	return common.Hash{}
}

func (a *Adapter) SetTransientState(addr common.Address, key, value common.Hash) {
	m := a.transient[addr]
	if m == nil {
		m = make(map[common.Hash]common.Hash)
		a.transient[addr] = m
	}
	prev, had := m[key]
	a.pushJournal(func() {
		if had {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
	m[key] = value
}

func (a *Adapter) SelfDestruct(addr common.Address) {
	ov := a.overlay(addr)
	prev := ov.destructed
	a.pushJournal(func() { ov.destructed = prev })
	ov.destructed = true
	ov.touched = true
}

func (a *Adapter) HasSelfDestructed(addr common.Address) bool {
	return a.overlay(addr).destructed
}

// Selfdestruct6780 implements EIP-6780: self-destruct only takes effect if
// the account was created earlier in the same transaction.
func (a *Adapter) Selfdestruct6780(addr common.Address) {
	if a.createdTx[addr] {
		a.SelfDestruct(addr)
	}
}

func (a *Adapter) Exist(addr common.Address) bool {
	ov := a.overlay(addr)
	if ov.destructed {
		return false
	}
	if ov.touched {
		return true
	}
	_, exists, err := a.db.GetAccount(addr)
	return err == nil && exists
}

func (a *Adapter) Empty(addr common.Address) bool {
	ov := a.overlay(addr)
	return ov.info.Nonce == 0 && ov.info.Balance.IsZero() && ov.info.CodeHash == schemaEmptyCodeHash
}

func (a *Adapter) AddressInAccessList(addr common.Address) bool {
	return a.accessAddrs[addr]
}

func (a *Adapter) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOK := a.accessAddrs[addr]
	if m, ok := a.accessSlots[addr]; ok {
		return addrOK, m[slot]
	}
	return addrOK, false
}

func (a *Adapter) AddAddressToAccessList(addr common.Address) {
	if a.accessAddrs[addr] {
		return
	}
	a.pushJournal(func() { delete(a.accessAddrs, addr) })
	a.accessAddrs[addr] = true
}

func (a *Adapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	a.AddAddressToAccessList(addr)
	m := a.accessSlots[addr]
	if m == nil {
		m = make(map[common.Hash]bool)
		a.accessSlots[addr] = m
	}
	if m[slot] {
		return
	}
	a.pushJournal(func() { delete(m, slot) })
	m[slot] = true
}

func (a *Adapter) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses gethtypes.AccessList) {
	a.accessAddrs = make(map[common.Address]bool)
	a.accessSlots = make(map[common.Address]map[common.Hash]bool)
	a.AddAddressToAccessList(sender)
	if dest != nil {
		a.AddAddressToAccessList(*dest)
	}
	for _, addr := range precompiles {
		a.AddAddressToAccessList(addr)
	}
	if rules.IsBerlin {
		a.AddAddressToAccessList(coinbase)
	}
	for _, el := range txAccesses {
		a.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			a.AddSlotToAccessList(el.Address, key)
		}
	}
}

func (a *Adapter) RevertToSnapshot(id int) {
	for len(a.journal) > id {
		undo := a.journal[len(a.journal)-1]
		a.journal = a.journal[:len(a.journal)-1]
		undo()
	}
}

func (a *Adapter) Snapshot() int {
	return len(a.journal)
}

func (a *Adapter) AddLog(l *gethtypes.Log) {
	a.logs = append(a.logs, l)
}

func (a *Adapter) AddPreimage(common.Hash, []byte) {
	// Preimage recording is an optional debugging aid in go-ethereum; the
	// execution core has no use for it.
}
