// Package evm implements the Execution Engine: an adapter over the State
// Store that satisfies go-ethereum's vm.StateDB contract, driving
// github.com/ethereum/go-ethereum/core/vm as the bytecode interpreter
// instead of a hand-written one.
package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/ethercoretech/blockexec/blockerr"
	"github.com/ethercoretech/blockexec/schema"
	"github.com/ethercoretech/blockexec/store"
)

var (
	schemaEmptyCodeHash = schema.EmptyCodeHash
	schemaEmptyTrieRoot = schema.EmptyTrieRoot
)

func codeHash(code []byte) common.Hash {
	if len(code) == 0 {
		return schemaEmptyCodeHash
	}
	return crypto.Keccak256Hash(code)
}

// AccountInfo is the adapter's "basic" read result — the account fields the
// interpreter needs without touching storage or code.
type AccountInfo struct {
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
}

// accountOverlay is the adapter's in-memory working copy of one account,
// lazily populated from the store on first touch. It generalizes the
// pendingBasic/pendingStorage maps pattern of a journaled per-transaction
// overlay: nothing here reaches the State Store until flush is called.
type accountOverlay struct {
	info         AccountInfo
	code         []byte      // nil if not loaded/changed
	codeLoaded   bool
	storage      map[common.Hash]common.Hash
	dirtyStorage map[common.Hash]bool
	destructed   bool
	touched      bool
}

// Adapter is a per-transaction vm.StateDB implementation backed by a
// State Store. A fresh Adapter must be constructed for every transaction
// (per spec §4.4/§5's "cache cleared between transactions" requirement);
// reusing one across transactions would let a later transaction observe a
// stale nonce or balance.
type Adapter struct {
	db          *store.Store
	blockHashFn func(number uint64) common.Hash

	accounts map[common.Address]*accountOverlay

	transient map[common.Address]map[common.Hash]common.Hash

	refund uint64
	logs   []*gethtypes.Log

	accessAddrs map[common.Address]bool
	accessSlots map[common.Address]map[common.Hash]bool

	journal   []func()
	snapID    int
	createdTx map[common.Address]bool // accounts created within this transaction
}

// NewAdapter constructs a fresh per-transaction adapter over db. blockHashFn
// resolves historical block hashes for the BLOCKHASH opcode.
func NewAdapter(db *store.Store, blockHashFn func(uint64) common.Hash) *Adapter {
	return &Adapter{
		db:          db,
		blockHashFn: blockHashFn,
		accounts:    make(map[common.Address]*accountOverlay),
		transient:   make(map[common.Address]map[common.Hash]common.Hash),
		accessAddrs: make(map[common.Address]bool),
		accessSlots: make(map[common.Address]map[common.Hash]bool),
		createdTx:   make(map[common.Address]bool),
	}
}

// Rules returns a pinned post-Shanghai rule set: Shanghai activated at
// block 0 so EIP-3607 doesn't reject funded EOAs with a divergent code
// hash during local testing, per spec §4.4.
func Rules() (*params.ChainConfig, params.Rules) {
	zero := uint64(0)
	cfg := &params.ChainConfig{
		ChainID:             big.NewInt(1),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
		ShanghaiTime:        &zero,
	}
	rules := cfg.Rules(big.NewInt(0), true, zero)
	return cfg, rules
}

// overlay returns the account's working copy, lazily loading it from the
// store on first touch — this is the "basic" read the interpreter demands,
// per spec §4.4.
func (a *Adapter) overlay(addr common.Address) *accountOverlay {
	if ov, ok := a.accounts[addr]; ok {
		return ov
	}
	ov := &accountOverlay{storage: make(map[common.Hash]common.Hash), dirtyStorage: make(map[common.Hash]bool)}
	acc, exists, err := a.db.GetAccount(addr)
	if err != nil {
		log.Error("evm adapter: failed to load account", "address", addr, "err", err)
		acc = schema.EmptyAccount()
	} else if !exists {
		acc = schema.EmptyAccount()
	}
	ov.info = AccountInfo{Balance: acc.Balance, Nonce: acc.Nonce, CodeHash: acc.CodeHash}
	if ov.info.Balance == nil {
		ov.info.Balance = uint256.NewInt(0)
	}
	a.accounts[addr] = ov
	return ov
}

// codeByHash resolves bytecode by its hash, the "code_by_hash" read.
func (a *Adapter) codeByHash(hash common.Hash) []byte {
	if hash == schema.EmptyCodeHash {
		return nil
	}
	code, ok, err := a.db.GetCode(hash)
	if err != nil {
		log.Error("evm adapter: failed to load code", "hash", hash, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return code
}

// storageRead resolves one slot, the "storage" read, checking the overlay
// before falling through to the store.
func (a *Adapter) storageRead(addr common.Address, key common.Hash) common.Hash {
	ov := a.overlay(addr)
	if v, ok := ov.storage[key]; ok {
		return v
	}
	v, err := a.db.GetStorage(addr, [32]byte(key))
	if err != nil {
		log.Error("evm adapter: failed to load storage", "address", addr, "key", key, "err", err)
		return common.Hash{}
	}
	h := common.Hash(v)
	ov.storage[key] = h
	return h
}

// blockHash resolves a historical block hash, the "block_hash" read.
func (a *Adapter) blockHash(number uint64) common.Hash {
	if a.blockHashFn != nil {
		return a.blockHashFn(number)
	}
	return common.Hash{}
}

// pushJournal records an undo closure for the active snapshot.
func (a *Adapter) pushJournal(undo func()) {
	a.journal = append(a.journal, undo)
}

func blockerrWrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return blockerr.NewDatabase(msg, err)
}
