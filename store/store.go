// Package store implements the execution core's State Store: four
// persistent tables (accounts, storage, code, block_hashes) plus a blocks
// table, all held as prefixed keys inside a single Pebble database, fronted
// by a read cache and layered with an in-memory transactional write buffer.
package store

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethercoretech/blockexec/blockerr"
	"github.com/ethercoretech/blockexec/schema"
)

// Store is the State Store: a Pebble-backed key-value database with a
// read-through cache and, while a transaction is active, an in-memory
// write buffer layered above both.
type Store struct {
	mu sync.RWMutex

	db    *pebble.DB
	cache *readCache

	tx *writeBuffer // nil when no transaction is active
}

// Open opens (creating if absent) a Pebble database at dir as the backing
// store.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, blockerr.NewDatabase("open pebble database", err)
	}
	return &Store{db: db, cache: newReadCache()}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTransaction opens a new write buffer. It fails if one is already
// active.
func (s *Store) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return blockerr.NewDatabase("begin_transaction", fmt.Errorf("a transaction is already active"))
	}
	s.tx = newWriteBuffer()
	return nil
}

// RollbackTransaction discards the active write buffer without touching
// the persistent tables.
func (s *Store) RollbackTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return blockerr.NewDatabase("rollback_transaction", fmt.Errorf("no transaction is active"))
	}
	s.tx = nil
	return nil
}

// CommitTransaction drains the write buffer into one Pebble batch, in the
// order accounts-upserts, account-deletions, storage, code, block-hashes,
// applies it atomically, invalidates the read cache for every touched key,
// and clears the changed-accounts list.
func (s *Store) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return blockerr.NewDatabase("commit_transaction", fmt.Errorf("no transaction is active"))
	}
	buf := s.tx
	batch := s.db.NewBatch()

	for addr, acc := range buf.accounts {
		enc, err := acc.MarshalBinary()
		if err != nil {
			return blockerr.NewDatabase("encode account", err)
		}
		if err := batch.Set(accountKey(addr), enc, nil); err != nil {
			return blockerr.NewDatabase("batch set account", err)
		}
	}
	for addr := range buf.deletedAccounts {
		if err := batch.Delete(accountKey(addr), nil); err != nil {
			return blockerr.NewDatabase("batch delete account", err)
		}
	}
	for addr, slots := range buf.storage {
		for key, sv := range slots {
			k := storageKey(addr, key)
			if sv.zero {
				if err := batch.Delete(k, nil); err != nil {
					return blockerr.NewDatabase("batch delete storage", err)
				}
				continue
			}
			if err := batch.Set(k, sv.value[:], nil); err != nil {
				return blockerr.NewDatabase("batch set storage", err)
			}
		}
	}
	for hash, code := range buf.code {
		if err := batch.Set(codeKey(hash), code, nil); err != nil {
			return blockerr.NewDatabase("batch set code", err)
		}
	}
	for number, hash := range buf.blockHashes {
		if err := batch.Set(blockHashKey(number), hash[:], nil); err != nil {
			return blockerr.NewDatabase("batch set block hash", err)
		}
	}
	for number, enc := range buf.blocks {
		if err := batch.Set(blockKey(number), enc, nil); err != nil {
			return blockerr.NewDatabase("batch set block", err)
		}
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return blockerr.NewDatabase("apply commit batch", err)
	}

	for addr := range buf.accounts {
		s.cache.invalidateAccount(addr)
	}
	for addr := range buf.deletedAccounts {
		s.cache.invalidateAccount(addr)
	}
	for addr, slots := range buf.storage {
		for key := range slots {
			s.cache.invalidateStorage(storageKey(addr, key))
		}
	}
	for hash, code := range buf.code {
		s.cache.setCode(hash, code)
	}

	s.tx = nil
	log.Debug("store: committed transaction", "accounts", len(buf.accounts)+len(buf.deletedAccounts), "storage_writes", len(buf.storage))
	return nil
}

// GetChangedAccounts returns the ordered, de-duplicated list of addresses
// touched by the active transaction.
func (s *Store) GetChangedAccounts() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tx == nil {
		return nil
	}
	return s.tx.changedAccounts()
}

// GetAccount reads the buffer first (including tombstones), then the
// persistent table and cache. Absent accounts return the zero value with
// ok=false.
func (s *Store) GetAccount(addr common.Address) (schema.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tx != nil {
		if _, deleted := s.tx.deletedAccounts[addr]; deleted {
			return schema.Account{}, false, nil
		}
		if acc, ok := s.tx.accounts[addr]; ok {
			return acc, true, nil
		}
	}
	if enc, ok := s.cache.getAccount(addr); ok {
		if len(enc) == 0 {
			return schema.Account{}, false, nil
		}
		var acc schema.Account
		if err := acc.UnmarshalBinary(enc); err != nil {
			return schema.Account{}, false, blockerr.NewDatabase("decode cached account", err)
		}
		return acc, true, nil
	}
	val, closer, err := s.db.Get(accountKey(addr))
	if err == pebble.ErrNotFound {
		s.cache.setAccount(addr, nil)
		return schema.Account{}, false, nil
	}
	if err != nil {
		return schema.Account{}, false, blockerr.NewDatabase("get account", err)
	}
	enc := append([]byte(nil), val...)
	closer.Close()
	var acc schema.Account
	if err := acc.UnmarshalBinary(enc); err != nil {
		return schema.Account{}, false, blockerr.NewDatabase("decode account", err)
	}
	s.cache.setAccount(addr, enc)
	return acc, true, nil
}

// SetAccount writes addr → acc. In direct mode (no active transaction) this
// is an immediate persistent write; in buffered mode it is recorded in the
// write buffer and addr is appended to the changed-accounts list.
func (s *Store) SetAccount(addr common.Address, acc schema.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		s.tx.setAccount(addr, acc)
		return nil
	}
	enc, err := acc.MarshalBinary()
	if err != nil {
		return blockerr.NewDatabase("encode account", err)
	}
	if err := s.db.Set(accountKey(addr), enc, pebble.Sync); err != nil {
		return blockerr.NewDatabase("direct set account", err)
	}
	s.cache.setAccount(addr, enc)
	return nil
}

// DeleteAccount removes addr. Buffered mode tombstones it; direct mode
// removes the persistent row immediately.
func (s *Store) DeleteAccount(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		s.tx.deleteAccount(addr)
		return nil
	}
	if err := s.db.Delete(accountKey(addr), pebble.Sync); err != nil {
		return blockerr.NewDatabase("direct delete account", err)
	}
	s.cache.invalidateAccount(addr)
	return nil
}

// GetStorage reads a single slot; an absent slot reads as zero.
func (s *Store) GetStorage(addr common.Address, key [32]byte) ([32]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tx != nil {
		if m, ok := s.tx.storage[addr]; ok {
			if sv, ok := m[key]; ok {
				if sv.zero {
					return [32]byte{}, nil
				}
				return sv.value, nil
			}
		}
	}
	k := storageKey(addr, key)
	if v, ok := s.cache.getStorage(k); ok {
		var out [32]byte
		copy(out[:], v)
		return out, nil
	}
	val, closer, err := s.db.Get(k)
	if err == pebble.ErrNotFound {
		return [32]byte{}, nil
	}
	if err != nil {
		return [32]byte{}, blockerr.NewDatabase("get storage", err)
	}
	var out [32]byte
	copy(out[:], val)
	closer.Close()
	s.cache.setStorage(k, out[:])
	return out, nil
}

// SetStorage writes a single slot. Writing the zero value is equivalent to
// deleting the slot, per spec §4.1/§8.
func (s *Store) SetStorage(addr common.Address, key, value [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	isZero := value == ([32]byte{})
	if s.tx != nil {
		s.tx.setStorage(addr, key, value, isZero)
		return nil
	}
	k := storageKey(addr, key)
	if isZero {
		if err := s.db.Delete(k, pebble.Sync); err != nil {
			return blockerr.NewDatabase("direct delete storage", err)
		}
		s.cache.invalidateStorage(k)
		return nil
	}
	if err := s.db.Set(k, value[:], pebble.Sync); err != nil {
		return blockerr.NewDatabase("direct set storage", err)
	}
	s.cache.setStorage(k, value[:])
	return nil
}

// GetAllStorage returns every non-zero slot for addr: it scans the
// persistent table by address prefix and then, while a transaction is
// active, overlays the buffer's writes for addr (buffered zero-writes
// remove the slot). Writes still held in an evm.Adapter journal are not
// seen until the adapter flushes them into the buffer.
func (s *Store) GetAllStorage(addr common.Address) (map[[32]byte][32]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := storagePrefix(addr)
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, blockerr.NewDatabase("new storage iterator", err)
	}
	defer iter.Close()

	out := make(map[[32]byte][32]byte)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		var val [32]byte
		copy(val[:], iter.Value())
		out[slotKeyFromStorageKey(k)] = val
	}
	if err := iter.Error(); err != nil {
		return nil, blockerr.NewDatabase("iterate storage", err)
	}

	if s.tx != nil {
		if m, ok := s.tx.storage[addr]; ok {
			for key, sv := range m {
				if sv.zero {
					delete(out, key)
					continue
				}
				out[key] = sv.value
			}
		}
	}
	return out, nil
}

// GetCode returns the bytecode for hash, or ok=false if absent.
func (s *Store) GetCode(hash common.Hash) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tx != nil {
		if code, ok := s.tx.code[hash]; ok {
			return code, true, nil
		}
	}
	if code, ok := s.cache.getCode(hash); ok {
		return code, true, nil
	}
	val, closer, err := s.db.Get(codeKey(hash))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, blockerr.NewDatabase("get code", err)
	}
	code := append([]byte(nil), val...)
	closer.Close()
	s.cache.setCode(hash, code)
	return code, true, nil
}

// SetCode stores bytecode under hash.
func (s *Store) SetCode(hash common.Hash, code []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		s.tx.setCode(hash, code)
		return nil
	}
	if err := s.db.Set(codeKey(hash), code, pebble.Sync); err != nil {
		return blockerr.NewDatabase("direct set code", err)
	}
	s.cache.setCode(hash, code)
	return nil
}

// GetBlockHash returns the canonical hash recorded for block number n.
func (s *Store) GetBlockHash(number uint64) (common.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tx != nil {
		if h, ok := s.tx.blockHashes[number]; ok {
			return h, true, nil
		}
	}
	val, closer, err := s.db.Get(blockHashKey(number))
	if err == pebble.ErrNotFound {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, blockerr.NewDatabase("get block hash", err)
	}
	h := common.BytesToHash(val)
	closer.Close()
	return h, true, nil
}

// SetBlockHash records the hash for block number n.
func (s *Store) SetBlockHash(number uint64, hash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		s.tx.setBlockHash(number, hash)
		return nil
	}
	if err := s.db.Set(blockHashKey(number), hash[:], pebble.Sync); err != nil {
		return blockerr.NewDatabase("direct set block hash", err)
	}
	return nil
}

// SaveBlock writes the sealed block to the blocks table as part of the
// current transaction. It must be called with a transaction active, since
// a sealed block is produced only by BlockExecutor.ExecuteBlock.
func (s *Store) SaveBlock(block schema.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return blockerr.NewDatabase("save_block", fmt.Errorf("no transaction is active"))
	}
	enc, err := block.MarshalBinary()
	if err != nil {
		return blockerr.NewDatabase("encode block", err)
	}
	s.tx.setBlock(block.Header.Number, enc)
	return nil
}

// GetBlock reads a previously-saved sealed block by number.
func (s *Store) GetBlock(number uint64) (schema.Block, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, closer, err := s.db.Get(blockKey(number))
	if err == pebble.ErrNotFound {
		return schema.Block{}, false, nil
	}
	if err != nil {
		return schema.Block{}, false, blockerr.NewDatabase("get block", err)
	}
	enc := append([]byte(nil), val...)
	closer.Close()
	var block schema.Block
	if err := block.UnmarshalBinary(enc); err != nil {
		return schema.Block{}, false, blockerr.NewDatabase("decode block", err)
	}
	return block, true, nil
}
