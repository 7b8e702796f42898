package store

import (
	"github.com/ethereum/go-ethereum/common"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ethercoretech/blockexec/schema"
)

// writeBuffer is the in-memory struct layered above the persistent tables
// while a transaction is active. It mirrors spec §4.1's buffer semantics
// exactly: per-kind maps, a tombstone set, and a de-duplicated ordered
// list of changed addresses.
type writeBuffer struct {
	accounts        map[common.Address]schema.Account
	storage         map[common.Address]map[[32]byte]storageValue
	code            map[common.Hash][]byte
	blockHashes     map[uint64]common.Hash
	blocks          map[uint64][]byte
	deletedAccounts map[common.Address]struct{}

	changedOrder []common.Address
	changedSeen  mapset.Set[common.Address]
}

// storageValue distinguishes a buffered zero-write (delete the slot) from
// an unset entry (fall through to the persistent table).
type storageValue struct {
	value [32]byte
	zero  bool
}

func newWriteBuffer() *writeBuffer {
	return &writeBuffer{
		accounts:        make(map[common.Address]schema.Account),
		storage:         make(map[common.Address]map[[32]byte]storageValue),
		code:            make(map[common.Hash][]byte),
		blockHashes:     make(map[uint64]common.Hash),
		blocks:          make(map[uint64][]byte),
		deletedAccounts: make(map[common.Address]struct{}),
		changedSeen:     mapset.NewSet[common.Address](),
	}
}

// markChanged appends addr to the ordered changed-accounts list the first
// time it is touched in this transaction.
func (b *writeBuffer) markChanged(addr common.Address) {
	if b.changedSeen.Contains(addr) {
		return
	}
	b.changedSeen.Add(addr)
	b.changedOrder = append(b.changedOrder, addr)
}

func (b *writeBuffer) setAccount(addr common.Address, acc schema.Account) {
	delete(b.deletedAccounts, addr)
	b.accounts[addr] = acc
	b.markChanged(addr)
}

func (b *writeBuffer) deleteAccount(addr common.Address) {
	delete(b.accounts, addr)
	b.deletedAccounts[addr] = struct{}{}
	b.markChanged(addr)
}

func (b *writeBuffer) setStorage(addr common.Address, key [32]byte, value [32]byte, isZero bool) {
	m := b.storage[addr]
	if m == nil {
		m = make(map[[32]byte]storageValue)
		b.storage[addr] = m
	}
	m[key] = storageValue{value: value, zero: isZero}
	b.markChanged(addr)
}

func (b *writeBuffer) setCode(hash common.Hash, code []byte) {
	b.code[hash] = code
}

func (b *writeBuffer) setBlockHash(number uint64, hash common.Hash) {
	b.blockHashes[number] = hash
}

func (b *writeBuffer) setBlock(number uint64, encoded []byte) {
	b.blocks[number] = encoded
}

// changedAccounts returns the de-duplicated ordered list of addresses
// touched so far in this transaction.
func (b *writeBuffer) changedAccounts() []common.Address {
	out := make([]common.Address, len(b.changedOrder))
	copy(out, b.changedOrder)
	return out
}
