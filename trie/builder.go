// Package trie computes Merkle Patricia Trie roots over the execution
// core's account, storage, transaction and receipt leaf sets, reusing
// go-ethereum's StackTrie as the hash-builder rather than re-implementing
// the branch/extension/leaf divergence protocol.
package trie

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"
)

// leaf is one (hashed path, RLP value) pair awaiting insertion.
type leaf struct {
	path  common.Hash
	value []byte
}

// Builder accumulates leaves and produces the trie root. Leaves are
// buffered and sorted by path before insertion since StackTrie requires
// strictly ascending keys; the spec's "ascending path order" requirement
// is enforced here rather than by the caller.
type Builder struct {
	leaves []leaf
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddLeaf stages a leaf keyed by its already-hashed path.
func (b *Builder) AddLeaf(path common.Hash, rlpValue []byte) {
	b.leaves = append(b.leaves, leaf{path: path, value: rlpValue})
}

// Root sorts the staged leaves by ascending path and feeds them into a
// fresh StackTrie, returning the resulting root hash. EmptyTrieRoot is
// returned when no leaves were staged.
func (b *Builder) Root() common.Hash {
	sort.Slice(b.leaves, func(i, j int) bool {
		return bytes.Compare(b.leaves[i].path[:], b.leaves[j].path[:]) < 0
	})
	st := gethtrie.NewStackTrie(nil)
	for _, l := range b.leaves {
		// Duplicate hashed paths cannot occur by construction (spec §4.2);
		// an error here would indicate a key-preparation bug upstream.
		if err := st.Update(l.path[:], l.value); err != nil {
			panic(err)
		}
	}
	return st.Hash()
}

// HashAddress returns keccak256(address), the account-leaf path.
func HashAddress(addr common.Address) common.Hash {
	return crypto.Keccak256Hash(addr[:])
}

// HashStorageKey returns keccak256(big-endian 32-byte key), the
// storage-leaf path.
func HashStorageKey(key [32]byte) common.Hash {
	return crypto.Keccak256Hash(key[:])
}

// HashIndex returns keccak256(RLP(index)), the transactions-root /
// receipts-root leaf path. Hashing the raw RLP of the index is required
// because RLP maps 0 to 0x80, which sorts after 0x01..0x7f and would
// otherwise break the ascending-key requirement of the hash builder.
func HashIndex(index uint64) common.Hash {
	enc := rlpUint64(index)
	return crypto.Keccak256Hash(enc)
}

// rlpUint64 returns the RLP encoding of a non-negative integer per the
// same leading-zero-stripped byte-string rule the rlp package applies to
// uint64 fields elsewhere in this module.
func rlpUint64(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	var buf [8]byte
	n := 8
	x := v
	for x > 0 {
		n--
		buf[n] = byte(x)
		x >>= 8
	}
	b := buf[n:]
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	out := make([]byte, 0, len(b)+1)
	out = append(out, byte(0x80+len(b)))
	out = append(out, b...)
	return out
}
