package schema

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// StorageSlot is a single (key, value) storage entry of one account; the
// owning address is not part of the struct. A slot whose
// value is zero is semantically absent and must never be persisted or
// included in a storage trie.
type StorageSlot struct {
	Key   uint256.Int
	Value uint256.Int
}

// KeyBytes returns the 32-byte big-endian representation of the slot key,
// the form both the storage table and the trie path use.
func (s StorageSlot) KeyBytes() [32]byte {
	return s.Key.Bytes32()
}

// EncodeStorageValueRLP returns RLP(value), the storage leaf value per
// spec §4.2. Callers must not call this for a zero value; zero slots are
// omitted entirely rather than encoded.
func EncodeStorageValueRLP(value *uint256.Int) ([]byte, error) {
	return rlp.EncodeToBytes(value.Bytes())
}
