package store

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Table-prefix bytes distinguish the four logical tables plus blocks inside
// the single Pebble database, the same convention go-ethereum itself uses
// for its freezer/chain database rather than opening separate physical
// databases per table.
const (
	prefixAccount    byte = 'a'
	prefixStorage    byte = 's'
	prefixCode       byte = 'c'
	prefixBlockHash  byte = 'h'
	prefixBlock      byte = 'b'
)

func accountKey(addr common.Address) []byte {
	k := make([]byte, 1+20)
	k[0] = prefixAccount
	copy(k[1:], addr[:])
	return k
}

func storageKey(addr common.Address, slotKey [32]byte) []byte {
	k := make([]byte, 1+20+32)
	k[0] = prefixStorage
	copy(k[1:21], addr[:])
	copy(k[21:53], slotKey[:])
	return k
}

// storagePrefix returns the key prefix (table byte ‖ address) shared by all
// of one account's storage rows, used for the prefix scan get_all_storage
// requires.
func storagePrefix(addr common.Address) []byte {
	k := make([]byte, 1+20)
	k[0] = prefixStorage
	copy(k[1:], addr[:])
	return k
}

func codeKey(hash common.Hash) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixCode
	copy(k[1:], hash[:])
	return k
}

func blockHashKey(number uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefixBlockHash
	binary.BigEndian.PutUint64(k[1:], number)
	return k
}

func blockKey(number uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefixBlock
	binary.BigEndian.PutUint64(k[1:], number)
	return k
}

// addressFromStorageKey extracts the 20-byte address from a full storage
// row key (table byte ‖ address ‖ slot key).
func addressFromStorageKey(k []byte) common.Address {
	var addr common.Address
	copy(addr[:], k[1:21])
	return addr
}

// slotKeyFromStorageKey extracts the 32-byte slot key from a full storage
// row key.
func slotKeyFromStorageKey(k []byte) [32]byte {
	var sk [32]byte
	copy(sk[:], k[21:53])
	return sk
}
