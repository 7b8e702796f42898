// Package schema defines the on-disk and wire records of the execution
// core: accounts, storage slots, code entries, transactions, blocks,
// receipts and logs, together with their binary table encodings and the
// RLP encodings used at the trie boundary.
package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// EmptyCodeHash is keccak256(""), the code_hash of an account with no code.
var EmptyCodeHash = common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

// EmptyTrieRoot is keccak256(RLP("")), the root of an empty Merkle Patricia
// Trie and the storage_root of an account with no non-zero slots.
var EmptyTrieRoot = common.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// Account is the mutable per-address record: transaction counter, balance,
// the root of its own storage trie, and the hash of its code.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EmptyAccount is the zero account returned for addresses with no record.
func EmptyAccount() Account {
	return Account{
		Nonce:       0,
		Balance:     uint256.NewInt(0),
		StorageRoot: EmptyTrieRoot,
		CodeHash:    EmptyCodeHash,
	}
}

// IsContract reports whether this account has associated bytecode.
func (a Account) IsContract() bool {
	return a.CodeHash != EmptyCodeHash
}

// IsEmpty reports whether the account is indistinguishable from absence:
// zero nonce, zero balance, no code. Such accounts MAY be elided from the
// persistent table.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && a.CodeHash == EmptyCodeHash
}

// MarshalBinary produces the length-prefixed binary layout stored in the
// accounts table: a fixed 8-byte nonce, a 1-byte balance length followed by
// its big-endian bytes, the 32-byte storage root, and the 32-byte code hash.
func (a Account) MarshalBinary() ([]byte, error) {
	if a.Balance == nil {
		return nil, fmt.Errorf("schema: account has nil balance")
	}
	balBytes := a.Balance.Bytes()
	if len(balBytes) > 255 {
		return nil, fmt.Errorf("schema: balance too large to encode")
	}
	buf := make([]byte, 8+1+len(balBytes)+32+32)
	binary.BigEndian.PutUint64(buf[0:8], a.Nonce)
	buf[8] = byte(len(balBytes))
	copy(buf[9:9+len(balBytes)], balBytes)
	off := 9 + len(balBytes)
	copy(buf[off:off+32], a.StorageRoot[:])
	copy(buf[off+32:off+64], a.CodeHash[:])
	return buf, nil
}

// UnmarshalBinary decodes the layout written by MarshalBinary.
func (a *Account) UnmarshalBinary(buf []byte) error {
	if len(buf) < 9 {
		return fmt.Errorf("schema: account encoding too short")
	}
	nonce := binary.BigEndian.Uint64(buf[0:8])
	balLen := int(buf[8])
	if len(buf) < 9+balLen+64 {
		return fmt.Errorf("schema: account encoding truncated")
	}
	bal := new(uint256.Int).SetBytes(buf[9 : 9+balLen])
	off := 9 + balLen
	var storageRoot, codeHash common.Hash
	copy(storageRoot[:], buf[off:off+32])
	copy(codeHash[:], buf[off+32:off+64])
	a.Nonce = nonce
	a.Balance = bal
	a.StorageRoot = storageRoot
	a.CodeHash = codeHash
	return nil
}

// rlpAccount is the field order RLP([nonce, balance, storage_root, code_hash])
// demanded by spec §6 and §4.2. The uint64 nonce encodes as a leading-zero
// stripped big-endian byte string under the rlp package's own rules; the
// balance is carried as the already-stripped bytes of uint256.Int.Bytes().
type rlpAccount struct {
	Nonce       uint64
	Balance     []byte
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EncodeRLP produces the trie-leaf value for an account: RLP([nonce,
// balance, storage_root, code_hash]).
func (a Account) EncodeRLP() ([]byte, error) {
	bal := a.Balance
	if bal == nil {
		bal = uint256.NewInt(0)
	}
	return rlp.EncodeToBytes(rlpAccount{
		Nonce:       a.Nonce,
		Balance:     bal.Bytes(),
		StorageRoot: a.StorageRoot,
		CodeHash:    a.CodeHash,
	})
}
