package schema

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CodeEntry pairs a code hash with its bytecode. keccak256(Bytecode) must
// equal CodeHash; empty bytecode is never stored under this type — callers
// should check against EmptyCodeHash instead.
type CodeEntry struct {
	CodeHash common.Hash
	Bytecode []byte
}

// NewCodeEntry hashes bytecode and returns the corresponding entry.
func NewCodeEntry(bytecode []byte) CodeEntry {
	return CodeEntry{
		CodeHash: crypto.Keccak256Hash(bytecode),
		Bytecode: bytecode,
	}
}

// Validate checks the code_hash == keccak256(bytecode) invariant.
func (c CodeEntry) Validate() error {
	got := crypto.Keccak256Hash(c.Bytecode)
	if got != c.CodeHash {
		return fmt.Errorf("schema: code entry hash mismatch: have %s want %s", c.CodeHash, got)
	}
	return nil
}
