package trie

import (
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ethercoretech/blockexec/schema"
)

// LogsBloom folds each log's address and topics into a 2048-bit filter,
// reusing go-ethereum's own Bloom9 folding algorithm (three 11-bit slices
// of keccak256(item) set per item) via the exported types.Bloom.Add
// method rather than re-deriving the bit math by hand.
func LogsBloom(logs []schema.Log) [256]byte {
	var b gethtypes.Bloom
	for _, l := range logs {
		b.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			b.Add(topic.Bytes())
		}
	}
	return [256]byte(b)
}
