package schema

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Log is one EVM log entry, positioned within its enclosing transaction
// and block.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte

	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint64
	BlockHash   common.Hash
	Index       uint64
}

// Receipt is the post-execution summary of one transaction.
type Receipt struct {
	TransactionHash common.Hash
	TransactionIndex uint64
	BlockHash       common.Hash
	BlockNumber     uint64
	From            common.Address
	To              *common.Address // nil when ContractAddress is set
	ContractAddress *common.Address
	GasUsed         uint64
	CumulativeGasUsed uint64
	Status          uint8 // 1 success, 0 revert
	Logs            []Log
	LogsBloom       [256]byte
}

type rlpLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

type rlpReceipt struct {
	Status            uint8
	CumulativeGasUsed uint64
	LogsBloom         []byte
	Logs              []rlpLog
}

// EncodeRLP produces the receipts-root leaf value:
// RLP([status, cumulative_gas_used, logs_bloom, logs]).
func (r Receipt) EncodeRLP() ([]byte, error) {
	logs := make([]rlpLog, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = rlpLog{Address: l.Address, Topics: l.Topics, Data: l.Data}
	}
	return rlp.EncodeToBytes(rlpReceipt{
		Status:            r.Status,
		CumulativeGasUsed: r.CumulativeGasUsed,
		LogsBloom:         r.LogsBloom[:],
		Logs:              logs,
	})
}
