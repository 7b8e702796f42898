package schema

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

func zeroU256() *uint256.Int { return uint256.NewInt(0) }

func bytesToU256(b []byte) *uint256.Int { return new(uint256.Int).SetBytes(b) }

// Header carries the sealed block metadata. TxCount, StateRoot, GasUsed,
// TransactionsRoot and ReceiptsRoot are filled in post-execution by the
// Block Executor; the remaining fields describe the block environment the
// caller supplies up front.
type Header struct {
	Number           uint64
	ParentHash       common.Hash
	Timestamp        uint64
	TxCount          uint64
	TransactionsRoot common.Hash
	StateRoot        common.Hash
	GasUsed          uint64
	GasLimit         uint64
	ReceiptsRoot     common.Hash
}

// Hash identifies the header by the keccak256 of its fields RLP-encoded in
// the rlpBlock shape with an empty transaction list. The core has no
// consensus layer (spec §1 non-goals), so this is a content identity, not
// a chain-of-custody hash tied to any fork-choice rule.
func (h Header) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(rlpBlock{
		Number:           h.Number,
		ParentHash:       h.ParentHash,
		Timestamp:        h.Timestamp,
		TxCount:          h.TxCount,
		TransactionsRoot: h.TransactionsRoot,
		StateRoot:        h.StateRoot,
		GasUsed:          h.GasUsed,
		GasLimit:         h.GasLimit,
		ReceiptsRoot:     h.ReceiptsRoot,
	})
	if err != nil {
		// Every field here is a fixed-width integer or hash; encoding
		// cannot fail.
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// Block pairs a header with its ordered transaction list. Once committed
// a Block is append-only and must never be rewritten.
type Block struct {
	Header       Header
	Transactions []Transaction
}

// rlpBlock is the on-disk RLP shape of a sealed block.
type rlpBlock struct {
	Number           uint64
	ParentHash       common.Hash
	Timestamp        uint64
	TxCount          uint64
	TransactionsRoot common.Hash
	StateRoot        common.Hash
	GasUsed          uint64
	GasLimit         uint64
	ReceiptsRoot     common.Hash
	Transactions     []rlpTransaction
}

// MarshalBinary encodes the block (header plus transactions) for the
// `blocks` table.
func (b Block) MarshalBinary() ([]byte, error) {
	txs := make([]rlpTransaction, len(b.Transactions))
	for i, t := range b.Transactions {
		var to []byte
		if t.To != nil {
			to = t.To.Bytes()
		}
		gasPrice := t.EffectiveGasPrice()
		value := t.Value
		if value == nil {
			value = zeroU256()
		}
		txs[i] = rlpTransaction{
			Nonce:    t.Nonce,
			GasPrice: gasPrice.Bytes(),
			GasLimit: t.GasLimit,
			To:       to,
			Value:    value.Bytes(),
			Data:     t.Data,
		}
	}
	return rlp.EncodeToBytes(rlpBlock{
		Number:           b.Header.Number,
		ParentHash:       b.Header.ParentHash,
		Timestamp:        b.Header.Timestamp,
		TxCount:          b.Header.TxCount,
		TransactionsRoot: b.Header.TransactionsRoot,
		StateRoot:        b.Header.StateRoot,
		GasUsed:          b.Header.GasUsed,
		GasLimit:         b.Header.GasLimit,
		ReceiptsRoot:     b.Header.ReceiptsRoot,
		Transactions:     txs,
	})
}

// UnmarshalBinary decodes the layout written by MarshalBinary. Transaction
// sender addresses are not recoverable from the legacy RLP form alone (it
// carries no `from`), so decoded transactions carry only the fields the
// wire form preserves and have a zero From.
func (b *Block) UnmarshalBinary(buf []byte) error {
	var dec rlpBlock
	if err := rlp.DecodeBytes(buf, &dec); err != nil {
		return err
	}
	b.Header = Header{
		Number:           dec.Number,
		ParentHash:       dec.ParentHash,
		Timestamp:        dec.Timestamp,
		TxCount:          dec.TxCount,
		TransactionsRoot: dec.TransactionsRoot,
		StateRoot:        dec.StateRoot,
		GasUsed:          dec.GasUsed,
		GasLimit:         dec.GasLimit,
		ReceiptsRoot:     dec.ReceiptsRoot,
	}
	b.Transactions = make([]Transaction, len(dec.Transactions))
	for i, t := range dec.Transactions {
		tx := Transaction{
			Nonce:    t.Nonce,
			GasLimit: t.GasLimit,
			Data:     t.Data,
			Value:    bytesToU256(t.Value),
			GasPrice: bytesToU256(t.GasPrice),
		}
		if len(t.To) > 0 {
			addr := common.BytesToAddress(t.To)
			tx.To = &addr
		}
		b.Transactions[i] = tx
	}
	return nil
}
