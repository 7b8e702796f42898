package schema

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/ethercoretech/blockexec/blockerr"
)

// Transaction is the executor's typed input: a sender, an optional
// recipient (absent meaning contract creation), value and gas parameters,
// and the call/init data.
type Transaction struct {
	From     common.Address
	To       *common.Address // nil for contract creation
	Value    *uint256.Int
	Data     []byte
	GasLimit uint64
	Nonce    uint64
	GasPrice *uint256.Int
	ChainID  *uint256.Int // optional
	Hash     *common.Hash // optional caller-supplied canonical hash
}

// IsCreation reports whether this transaction creates a contract.
func (t Transaction) IsCreation() bool { return t.To == nil }

// DefaultGasPrice is the effective gas price assumed when a transaction
// omits one: 1 gigaunit, per spec §4.5.
var DefaultGasPrice = uint256.NewInt(1_000_000_000)

// EffectiveGasPrice returns GasPrice, or DefaultGasPrice if unset or zero.
func (t Transaction) EffectiveGasPrice() *uint256.Int {
	if t.GasPrice == nil || t.GasPrice.IsZero() {
		return DefaultGasPrice
	}
	return t.GasPrice
}

// TransactionInput is the wire representation accepted at the JSON
// boundary (CLI block files, RPC ingress). Per SPEC_FULL §4.5, Value,
// GasPrice, Data and Hash are 0x-prefixed hex strings; Nonce and GasLimit
// are native JSON integers. No other numeric string form is accepted.
type TransactionInput struct {
	From     string  `json:"from"`
	To       *string `json:"to,omitempty"`
	Value    string  `json:"value"`
	Data     string  `json:"data"`
	GasLimit uint64  `json:"gas_limit"`
	Nonce    uint64  `json:"nonce"`
	GasPrice string  `json:"gas_price,omitempty"`
	ChainID  string  `json:"chain_id,omitempty"`
	Hash     string  `json:"hash,omitempty"`
}

func parseHexU256(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, blockerr.NewTransactionFormat("numeric field %q is not 0x-prefixed hex", s)
	}
	v, err := uint256.FromHex(s)
	if err != nil {
		return nil, blockerr.NewTransactionFormat("invalid hex integer %q: %v", s, err)
	}
	return v, nil
}

func parseHexBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, blockerr.NewTransactionFormat("byte field %q is not 0x-prefixed hex", s)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, blockerr.NewTransactionFormat("invalid hex bytes %q: %v", s, err)
	}
	return b, nil
}

// Parse converts the wire input into a typed Transaction, rejecting any
// numeric field that isn't 0x-prefixed hex.
func (in TransactionInput) Parse() (Transaction, error) {
	if !common.IsHexAddress(in.From) {
		return Transaction{}, blockerr.NewTransactionFormat("invalid from address %q", in.From)
	}
	tx := Transaction{
		From:     common.HexToAddress(in.From),
		GasLimit: in.GasLimit,
		Nonce:    in.Nonce,
	}
	if in.To != nil && *in.To != "" {
		if !common.IsHexAddress(*in.To) {
			return Transaction{}, blockerr.NewTransactionFormat("invalid to address %q", *in.To)
		}
		addr := common.HexToAddress(*in.To)
		tx.To = &addr
	}
	val, err := parseHexU256(in.Value)
	if err != nil {
		return Transaction{}, err
	}
	tx.Value = val

	data, err := parseHexBytes(in.Data)
	if err != nil {
		return Transaction{}, err
	}
	tx.Data = data

	if in.GasPrice != "" {
		gp, err := parseHexU256(in.GasPrice)
		if err != nil {
			return Transaction{}, err
		}
		tx.GasPrice = gp
	}
	if in.ChainID != "" {
		cid, err := parseHexU256(in.ChainID)
		if err != nil {
			return Transaction{}, err
		}
		tx.ChainID = cid
	}
	if in.Hash != "" {
		if !strings.HasPrefix(in.Hash, "0x") || len(in.Hash) != 66 {
			return Transaction{}, blockerr.NewTransactionFormat("hash %q is not a 32-byte 0x hash", in.Hash)
		}
		h := common.HexToHash(in.Hash)
		tx.Hash = &h
	}
	return tx, nil
}

// rlpTransaction is the legacy-form field order RLP([nonce, gas_price,
// gas_limit, to, value, data]) used only to compute the transactions-root
// leaf value, per spec §6.
type rlpTransaction struct {
	Nonce    uint64
	GasPrice []byte
	GasLimit uint64
	To       []byte // empty string for contract creation
	Value    []byte
	Data     []byte
}

// EncodeRLP produces the transactions-root leaf value for this transaction.
func (t Transaction) EncodeRLP() ([]byte, error) {
	var to []byte
	if t.To != nil {
		to = t.To.Bytes()
	}
	gasPrice := t.EffectiveGasPrice()
	value := t.Value
	if value == nil {
		value = uint256.NewInt(0)
	}
	return rlp.EncodeToBytes(rlpTransaction{
		Nonce:    t.Nonce,
		GasPrice: gasPrice.Bytes(),
		GasLimit: t.GasLimit,
		To:       to,
		Value:    value.Bytes(),
		Data:     t.Data,
	})
}
