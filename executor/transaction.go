// Package executor implements the Transaction Executor and Block Executor:
// per-transaction validation and environment construction, and the
// per-block orchestration loop that drives them against the State Store.
package executor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/ethercoretech/blockexec/blockerr"
	"github.com/ethercoretech/blockexec/evm"
	"github.com/ethercoretech/blockexec/schema"
	"github.com/ethercoretech/blockexec/store"
)

// TxExecutor runs one transaction at a time: pre-validation against the
// current account state, then delegation to a fresh evm.Adapter.
type TxExecutor struct {
	db *store.Store
}

// NewTxExecutor constructs a TxExecutor over db.
func NewTxExecutor(db *store.Store) *TxExecutor {
	return &TxExecutor{db: db}
}

// Validate runs the pre-validation checks of spec §4.5, in order:
// gas_limit > 0, nonce-too-low, insufficient-funds. A higher-than-expected
// nonce is permitted and deferred to the interpreter.
func (e *TxExecutor) Validate(tx schema.Transaction) error {
	if tx.GasLimit == 0 {
		return blockerr.InvalidGas
	}

	acc, exists, err := e.db.GetAccount(tx.From)
	if err != nil {
		return err
	}
	if exists && tx.Nonce < acc.Nonce {
		return &blockerr.NonceTooLow{Expected: acc.Nonce, Got: tx.Nonce}
	}

	gasLimit := new(uint256.Int).SetUint64(tx.GasLimit)
	required := new(uint256.Int).Mul(gasLimit, tx.EffectiveGasPrice())
	value := tx.Value
	if value == nil {
		value = uint256.NewInt(0)
	}
	required = new(uint256.Int).Add(required, value)

	balance := uint256.NewInt(0)
	if exists {
		balance = acc.Balance
	}
	if balance.Cmp(required) < 0 {
		return &blockerr.InsufficientFunds{
			Required:  required.String(),
			Available: balance.String(),
		}
	}
	return nil
}

// Execute validates then runs tx against a fresh evm.Adapter bound to the
// store's active transaction, returning the translated result.
func (e *TxExecutor) Execute(tx schema.Transaction, env evm.BlockEnv, blockHashFn func(uint64) common.Hash) (*evm.ExecutionResult, error) {
	if err := e.Validate(tx); err != nil {
		log.Debug("executor: transaction failed pre-validation", "from", tx.From, "nonce", tx.Nonce, "err", err)
		return nil, err
	}
	adapter := evm.NewAdapter(e.db, blockHashFn)
	result, err := adapter.Execute(tx, env)
	if err != nil {
		return nil, fmt.Errorf("executor: execute transaction from %s: %w", tx.From, err)
	}
	return result, nil
}
