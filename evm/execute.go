package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtracing "github.com/ethereum/go-ethereum/core/tracing"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/ethercoretech/blockexec/blockerr"
	"github.com/ethercoretech/blockexec/schema"
	"github.com/ethercoretech/blockexec/store"
	"github.com/ethercoretech/blockexec/tracing"
)

// BlockEnv is the block environment the interpreter's BlockContext is
// built from: number, timestamp, gas limit (spec §4.6's "block environment").
type BlockEnv struct {
	Number    uint64
	Timestamp uint64
	GasLimit  uint64
	Coinbase  common.Address
}

// ExecutionResult is the adapter's translation of the interpreter's
// tagged-union outcome, per spec §4.4.
type ExecutionResult struct {
	Success         bool
	GasUsed         uint64
	Output          []byte
	ContractAddress *common.Address
	GasRefund       uint64
	Logs            []schema.Log
}

func canTransfer(db gethvm.StateDB, addr common.Address, amount *uint256.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

func transfer(db gethvm.StateDB, sender, recipient common.Address, amount *uint256.Int) {
	db.SubBalance(sender, amount, gethtracing.BalanceChangeTransfer)
	db.AddBalance(recipient, amount, gethtracing.BalanceChangeTransfer)
}

// intrinsicGas is the flat per-transaction base cost plus calldata cost,
// the same formula go-ethereum's core.IntrinsicGas applies before handing
// the remaining gas to the interpreter.
func intrinsicGas(data []byte, isCreation bool) uint64 {
	gas := params.TxGas
	if isCreation {
		gas = params.TxGasContractCreation
	}
	if len(data) == 0 {
		return gas
	}
	var nonZero uint64
	for _, b := range data {
		if b != 0 {
			nonZero++
		}
	}
	zero := uint64(len(data)) - nonZero
	gas += nonZero * params.TxDataNonZeroGasEIP2028
	gas += zero * params.TxDataZeroGas
	return gas
}

func (a *Adapter) blockContext(env BlockEnv) gethvm.BlockContext {
	return gethvm.BlockContext{
		CanTransfer: canTransfer,
		Transfer:    transfer,
		GetHash:     a.blockHash,
		Coinbase:    env.Coinbase,
		GasLimit:    env.GasLimit,
		BlockNumber: new(big.Int).SetUint64(env.Number),
		Time:        env.Timestamp,
		Difficulty:  big.NewInt(0),
		BaseFee:     big.NewInt(0),
		Random:      &common.Hash{},
	}
}

// Execute drives one transaction through the interpreter: builds the
// block/tx contexts, dispatches Call or Create depending on tx.To, and
// translates the result. On success or ordinary revert it materializes the
// adapter's journal into the State Store's active transaction buffer via
// flush; on an interpreter halt it returns a fatal *blockerr.EVM and
// leaves the journal unflushed.
func (a *Adapter) Execute(tx schema.Transaction, env BlockEnv) (*ExecutionResult, error) {
	chainConfig, rules := Rules()
	statedb := gethvm.StateDB(a)

	evm := gethvm.NewEVM(a.blockContext(env), statedb, chainConfig, gethvm.Config{})
	evm.SetTxContext(gethvm.TxContext{
		Origin:   tx.From,
		GasPrice: tx.EffectiveGasPrice().ToBig(),
	})

	var dest *common.Address
	if !tx.IsCreation() {
		dest = tx.To
	}
	a.Prepare(rules, tx.From, env.Coinbase, dest, gethvm.ActivePrecompiles(rules), nil)

	value := tx.Value
	if value == nil {
		value = uint256.NewInt(0)
	}
	caller := gethvm.AccountRef(tx.From)

	// Buy gas upfront, mirroring go-ethereum's state-transition sequence:
	// the interpreter itself never charges intrinsic gas. The sender's
	// nonce is bumped explicitly here only for a Call; evm.Create bumps
	// the caller's nonce itself (using its pre-bump value to derive
	// contractAddr), so bumping it again here would double-increment it
	// and shift the deployed address off the spec's formula.
	gasPrice := tx.EffectiveGasPrice()
	gasCost := new(uint256.Int).Mul(new(uint256.Int).SetUint64(tx.GasLimit), gasPrice)
	a.SubBalance(tx.From, gasCost, gethtracing.BalanceChangeUnspecified)

	// The interpreter charges only opcode-level gas; the flat per-tx base
	// cost (plus calldata cost) is a state-transition concept charged here,
	// the same way go-ethereum's own IntrinsicGas does it.
	intrinsic := intrinsicGas(tx.Data, tx.IsCreation())
	callGas := tx.GasLimit
	if intrinsic > callGas {
		callGas = 0
	} else {
		callGas -= intrinsic
	}

	var (
		output       []byte
		leftOverGas  uint64
		vmErr        error
		contractAddr *common.Address
	)
	if tx.IsCreation() {
		ret, addr, left, err := evm.Create(caller, tx.Data, callGas, value)
		output, leftOverGas, vmErr = ret, left, err
		if err == nil {
			contractAddr = &addr
		}
	} else {
		a.SetNonce(tx.From, a.GetNonce(tx.From)+1)
		ret, left, err := evm.Call(caller, *tx.To, tx.Data, callGas, value)
		output, leftOverGas, vmErr = ret, left, err
	}

	// Refund: capped portion of AddRefund/SubRefund bookkeeping (EIP-3529,
	// one fifth of the gas actually used) plus whatever gas was never spent.
	gasUsedBeforeRefund := intrinsic + (callGas - leftOverGas)
	cappedRefund := a.GetRefund()
	if maxRefund := gasUsedBeforeRefund / params.RefundQuotientEIP3529; cappedRefund > maxRefund {
		cappedRefund = maxRefund
	}
	gasRemaining := leftOverGas + cappedRefund
	gasUsed := tx.GasLimit - gasRemaining
	a.AddBalance(tx.From, new(uint256.Int).Mul(new(uint256.Int).SetUint64(gasRemaining), gasPrice), gethtracing.BalanceChangeUnspecified)

	if isHalt(vmErr) {
		log.Error("evm adapter: interpreter halt", "tx_from", tx.From, "err", vmErr)
		return nil, &blockerr.EVM{Reason: vmErr.Error()}
	}

	result := &ExecutionResult{
		GasUsed: gasUsed,
		Output:  output,
	}
	if vmErr != nil {
		// An ordinary revert (or any other per-call VM error short of a
		// halt) yields a failed receipt, not an engine error.
		result.Success = false
	} else {
		result.Success = true
		result.ContractAddress = contractAddr
		result.GasRefund = a.GetRefund()
		result.Logs = a.collectLogs(env, tx)
	}

	if err := a.flush(); err != nil {
		return nil, err
	}
	return result, nil
}

// isHalt classifies interpreter errors that represent an internal
// inconsistency (out-of-gas on an unexpected path, invalid jump, depth
// overflow, etc.) as distinct from an intentional REVERT. go-ethereum
// reports both via the same Call/Create error return; gethvm.ErrExecutionReverted
// is the only one that is a deliberate revert rather than a halt.
func isHalt(err error) bool {
	if err == nil {
		return false
	}
	return err != gethvm.ErrExecutionReverted
}

func (a *Adapter) collectLogs(env BlockEnv, tx schema.Transaction) []schema.Log {
	out := make([]schema.Log, len(a.logs))
	for i, l := range a.logs {
		out[i] = schema.Log{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: env.Number,
			TxIndex:     uint64(l.TxIndex),
			Index:       uint64(i),
		}
	}
	return out
}

// flush materializes every touched/destructed account in the adapter's
// journal into the State Store's active transaction buffer, per spec
// §4.4's apply-deltas rule: self-destructed accounts are deleted; touched
// accounts are upserted with their new balance/nonce/code-hash; new
// non-empty bytecode is persisted; only storage slots flagged dirty are
// written back.
func (a *Adapter) flush() error {
	for addr, ov := range a.accounts {
		if ov.destructed {
			log.Debug("evm adapter: flush", "address", addr, "reason", tracing.DeltaSelfDestruct)
			if err := a.db.DeleteAccount(addr); err != nil {
				return err
			}
			continue
		}
		if !ov.touched {
			continue
		}
		acc := schema.Account{
			Nonce:       ov.info.Nonce,
			Balance:     ov.info.Balance,
			CodeHash:    ov.info.CodeHash,
			StorageRoot: schema.EmptyTrieRoot,
		}
		if existing, exists, err := a.db.GetAccount(addr); err == nil && exists {
			acc.StorageRoot = existing.StorageRoot
		}
		if ov.codeLoaded && len(ov.code) > 0 && ov.info.CodeHash != schema.EmptyCodeHash {
			log.Debug("evm adapter: flush", "address", addr, "reason", tracing.DeltaCodeDeployed)
			if err := a.db.SetCode(ov.info.CodeHash, ov.code); err != nil {
				return err
			}
		}
		log.Debug("evm adapter: flush", "address", addr, "reason", tracing.DeltaBalanceChange, "nonce", acc.Nonce, "balance", acc.Balance)
		if err := a.db.SetAccount(addr, acc); err != nil {
			return err
		}
		for key, dirty := range ov.dirtyStorage {
			if !dirty {
				continue
			}
			log.Debug("evm adapter: flush", "address", addr, "key", key, "reason", tracing.DeltaStorageWrite)
			if err := a.db.SetStorage(addr, [32]byte(key), [32]byte(ov.storage[key])); err != nil {
				return err
			}
		}
	}
	return nil
}
