package executor

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethercoretech/blockexec/blockerr"
	"github.com/ethercoretech/blockexec/evm"
	"github.com/ethercoretech/blockexec/schema"
	"github.com/ethercoretech/blockexec/store"
	"github.com/ethercoretech/blockexec/trie"
)

// BlockExecutor orchestrates one block's execution against the State
// Store: begin transaction, run each input transaction through a
// TxExecutor, compute the three roots, seal the header, save the block,
// commit (or roll back on a fatal error).
type BlockExecutor struct {
	db  *store.Store
	txr *TxExecutor
}

// NewBlockExecutor constructs a BlockExecutor over db.
func NewBlockExecutor(db *store.Store) *BlockExecutor {
	return &BlockExecutor{db: db, txr: NewTxExecutor(db)}
}

// BlockExecutionResult is the return value of ExecuteBlock, per spec §6's
// execute_block contract.
type BlockExecutionResult struct {
	Block            schema.Block
	Receipts         []schema.Receipt
	ExecutionResults []*evm.ExecutionResult
	TotalGasUsed     uint64
	SuccessfulTxs    uint64
	FailedTxs        uint64
}

// txHash derives the canonical transaction hash: the caller-supplied
// 32-byte hash if present, otherwise sha256 of the stringified positional
// identifier as a deterministic placeholder, per spec §4.6 step 3a.
func txHash(tx schema.Transaction, blockNumber uint64, index int) common.Hash {
	if tx.Hash != nil {
		return *tx.Hash
	}
	placeholder := fmt.Sprintf("block:%d:tx:%d", blockNumber, index)
	sum := sha256.Sum256([]byte(placeholder))
	return common.BytesToHash(sum[:])
}

func (e *BlockExecutor) blockHashFn(number uint64) common.Hash {
	h, ok, err := e.db.GetBlockHash(number)
	if err != nil || !ok {
		return common.Hash{}
	}
	return h
}

// ExecuteBlock runs the full block algorithm of spec §4.6.
func (e *BlockExecutor) ExecuteBlock(header schema.Header, txs []schema.Transaction) (*BlockExecutionResult, error) {
	if err := e.db.BeginTransaction(); err != nil {
		return nil, err
	}

	env := evm.BlockEnv{
		Number:    header.Number,
		Timestamp: header.Timestamp,
		GasLimit:  header.GasLimit,
	}

	result := &BlockExecutionResult{}
	receiptByIndex := make(map[int]schema.Receipt)
	var totalGasUsed uint64

	for i, tx := range txs {
		hash := txHash(tx, header.Number, i)

		execResult, err := e.txr.Execute(tx, env, e.blockHashFn)
		if err != nil {
			if blockerr.IsFatal(err) {
				log.Error("block executor: fatal error, rolling back", "block", header.Number, "tx_index", i, "err", err)
				_ = e.db.RollbackTransaction()
				return nil, err
			}
			log.Debug("block executor: skipping invalid transaction", "block", header.Number, "tx_index", i, "err", err)
			result.FailedTxs++
			result.ExecutionResults = append(result.ExecutionResults, nil)
			continue
		}

		totalGasUsed += execResult.GasUsed
		status := uint8(0)
		if execResult.Success {
			status = 1
			result.SuccessfulTxs++
		} else {
			result.FailedTxs++
		}

		receipt := schema.Receipt{
			TransactionHash:   hash,
			TransactionIndex:  uint64(i),
			BlockNumber:       header.Number,
			From:              tx.From,
			To:                tx.To,
			ContractAddress:   execResult.ContractAddress,
			GasUsed:           execResult.GasUsed,
			CumulativeGasUsed: totalGasUsed,
			Status:            status,
			Logs:              execResult.Logs,
		}
		receipt.LogsBloom = trie.LogsBloom(receipt.Logs)
		receiptByIndex[i] = receipt
		result.ExecutionResults = append(result.ExecutionResults, execResult)
	}

	// Receipts are emitted in original transaction-index order, with
	// failed-validation gaps simply absent (spec §7's sparse-by-index
	// mapping); the ordered slice below skips them.
	for i := range txs {
		if r, ok := receiptByIndex[i]; ok {
			result.Receipts = append(result.Receipts, r)
		}
	}

	txRoot, err := trie.TransactionsRoot(txs)
	if err != nil {
		_ = e.db.RollbackTransaction()
		return nil, err
	}
	stateRoot, err := trie.StateRoot(e.db, e.db.GetChangedAccounts())
	if err != nil {
		_ = e.db.RollbackTransaction()
		return nil, err
	}
	receiptsRoot, err := trie.ReceiptsRoot(result.Receipts)
	if err != nil {
		_ = e.db.RollbackTransaction()
		return nil, err
	}

	header.TxCount = uint64(len(txs))
	header.StateRoot = stateRoot
	header.GasUsed = totalGasUsed
	header.TransactionsRoot = txRoot
	header.ReceiptsRoot = receiptsRoot

	block := schema.Block{Header: header, Transactions: txs}
	if err := e.db.SaveBlock(block); err != nil {
		_ = e.db.RollbackTransaction()
		return nil, err
	}
	if err := e.db.CommitTransaction(); err != nil {
		return nil, err
	}

	blockHash := header.Hash()
	for i := range result.Receipts {
		result.Receipts[i].BlockHash = blockHash
	}

	result.Block = block
	result.TotalGasUsed = totalGasUsed
	log.Info("block executor: committed block", "number", header.Number, "successful_txs", result.SuccessfulTxs, "failed_txs", result.FailedTxs, "gas_used", totalGasUsed)
	return result, nil
}
