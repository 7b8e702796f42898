// Command blockexec is the administrative entrypoint over the execution
// core: genesis account funding, single-block replay, and account/storage
// inspection. It is a thin operational shell around the State Store and
// Block Executor, not part of the core's invariants.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/ethercoretech/blockexec/executor"
	"github.com/ethercoretech/blockexec/schema"
	"github.com/ethercoretech/blockexec/store"
)

func main() {
	app := &cli.App{
		Name:  "blockexec",
		Usage: "administrative CLI for the execution-layer core",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Value: "./blockexec-data", Usage: "Pebble database directory"},
		},
		Commands: []*cli.Command{
			genesisCommand,
			blockCommand,
			inspectCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("blockexec: fatal", "err", err)
		os.Exit(1)
	}
}

func openStore(c *cli.Context) (*store.Store, error) {
	return store.Open(c.String("datadir"))
}

var genesisCommand = &cli.Command{
	Name:  "genesis",
	Usage: "administrative genesis operations",
	Subcommands: []*cli.Command{
		{
			Name:  "fund",
			Usage: "credit an account balance directly (direct-mode set_account)",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "address", Required: true},
				&cli.StringFlag{Name: "balance", Required: true, Usage: "0x-prefixed hex wei amount"},
			},
			Action: func(c *cli.Context) error {
				db, err := openStore(c)
				if err != nil {
					return err
				}
				defer db.Close()

				addr := common.HexToAddress(c.String("address"))
				bal, err := uint256.FromHex(c.String("balance"))
				if err != nil {
					return fmt.Errorf("invalid balance: %w", err)
				}
				acc, exists, err := db.GetAccount(addr)
				if err != nil {
					return err
				}
				if !exists {
					acc = schema.EmptyAccount()
				}
				acc.Balance = new(uint256.Int).Add(acc.Balance, bal)
				if err := db.SetAccount(addr, acc); err != nil {
					return err
				}
				fmt.Printf("funded %s: balance now %s\n", addr, acc.Balance.String())
				return nil
			},
		},
	},
}

// blockFile is the JSON shape `block exec` reads from disk.
type blockFile struct {
	Number       uint64                     `json:"number"`
	ParentHash   string                     `json:"parent_hash"`
	Timestamp    uint64                     `json:"timestamp"`
	GasLimit     uint64                     `json:"gas_limit"`
	Transactions []schema.TransactionInput  `json:"transactions"`
}

var blockCommand = &cli.Command{
	Name:  "block",
	Usage: "block replay operations",
	Subcommands: []*cli.Command{
		{
			Name:      "exec",
			Usage:     "execute a JSON block description against the store",
			ArgsUsage: "<file.json>",
			Action: func(c *cli.Context) error {
				if c.Args().Len() != 1 {
					return fmt.Errorf("expected exactly one argument: <file.json>")
				}
				raw, err := os.ReadFile(c.Args().First())
				if err != nil {
					return err
				}
				var bf blockFile
				if err := json.Unmarshal(raw, &bf); err != nil {
					return err
				}

				txs := make([]schema.Transaction, len(bf.Transactions))
				for i, in := range bf.Transactions {
					tx, err := in.Parse()
					if err != nil {
						return fmt.Errorf("transaction %d: %w", i, err)
					}
					txs[i] = tx
				}

				db, err := openStore(c)
				if err != nil {
					return err
				}
				defer db.Close()

				header := schema.Header{
					Number:     bf.Number,
					ParentHash: common.HexToHash(bf.ParentHash),
					Timestamp:  bf.Timestamp,
					GasLimit:   bf.GasLimit,
				}
				be := executor.NewBlockExecutor(db)
				result, err := be.ExecuteBlock(header, txs)
				if err != nil {
					return err
				}

				fmt.Printf("block %d: state_root=%s transactions_root=%s receipts_root=%s gas_used=%d successful=%d failed=%d\n",
					result.Block.Header.Number,
					result.Block.Header.StateRoot,
					result.Block.Header.TransactionsRoot,
					result.Block.Header.ReceiptsRoot,
					result.TotalGasUsed,
					result.SuccessfulTxs,
					result.FailedTxs,
				)
				for _, r := range result.Receipts {
					fmt.Printf("  tx %s: status=%d gas_used=%d\n", r.TransactionHash, r.Status, r.GasUsed)
				}
				return nil
			},
		},
	},
}

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "read-only store inspection",
	Subcommands: []*cli.Command{
		{
			Name:      "account",
			ArgsUsage: "<address>",
			Action: func(c *cli.Context) error {
				if c.Args().Len() != 1 {
					return fmt.Errorf("expected exactly one argument: <address>")
				}
				db, err := openStore(c)
				if err != nil {
					return err
				}
				defer db.Close()

				addr := common.HexToAddress(c.Args().First())
				acc, exists, err := db.GetAccount(addr)
				if err != nil {
					return err
				}
				if !exists {
					fmt.Printf("%s: absent\n", addr)
					return nil
				}
				fmt.Printf("%s: nonce=%d balance=%s storage_root=%s code_hash=%s\n",
					addr, acc.Nonce, acc.Balance.String(), acc.StorageRoot, acc.CodeHash)
				return nil
			},
		},
		{
			Name:      "storage",
			ArgsUsage: "<address> <key>",
			Action: func(c *cli.Context) error {
				if c.Args().Len() != 2 {
					return fmt.Errorf("expected exactly two arguments: <address> <key>")
				}
				db, err := openStore(c)
				if err != nil {
					return err
				}
				defer db.Close()

				addr := common.HexToAddress(c.Args().Get(0))
				key := common.HexToHash(c.Args().Get(1))
				val, err := db.GetStorage(addr, [32]byte(key))
				if err != nil {
					return err
				}
				fmt.Printf("%s[%s] = %s\n", addr, key, common.Hash(val))
				return nil
			},
		},
	},
}
