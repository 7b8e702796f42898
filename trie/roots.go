package trie

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/ethercoretech/blockexec/blockerr"
	"github.com/ethercoretech/blockexec/schema"
)

func bytesToU256Array(b [32]byte) *uint256.Int {
	return new(uint256.Int).SetBytes32(b[:])
}

// accountSource is the minimal store contract the root calculators need:
// read an account and enumerate its non-zero storage slots. store.Store
// satisfies this.
type accountSource interface {
	GetAccount(addr common.Address) (schema.Account, bool, error)
	GetAllStorage(addr common.Address) (map[[32]byte][32]byte, error)
}

// StorageRoot computes the root of one account's non-zero storage slots.
func StorageRoot(src accountSource, addr common.Address) (common.Hash, error) {
	slots, err := src.GetAllStorage(addr)
	if err != nil {
		return common.Hash{}, err
	}
	if len(slots) == 0 {
		return schema.EmptyTrieRoot, nil
	}
	b := NewBuilder()
	for key, val := range slots {
		u := bytesToU256Array(val)
		if u.IsZero() {
			continue
		}
		rlpVal, err := schema.EncodeStorageValueRLP(u)
		if err != nil {
			return common.Hash{}, blockerr.NewDatabase("encode storage leaf", err)
		}
		b.AddLeaf(HashStorageKey(key), rlpVal)
	}
	return b.Root(), nil
}

// StateRoot computes the state root over addrs — either the incrementally
// changed-accounts list or the full account set, per spec §4.3. Per-account
// storage roots are computed concurrently via errgroup; the final
// sort-and-insert into the trie builder is sequential.
func StateRoot(src accountSource, addrs []common.Address) (common.Hash, error) {
	type result struct {
		path  common.Hash
		value []byte
	}
	results := make([]result, len(addrs))

	g, _ := errgroup.WithContext(context.Background())
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			acc, exists, err := src.GetAccount(addr)
			if err != nil {
				return err
			}
			if !exists || acc.IsEmpty() {
				// An account that no longer exists (self-destructed or
				// never materialized) contributes no leaf.
				return nil
			}
			storageRoot, err := StorageRoot(src, addr)
			if err != nil {
				return err
			}
			acc.StorageRoot = storageRoot
			rlpVal, err := acc.EncodeRLP()
			if err != nil {
				return blockerr.NewDatabase("encode account leaf", err)
			}
			results[i] = result{path: HashAddress(addr), value: rlpVal}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return common.Hash{}, err
	}

	b := NewBuilder()
	for _, r := range results {
		if r.value == nil {
			continue
		}
		b.AddLeaf(r.path, r.value)
	}
	return b.Root(), nil
}

// TransactionsRoot computes the root over an ordered transaction list.
func TransactionsRoot(txs []schema.Transaction) (common.Hash, error) {
	b := NewBuilder()
	for i, tx := range txs {
		enc, err := tx.EncodeRLP()
		if err != nil {
			return common.Hash{}, blockerr.NewDatabase("encode transaction leaf", err)
		}
		b.AddLeaf(HashIndex(uint64(i)), enc)
	}
	return b.Root(), nil
}

// ReceiptsRoot computes the root over an ordered receipt list.
func ReceiptsRoot(receipts []schema.Receipt) (common.Hash, error) {
	b := NewBuilder()
	for i, r := range receipts {
		enc, err := r.EncodeRLP()
		if err != nil {
			return common.Hash{}, blockerr.NewDatabase("encode receipt leaf", err)
		}
		b.AddLeaf(HashIndex(uint64(i)), enc)
	}
	return b.Root(), nil
}
