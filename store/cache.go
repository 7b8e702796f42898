package store

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

// accountCodeCacheSize is the entry count of the account/code LRU; both are
// small, fixed-size records so an entry budget (rather than a byte budget)
// is the natural fit, matching go-ethereum's own trie-node LRU sizing.
const accountCodeCacheSize = 4096

// storageCacheBytes sizes the fastcache byte-cache fronting storage reads,
// the same cache go-ethereum itself uses for trie nodes.
const storageCacheBytes = 8 * 1024 * 1024

// readCache fronts the persistent tables with an LRU for accounts/code and
// a byte-cache for storage slots, invalidated on every committing write so
// that post-commit reads never observe stale data.
type readCache struct {
	accounts *lru.Cache
	code     *lru.Cache
	storage  *fastcache.Cache
}

func newReadCache() *readCache {
	accounts, err := lru.New(accountCodeCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which is a constant here
	}
	code, err := lru.New(accountCodeCacheSize)
	if err != nil {
		panic(err)
	}
	return &readCache{
		accounts: accounts,
		code:     code,
		storage:  fastcache.New(storageCacheBytes),
	}
}

func (c *readCache) getAccount(addr common.Address) ([]byte, bool) {
	v, ok := c.accounts.Get(addr)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *readCache) setAccount(addr common.Address, encoded []byte) {
	c.accounts.Add(addr, encoded)
}

func (c *readCache) invalidateAccount(addr common.Address) {
	c.accounts.Remove(addr)
}

func (c *readCache) getCode(hash common.Hash) ([]byte, bool) {
	v, ok := c.code.Get(hash)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *readCache) setCode(hash common.Hash, code []byte) {
	c.code.Add(hash, code)
}

func (c *readCache) getStorage(key []byte) ([]byte, bool) {
	v := c.storage.Get(nil, key)
	if v == nil {
		return nil, false
	}
	return v, true
}

func (c *readCache) setStorage(key, value []byte) {
	c.storage.Set(key, value)
}

func (c *readCache) invalidateStorage(key []byte) {
	c.storage.Del(key)
}
