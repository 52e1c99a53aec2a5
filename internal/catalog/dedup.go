package catalog

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

const dedupBloomFalsePositiveRate = 0.01

// dedupStore tracks track URIs already queued for playlist addition in the current run, so a
// song that matches the same catalog track as an earlier line in the input doesn't produce a
// duplicate add-tracks call. The Bloom filter gives a cheap "definitely not seen" fast path;
// the seen map is the authoritative membership check, and the LRU cache orders entries so the
// oldest one is evicted once more than maxURIs are held.
type dedupStore struct {
	seen      map[string]struct{}
	bloom     *bloom.BloomFilter
	lru       *lru.Cache[string, struct{}]
	mutex     sync.Mutex
	maxURIs   int
}

// newDedupStore builds a dedup store sized for maxURIs entries.
func newDedupStore(maxURIs int) *dedupStore {
	if maxURIs <= 0 {
		maxURIs = 1
	}
	// One spare slot so the LRU never evicts on its own before evictOldest runs.
	cache, _ := lru.New[string, struct{}](maxURIs + 1)
	return &dedupStore{
		seen:    make(map[string]struct{}),
		bloom:   bloom.NewWithEstimates(uint(maxURIs), dedupBloomFalsePositiveRate),
		lru:     cache,
		maxURIs: maxURIs,
	}
}

// SeenOrAdd reports whether uri was already added to the store; if not, it adds uri and
// returns false. Callers use this to filter duplicate URIs out of an add-tracks batch.
func (d *dedupStore) SeenOrAdd(uri string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.bloom.TestString(uri) {
		if _, exists := d.seen[uri]; exists {
			return true
		}
	}

	d.seen[uri] = struct{}{}
	d.bloom.AddString(uri)
	d.lru.Add(uri, struct{}{})

	if len(d.seen) > d.maxURIs {
		d.evictOldest()
	}
	return false
}

func (d *dedupStore) evictOldest() {
	oldestKey, _, ok := d.lru.GetOldest()
	if !ok {
		return
	}
	delete(d.seen, oldestKey)
	d.lru.Remove(oldestKey)
}
