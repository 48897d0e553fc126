package ns

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/foundation42/microkernel/internal/kernel"
)

const defaultPathCacheSize = 256

// lookupCache memoizes resolved path lookups (§4.7a). It is a pure
// performance shortcut to the same resolution algorithm in resolvePath;
// every mutation that could change a path's resolution invalidates the
// affected entry (or the whole cache, for mount/umount which can change
// prefix matching for many paths at once).
type lookupCache struct {
	cache *lru.Cache[string, kernel.ID]
}

func newLookupCache(size int) *lookupCache {
	if size <= 0 {
		size = defaultPathCacheSize
	}

	c, err := lru.New[string, kernel.ID](size)
	if err != nil {
		// Only returns an error for a non-positive size, which is
		// ruled out above.
		panic(err)
	}

	return &lookupCache{cache: c}
}

func (l *lookupCache) get(path string) (kernel.ID, bool) {
	return l.cache.Get(path)
}

func (l *lookupCache) put(path string, id kernel.ID) {
	l.cache.Add(path, id)
}

func (l *lookupCache) invalidate(path string) {
	l.cache.Remove(path)
}

func (l *lookupCache) clear() {
	l.cache.Purge()
}
