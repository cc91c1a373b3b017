package toolchain

import "sync"

// A DirectoryCache maps directories to the Toolchain resolved for them.
// It lives for the duration of one scan; nothing is remembered between scans.
type DirectoryCache struct {
	entries      map[string]Toolchain
	mutex        sync.RWMutex
	hits, misses int
}

// NewDirectoryCache returns a new, empty DirectoryCache.
func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{entries: map[string]Toolchain{}}
}

// Get returns the cached toolchain for a directory, and whether there was one.
func (c *DirectoryCache) Get(dir string) (Toolchain, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	tc, present := c.entries[dir]
	if present {
		c.hits++
	} else {
		c.misses++
	}
	return tc, present
}

// Put stores the toolchain for a directory.
func (c *DirectoryCache) Put(dir string, tc Toolchain) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[dir] = tc
}

// Len returns the number of directories in the cache.
func (c *DirectoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Stats returns the number of hits & misses the cache has had.
func (c *DirectoryCache) Stats() (hits, misses int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.hits, c.misses
}
