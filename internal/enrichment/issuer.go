// Package enrichment adds display annotations to decode results: masked
// PANs, Luhn checks, issuer ranges and ICC tag listings. The decoder never
// calls into this package.
package enrichment

import (
	"context"
	"errors"
	"sort"
	"sync"

	"iso8583_parser/internal/storage"
)

// ErrCacheReleased is returned by Lookup on a cache with no holders.
var ErrCacheReleased = errors.New("issuer cache has no holders")

// IssuerLoader fetches the full set of issuer ranges.
type IssuerLoader interface {
	LoadIssuerRanges(ctx context.Context) ([]storage.IssuerRange, error)
}

// LoaderFunc adapts a function to IssuerLoader.
type LoaderFunc func(ctx context.Context) ([]storage.IssuerRange, error)

func (f LoaderFunc) LoadIssuerRanges(ctx context.Context) ([]storage.IssuerRange, error) {
	return f(ctx)
}

// StaticLoader serves a fixed set of ranges.
func StaticLoader(ranges ...storage.IssuerRange) IssuerLoader {
	return LoaderFunc(func(context.Context) ([]storage.IssuerRange, error) {
		return ranges, nil
	})
}

// IssuerCache holds issuer ranges in memory. Ranges are loaded on the first
// Lookup after Acquire and dropped when the last holder calls Release.
type IssuerCache struct {
	loader IssuerLoader

	mu     sync.Mutex
	refs   int
	ranges []storage.IssuerRange
	loaded bool
	loads  int
}

// NewIssuerCache returns an empty cache. Nothing is loaded until Lookup.
func NewIssuerCache(loader IssuerLoader) *IssuerCache {
	return &IssuerCache{loader: loader}
}

// Acquire registers a holder.
func (c *IssuerCache) Acquire() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

// Release drops a holder. The last release frees the loaded ranges.
func (c *IssuerCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.ranges = nil
		c.loaded = false
	}
}

// Lookup returns the most specific range containing pan. The bool is false
// when no range matches.
func (c *IssuerCache) Lookup(ctx context.Context, pan string) (storage.IssuerRange, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return storage.IssuerRange{}, false, ErrCacheReleased
	}
	if !c.loaded {
		ranges, err := c.loader.LoadIssuerRanges(ctx)
		if err != nil {
			return storage.IssuerRange{}, false, err
		}
		sorted := make([]storage.IssuerRange, len(ranges))
		copy(sorted, ranges)
		sort.SliceStable(sorted, func(i, j int) bool {
			return len(sorted[i].Start) > len(sorted[j].Start)
		})
		c.ranges = sorted
		c.loaded = true
		c.loads++
	}

	for _, r := range c.ranges {
		if r.Contains(pan) {
			return r, true, nil
		}
	}
	return storage.IssuerRange{}, false, nil
}

// Len returns the number of ranges currently held.
func (c *IssuerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ranges)
}
