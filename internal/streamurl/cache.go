// Package streamurl memoizes playable stream URLs for a session.
package streamurl

import (
	"strings"
	"sync"

	"github.com/jmylchreest/xtreamer/internal/metrics"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// DefaultMaxEntries is the size bound past which the cache is cleared.
const DefaultMaxEntries = 1000

// Kind is the URL shape of a stream.
type Kind string

const (
	KindLive    Kind = "live"
	KindMovie   Kind = "movie"
	KindEpisode Kind = "series"
)

// KindFor maps a catalog to the URL shape of its playable items.
func KindFor(ct xtream.ContentType) Kind {
	switch ct {
	case xtream.ContentMovie:
		return KindMovie
	case xtream.ContentSeries:
		return KindEpisode
	default:
		return KindLive
	}
}

// Key identifies a cached URL. Ids are only unique within a content type,
// so the kind is part of the key.
type Key struct {
	Kind Kind
	ID   string
}

// Cache is an unbounded map that is cleared wholesale as soon as an insert
// pushes it past maxEntries. There is no per-entry eviction.
type Cache struct {
	mu         sync.Mutex
	entries    map[Key]string
	maxEntries int
	clears     int
}

// NewCache creates a cache. A non-positive bound uses DefaultMaxEntries.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[Key]string),
		maxEntries: maxEntries,
	}
}

// GetOrBuild returns the cached URL for key, building and storing it on a miss.
func (c *Cache) GetOrBuild(key Key, build func() string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.entries[key]; ok {
		return u
	}

	u := build()
	c.entries[key] = u
	if len(c.entries) > c.maxEntries {
		clear(c.entries)
		c.clears++
		metrics.StreamURLCacheClears.Inc()
	}
	return u
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clears returns how many times the bound was exceeded.
func (c *Cache) Clears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

// Reset drops every entry, e.g. on logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Builder binds credentials to a cache.
type Builder struct {
	creds xtream.Credentials
	cache *Cache
}

// NewBuilder creates a builder. A nil cache gets a default one.
func NewBuilder(creds xtream.Credentials, cache *Cache) *Builder {
	if cache == nil {
		cache = NewCache(DefaultMaxEntries)
	}
	return &Builder{creds: creds.Normalized(), cache: cache}
}

// Cache exposes the underlying cache.
func (b *Builder) Cache() *Cache {
	return b.cache
}

// Live returns the HLS URL of a live channel.
func (b *Builder) Live(streamID string) string {
	return b.cache.GetOrBuild(Key{KindLive, streamID}, func() string {
		return xtream.LiveStreamURL(b.creds, streamID)
	})
}

// Movie returns the URL of a movie with the given container extension.
// URLs are memoized per stream id, so the extension of the first call wins
// until the cache is cleared.
func (b *Builder) Movie(streamID, ext string) string {
	return b.cache.GetOrBuild(Key{KindMovie, streamID}, func() string {
		return xtream.MovieStreamURL(b.creds, streamID, ext)
	})
}

// Episode returns the URL of a series episode. As with Movie, the first
// extension seen for an episode id is the one cached.
func (b *Builder) Episode(episodeID, ext string) string {
	return b.cache.GetOrBuild(Key{KindEpisode, episodeID}, func() string {
		return xtream.EpisodeStreamURL(b.creds, episodeID, ext)
	})
}

// For dispatches on kind. ext is ignored for live streams.
func (b *Builder) For(kind Kind, id, ext string) string {
	switch Kind(strings.ToLower(string(kind))) {
	case KindMovie:
		return b.Movie(id, ext)
	case KindEpisode:
		return b.Episode(id, ext)
	default:
		return b.Live(id)
	}
}
