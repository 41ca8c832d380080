package streamurl

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

func testCreds() xtream.Credentials {
	return xtream.Credentials{Host: "panel.example", Port: "8080", Username: "u", Password: "p"}
}

func TestCache_ClearsWhenBoundExceeded(t *testing.T) {
	c := NewCache(DefaultMaxEntries)

	for i := 0; i < DefaultMaxEntries; i++ {
		c.GetOrBuild(Key{KindLive, strconv.Itoa(i)}, func() string { return "u" })
	}
	assert.Equal(t, DefaultMaxEntries, c.Len())
	assert.Equal(t, 0, c.Clears())

	c.GetOrBuild(Key{KindLive, "1000"}, func() string { return "u" })
	assert.Equal(t, 0, c.Len(), "the 1001st distinct insert clears everything")
	assert.Equal(t, 1, c.Clears())
}

func TestCache_HitDoesNotRebuild(t *testing.T) {
	c := NewCache(10)
	builds := 0
	build := func() string { builds++; return "x" }

	c.GetOrBuild(Key{KindMovie, "1"}, build)
	c.GetOrBuild(Key{KindMovie, "1"}, build)
	c.GetOrBuild(Key{KindEpisode, "1"}, build)

	assert.Equal(t, 2, builds, "same id under another kind is a separate entry")
	assert.Equal(t, 2, c.Len())
}

func TestBuilder_IsDeterministic(t *testing.T) {
	b := NewBuilder(testCreds(), nil)

	first := b.Live("101")
	second := b.Live("101")
	assert.Equal(t, first, second)
	assert.Equal(t, xtream.LiveStreamURL(testCreds(), "101"), first)

	assert.Equal(t, "http://panel.example:8080/movie/u/p/7.mkv", b.For(KindMovie, "7", "mkv"))
	assert.Equal(t, "http://panel.example:8080/series/u/p/9.mp4", b.For(KindEpisode, "9", ""))
	assert.Equal(t, 3, b.Cache().Len())

	b.Cache().Reset()
	assert.Equal(t, 0, b.Cache().Len())
}

func TestBuilder_FirstExtensionWins(t *testing.T) {
	b := NewBuilder(testCreds(), nil)

	assert.Equal(t, "http://panel.example:8080/movie/u/p/5.mp4", b.Movie("5", "mp4"))
	assert.Equal(t, "http://panel.example:8080/movie/u/p/5.mp4", b.Movie("5", "mkv"))
	assert.Equal(t, "http://panel.example:8080/series/u/p/5.mkv", b.Episode("5", "mkv"))
	assert.Equal(t, "http://panel.example:8080/series/u/p/5.mkv", b.Episode("5", "avi"))

	b.Cache().Reset()
	assert.Equal(t, "http://panel.example:8080/movie/u/p/5.mkv", b.Movie("5", "mkv"))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.GetOrBuild(Key{KindLive, strconv.Itoa(g*1000 + i)}, func() string { return "u" })
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	assert.Positive(t, c.Clears())
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, KindLive, KindFor(xtream.ContentLive))
	assert.Equal(t, KindMovie, KindFor(xtream.ContentMovie))
	assert.Equal(t, KindEpisode, KindFor(xtream.ContentSeries))
}
