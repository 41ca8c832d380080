package orchestrator

import (
	"context"
	"sync"

	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Panel is the subset of *xtream.Client used by the orchestrators.
type Panel interface {
	CategoryLister
	ListChannels(ctx context.Context, categoryID string) ([]xtream.Channel, error)
	ListMovies(ctx context.Context, categoryID string) ([]xtream.Movie, error)
	ListSeries(ctx context.Context, categoryID string) ([]xtream.Series, error)
	FetchProgramGuide(ctx context.Context, streamID int64) ([]xtream.EPGProgram, error)
	FetchMovieDetail(ctx context.Context, vodID int64) (*xtream.MovieDetail, error)
	FetchSeriesDetail(ctx context.Context, seriesID int64) (*xtream.SeriesDetail, error)
}

var _ Panel = (*xtream.Client)(nil)

// Catalog pairs the categories of a content type with its item collection.
type Catalog[T any] struct {
	*Collection[T]
	Categories *Categories

	autoSelect bool
	closeOnce  sync.Once
	closed     chan struct{}
	wg         sync.WaitGroup
}

func newCatalog[T any](ct xtream.ContentType, panel Panel, src Source[T], autoSelect bool, opts []Option) *Catalog[T] {
	categories := NewCategories(ct, panel, opts...)
	return &Catalog[T]{
		Collection: NewCollection(src, categories, opts...),
		Categories: categories,
		autoSelect: autoSelect,
		closed:     make(chan struct{}),
	}
}

// Start loads the categories. Catalogs that auto-select then load the first
// category unless one was already chosen. The channel closes when both steps
// are done.
func (c *Catalog[T]) Start() <-chan struct{} {
	loaded := c.Categories.Load()
	if !c.autoSelect {
		return loaded
	}

	done := make(chan struct{})
	select {
	case <-c.closed:
		close(done)
		return done
	default:
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		select {
		case <-loaded:
		case <-c.closed:
			return
		}

		if c.State().CategoryID != "" {
			return
		}
		categories := c.Categories.State().Categories
		if len(categories) == 0 {
			return
		}
		first := categories[0]
		select {
		case <-c.LoadCategory(first.ID.String(), first.Name):
		case <-c.closed:
		}
	}()
	return done
}

// SelectCategory loads a category by id, taking its name from the cached
// category list.
func (c *Catalog[T]) SelectCategory(categoryID string) <-chan struct{} {
	cat, _ := c.Categories.Find(categoryID)
	return c.LoadCategory(categoryID, cat.Name)
}

// Close stops background work and ends all subscriptions.
func (c *Catalog[T]) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
	c.wg.Wait()
	c.Collection.Close()
	c.Categories.Close()
}
