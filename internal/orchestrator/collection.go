package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/jmylchreest/xtreamer/internal/state"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Defaults shared by the list orchestrators.
const (
	DefaultListReload  = 5 * time.Second
	DefaultSearchLimit = 20
)

// View names what a ListState is showing.
type View string

const (
	ViewCategory  View = "category"
	ViewSearch    View = "search"
	ViewFavorites View = "favorites"
)

// ListState is the published snapshot of a Collection.
type ListState[T any] struct {
	View         View   `json:"view"`
	CategoryID   string `json:"category_id,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	Query        string `json:"query,omitempty"`
	Items        []T    `json:"items"`
	IsLoading    bool   `json:"is_loading"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Source describes how a Collection fetches and identifies its items.
type Source[T any] struct {
	// Fetch lists the items of a category.
	Fetch func(ctx context.Context, categoryID string) ([]T, error)
	// ID returns the stream id of an item.
	ID func(T) string
	// Name returns the display name used by search.
	Name func(T) string
}

// selection is the category last asked for with LoadCategory.
type selection struct {
	id   string
	name string
}

// Collection is a remote list fetched per category, cached per category id
// and indexed by item id as categories are browsed. It backs the channel,
// movie and series orchestrators.
type Collection[T any] struct {
	src        Source[T]
	categories *Categories
	reload     time.Duration
	limit      int
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	cache    map[string][]T
	loadedAt map[string]time.Time
	index    map[string]T
	order    []string
	retry    func() <-chan struct{}
	current  selection

	value *state.Value[ListState[T]]
	slot  *taskSlot
}

// NewCollection creates a collection over src. categories supplies the
// category order used by search fallback and favorites resolution.
func NewCollection[T any](src Source[T], categories *Categories, opts ...Option) *Collection[T] {
	o := buildOptions(opts)
	return &Collection[T]{
		src:        src,
		categories: categories,
		reload:     o.listReload,
		limit:      o.searchLimit,
		now:        o.now,
		logger:     o.logger.With(slog.String("component", "collection"), slog.String("content_type", string(categories.ContentType()))),
		cache:      make(map[string][]T),
		loadedAt:   make(map[string]time.Time),
		index:      make(map[string]T),
		value:      state.NewValue(ListState[T]{View: ViewCategory, Items: []T{}}),
		slot:       newTaskSlot(),
	}
}

// State returns the current snapshot.
func (c *Collection[T]) State() ListState[T] {
	return c.value.Get()
}

// Subscribe streams snapshots, starting with the current one.
func (c *Collection[T]) Subscribe() *state.Subscription[ListState[T]] {
	return c.value.Subscribe()
}

// Lookup returns an indexed item by id.
func (c *Collection[T]) Lookup(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.index[id]
	return item, ok
}

// Indexed returns how many distinct items have been indexed.
func (c *Collection[T]) Indexed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *Collection[T]) remember(retry func() <-chan struct{}) {
	c.mu.Lock()
	c.retry = retry
	c.mu.Unlock()
}

// Retry re-runs the last intent, bypassing the reload interval.
func (c *Collection[T]) Retry() <-chan struct{} {
	c.mu.Lock()
	retry := c.retry
	c.mu.Unlock()
	if retry == nil {
		return closedChan()
	}
	return retry()
}

// cached returns the items of a category and whether they are within the
// reload interval. An empty cache is never fresh.
func (c *Collection[T]) cached(categoryID string) ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.cache[categoryID]
	if !ok || len(items) == 0 {
		return items, false
	}
	return items, c.now().Sub(c.loadedAt[categoryID]) < c.reload
}

func (c *Collection[T]) store(categoryID string, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[categoryID] = items
	c.loadedAt[categoryID] = c.now()
	for _, item := range items {
		id := c.src.ID(item)
		if _, seen := c.index[id]; !seen {
			c.order = append(c.order, id)
		}
		c.index[id] = item
	}
}

func (c *Collection[T]) isCached(categoryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[categoryID]
	return ok
}

// LoadCategory shows the items of a category. Inside the reload interval a
// non-empty cached result is published without a network call.
func (c *Collection[T]) LoadCategory(categoryID, name string) <-chan struct{} {
	c.mu.Lock()
	c.retry = func() <-chan struct{} { return c.fetchCategory(categoryID, name) }
	c.current = selection{id: categoryID, name: name}
	c.mu.Unlock()

	if items, fresh := c.cached(categoryID); fresh {
		return c.slot.now(func() {
			c.value.Set(ListState[T]{View: ViewCategory, CategoryID: categoryID, CategoryName: name, Items: items})
		})
	}
	return c.fetchCategory(categoryID, name)
}

func (c *Collection[T]) fetchCategory(categoryID, name string) <-chan struct{} {
	return c.slot.start(func(ctx context.Context, commit commitFunc) {
		stale, _ := c.cached(categoryID)
		commit(func() {
			c.value.Update(func(s ListState[T]) ListState[T] {
				next := ListState[T]{View: ViewCategory, CategoryID: categoryID, CategoryName: name, Items: s.Items, IsLoading: true}
				if stale != nil {
					next.Items = stale
				}
				return next
			})
		})

		items, err := c.src.Fetch(ctx, categoryID)
		if err != nil {
			c.fail(ctx, commit, "loading category failed", err)
			return
		}

		c.store(categoryID, items)
		commit(func() {
			c.value.Set(ListState[T]{View: ViewCategory, CategoryID: categoryID, CategoryName: name, Items: items})
		})
	})
}

func (c *Collection[T]) fail(ctx context.Context, commit commitFunc, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Warn(msg, slog.String("error", err.Error()))
	commit(func() {
		c.value.Update(func(s ListState[T]) ListState[T] {
			s.IsLoading = false
			s.ErrorMessage = UserMessage(err)
			return s
		})
	})
}

// Search filters by case-folded substring of the item name. With a
// non-empty index the filter runs locally; otherwise only the first category
// is fetched and filtered. At most the search limit is returned. A blank
// query restores the current category.
func (c *Collection[T]) Search(query string) <-chan struct{} {
	query = strings.TrimSpace(query)
	if query == "" {
		c.mu.Lock()
		current := c.current
		c.mu.Unlock()
		if current.id == "" {
			return c.slot.now(func() {
				c.value.Set(ListState[T]{View: ViewCategory, Items: []T{}})
			})
		}
		return c.LoadCategory(current.id, current.name)
	}

	c.remember(func() <-chan struct{} { return c.Search(query) })

	if c.Indexed() > 0 {
		results := c.filter(query)
		return c.slot.now(func() {
			c.value.Set(ListState[T]{View: ViewSearch, Query: query, Items: results})
		})
	}

	return c.slot.start(func(ctx context.Context, commit commitFunc) {
		commit(func() {
			c.value.Set(ListState[T]{View: ViewSearch, Query: query, Items: []T{}, IsLoading: true})
		})

		categories, err := c.categories.Ensure(ctx)
		if err != nil {
			c.fail(ctx, commit, "search failed", err)
			return
		}
		if len(categories) > 0 {
			first := categories[0].ID.String()
			items, err := c.src.Fetch(ctx, first)
			if err != nil {
				c.fail(ctx, commit, "search failed", err)
				return
			}
			c.store(first, items)
		}

		results := c.filter(query)
		commit(func() {
			c.value.Set(ListState[T]{View: ViewSearch, Query: query, Items: results})
		})
	})
}

func (c *Collection[T]) filter(query string) []T {
	fold := cases.Fold()
	needle := fold.String(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	results := []T{}
	for _, id := range c.order {
		item := c.index[id]
		if strings.Contains(fold.String(c.src.Name(item)), needle) {
			results = append(results, item)
			if len(results) >= c.limit {
				break
			}
		}
	}
	return results
}

// ShowIDs publishes the items with the given ids, in that order. Ids not yet
// indexed are resolved by walking the categories that have not been fetched
// yet, one at a time, until every id is found or none are left. Ids that
// cannot be resolved are left out.
func (c *Collection[T]) ShowIDs(ids []string) <-chan struct{} {
	ids = slices.Clone(ids)
	c.remember(func() <-chan struct{} { return c.ShowIDs(ids) })

	resolved, missing := c.resolve(ids)
	if len(missing) == 0 {
		return c.slot.now(func() {
			c.value.Set(ListState[T]{View: ViewFavorites, Items: resolved})
		})
	}

	return c.slot.start(func(ctx context.Context, commit commitFunc) {
		commit(func() {
			c.value.Set(ListState[T]{View: ViewFavorites, Items: resolved, IsLoading: true})
		})

		categories, err := c.categories.Ensure(ctx)
		if err != nil {
			c.fail(ctx, commit, "resolving favorites failed", err)
			return
		}

		for _, cat := range categories {
			if len(missing) == 0 {
				break
			}
			id := cat.ID.String()
			if c.isCached(id) {
				continue
			}
			items, err := c.src.Fetch(ctx, id)
			if err != nil {
				c.fail(ctx, commit, "resolving favorites failed", err)
				return
			}
			c.store(id, items)
			resolved, missing = c.resolve(ids)
		}

		if len(missing) > 0 {
			c.logger.Debug("favorites not found in any category", slog.Any("ids", missing))
		}
		commit(func() {
			c.value.Set(ListState[T]{View: ViewFavorites, Items: resolved})
		})
	})
}

func (c *Collection[T]) resolve(ids []string) (found []T, missing []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	found = []T{}
	for _, id := range ids {
		if item, ok := c.index[id]; ok {
			found = append(found, item)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// Reset drops every cached category and the index.
func (c *Collection[T]) Reset() {
	c.slot.now(func() {
		c.mu.Lock()
		clear(c.cache)
		clear(c.loadedAt)
		clear(c.index)
		c.order = nil
		c.retry = nil
		c.current = selection{}
		c.mu.Unlock()
		c.value.Set(ListState[T]{View: ViewCategory, Items: []T{}})
	})
}

// Close cancels any load and ends subscriptions.
func (c *Collection[T]) Close() {
	c.slot.close()
	c.value.Close()
}

// itemID formats the FlexInt stream ids used by the panel models.
func itemID(v xtream.FlexInt) string {
	return v.String()
}
