package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/xtreamer/internal/state"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// DefaultCategoryReload is the minimum interval between two category loads.
const DefaultCategoryReload = 30 * time.Second

// CategoryLister is the client call the categories orchestrator needs.
type CategoryLister interface {
	ListCategories(ctx context.Context, contentType xtream.ContentType) ([]xtream.Category, error)
}

// CategoriesState is the published snapshot of one catalog's categories.
type CategoriesState struct {
	ContentType  xtream.ContentType `json:"content_type"`
	Categories   []xtream.Category  `json:"categories"`
	IsLoading    bool               `json:"is_loading"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// Categories loads and caches the category list of one content type.
type Categories struct {
	contentType xtream.ContentType
	lister      CategoryLister
	reload      time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	cached   []xtream.Category
	loadedAt time.Time

	value *state.Value[CategoriesState]
	slot  *taskSlot
}

// Option configures orchestrators.
type Option func(*options)

type options struct {
	categoryReload time.Duration
	listReload     time.Duration
	now            func() time.Time
	logger         *slog.Logger
	searchLimit    int
	gate           time.Duration
}

// WithCategoryReload overrides the minimum interval between category loads.
func WithCategoryReload(d time.Duration) Option {
	return func(o *options) { o.categoryReload = d }
}

// WithListReload overrides the minimum interval between loads of the same
// category's items.
func WithListReload(d time.Duration) Option {
	return func(o *options) { o.listReload = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSearchLimit caps search results.
func WithSearchLimit(n int) Option {
	return func(o *options) { o.searchLimit = n }
}

// WithLoginInterval sets the minimum spacing between login attempts.
func WithLoginInterval(d time.Duration) Option {
	return func(o *options) { o.gate = d }
}

func buildOptions(opts []Option) options {
	o := options{
		categoryReload: DefaultCategoryReload,
		listReload:     DefaultListReload,
		now:            time.Now,
		logger:         slog.Default(),
		searchLimit:    DefaultSearchLimit,
		gate:           DefaultLoginInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewCategories creates the categories orchestrator for contentType.
func NewCategories(contentType xtream.ContentType, lister CategoryLister, opts ...Option) *Categories {
	o := buildOptions(opts)
	return &Categories{
		contentType: contentType,
		lister:      lister,
		reload:      o.categoryReload,
		now:         o.now,
		logger:      o.logger.With(slog.String("component", "categories"), slog.String("content_type", string(contentType))),
		value:       state.NewValue(CategoriesState{ContentType: contentType}),
		slot:        newTaskSlot(),
	}
}

// ContentType returns the catalog this orchestrator serves.
func (c *Categories) ContentType() xtream.ContentType {
	return c.contentType
}

// State returns the current snapshot.
func (c *Categories) State() CategoriesState {
	return c.value.Get()
}

// Subscribe streams snapshots, starting with the current one.
func (c *Categories) Subscribe() *state.Subscription[CategoriesState] {
	return c.value.Subscribe()
}

func (c *Categories) fresh() ([]xtream.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cached) == 0 {
		return nil, false
	}
	return c.cached, c.now().Sub(c.loadedAt) < c.reload
}

// Load publishes the cached categories when they were loaded within the
// reload interval, otherwise fetches them.
func (c *Categories) Load() <-chan struct{} {
	if cached, ok := c.fresh(); ok {
		return c.slot.now(func() {
			c.value.Set(CategoriesState{ContentType: c.contentType, Categories: cached})
		})
	}
	return c.fetch()
}

// Retry fetches regardless of the reload interval.
func (c *Categories) Retry() <-chan struct{} {
	return c.fetch()
}

func (c *Categories) fetch() <-chan struct{} {
	return c.slot.start(func(ctx context.Context, commit commitFunc) {
		commit(func() {
			c.value.Update(func(s CategoriesState) CategoriesState {
				s.IsLoading = true
				s.ErrorMessage = ""
				return s
			})
		})

		categories, err := c.lister.ListCategories(ctx, c.contentType)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("loading categories failed", slog.String("error", err.Error()))
			commit(func() {
				c.value.Update(func(s CategoriesState) CategoriesState {
					s.IsLoading = false
					s.ErrorMessage = UserMessage(err)
					return s
				})
			})
			return
		}

		c.store(categories)
		commit(func() {
			c.value.Set(CategoriesState{ContentType: c.contentType, Categories: categories})
		})
	})
}

func (c *Categories) store(categories []xtream.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = categories
	c.loadedAt = c.now()
}

// Ensure returns the cached categories, fetching them when none are cached.
// It does not take the task slot, so it never cancels a Load.
func (c *Categories) Ensure(ctx context.Context) ([]xtream.Category, error) {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()
	if len(cached) > 0 {
		return slices.Clone(cached), nil
	}

	categories, err := c.lister.ListCategories(ctx, c.contentType)
	if err != nil {
		return nil, err
	}
	c.store(categories)
	return slices.Clone(categories), nil
}

// Find returns a cached category by id.
func (c *Categories) Find(id string) (xtream.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range c.cached {
		if cat.ID.String() == id {
			return cat, true
		}
	}
	return xtream.Category{}, false
}

// Close cancels any load and ends subscriptions.
func (c *Categories) Close() {
	c.slot.close()
	c.value.Close()
}
