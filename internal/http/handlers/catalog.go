package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// CatalogHandler exposes categories, lists, search and stream URLs for the
// live, movie and series catalogs.
type CatalogHandler struct {
	app *app.App
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(a *app.App) *CatalogHandler {
	return &CatalogHandler{app: a}
}

// Register registers one set of catalog routes per content type.
func (h *CatalogHandler) Register(api huma.API) {
	registerCatalog(api, catalogRoutes[xtream.Channel]{
		app:         h.app,
		contentType: xtream.ContentLive,
		pick:        func(c *app.Content) *orchestrator.Catalog[xtream.Channel] { return c.Channels.Catalog },
		streamURL:   func(c *app.Content, id, _ string) string { return c.Channels.StreamURL(id) },
	})
	registerCatalog(api, catalogRoutes[xtream.Movie]{
		app:         h.app,
		contentType: xtream.ContentMovie,
		pick:        func(c *app.Content) *orchestrator.Catalog[xtream.Movie] { return c.Movies.Catalog },
		streamURL:   func(c *app.Content, id, ext string) string { return c.Movies.StreamURLByID(id, ext) },
	})
	registerCatalog(api, catalogRoutes[xtream.Series]{
		app:         h.app,
		contentType: xtream.ContentSeries,
		pick:        func(c *app.Content) *orchestrator.Catalog[xtream.Series] { return c.Series.Catalog },
		streamURL:   func(c *app.Content, id, ext string) string { return c.Series.EpisodeURLByID(id, ext) },
	})
}

// catalogRoutes binds the generic list operations to one content type.
type catalogRoutes[T any] struct {
	app         *app.App
	contentType xtream.ContentType
	pick        func(*app.Content) *orchestrator.Catalog[T]
	streamURL   func(c *app.Content, id, ext string) string
}

func registerCatalog[T any](api huma.API, r catalogRoutes[T]) {
	ct := r.contentType.String()
	name := cases.Title(language.English).String(ct)
	base := "/api/v1/" + ct
	tags := []string{name}

	huma.Register(api, huma.Operation{
		OperationID: "list" + name + "Categories",
		Method:      "GET",
		Path:        base + "/categories",
		Summary:     fmt.Sprintf("List %s categories", ct),
		Tags:        tags,
	}, r.categories)

	huma.Register(api, huma.Operation{
		OperationID: "list" + name + "CategoryItems",
		Method:      "GET",
		Path:        base + "/categories/{categoryId}/items",
		Summary:     fmt.Sprintf("List the %s items of a category", ct),
		Description: "Selects the category and returns the list snapshot once the load settles.",
		Tags:        tags,
	}, r.items)

	huma.Register(api, huma.Operation{
		OperationID: "search" + name,
		Method:      "GET",
		Path:        base + "/search",
		Summary:     fmt.Sprintf("Search %s items", ct),
		Description: "Searches the items browsed so far. A blank query restores the selected category.",
		Tags:        tags,
	}, r.search)

	huma.Register(api, huma.Operation{
		OperationID: "get" + name + "StreamURL",
		Method:      "GET",
		Path:        base + "/streams/{streamId}/url",
		Summary:     fmt.Sprintf("Build the playable URL of a %s stream", ct),
		Tags:        tags,
	}, r.url)
}

func (r catalogRoutes[T]) catalog() (*app.Content, *orchestrator.Catalog[T], error) {
	c, err := content(r.app)
	if err != nil {
		return nil, nil, err
	}
	return c, r.pick(c), nil
}

func (r catalogRoutes[T]) categories(ctx context.Context, _ *EmptyInput) (*CategoriesOutput, error) {
	_, cat, err := r.catalog()
	if err != nil {
		return nil, err
	}
	categories, err := cat.Categories.Ensure(ctx)
	if err != nil {
		return nil, panelError(err)
	}

	out := &CategoriesOutput{}
	out.Body.ContentType = r.contentType
	out.Body.Categories = categories
	return out, nil
}

func (r catalogRoutes[T]) items(ctx context.Context, input *CategoryItemsInput) (*ListOutput[T], error) {
	_, cat, err := r.catalog()
	if err != nil {
		return nil, err
	}
	if _, err := cat.Categories.Ensure(ctx); err != nil {
		return nil, panelError(err)
	}
	category, ok := cat.Categories.Find(input.CategoryID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("%s category %q not found", r.contentType, input.CategoryID))
	}

	if err := wait(ctx, cat.LoadCategory(input.CategoryID, category.Name)); err != nil {
		return nil, err
	}
	return listResult(cat.State())
}

func (r catalogRoutes[T]) search(ctx context.Context, input *SearchInput) (*ListOutput[T], error) {
	_, cat, err := r.catalog()
	if err != nil {
		return nil, err
	}
	if _, err := cat.Categories.Ensure(ctx); err != nil {
		return nil, panelError(err)
	}
	if err := wait(ctx, cat.Search(input.Query)); err != nil {
		return nil, err
	}
	return listResult(cat.State())
}

func (r catalogRoutes[T]) url(_ context.Context, input *StreamURLInput) (*StreamURLOutput, error) {
	c, _, err := r.catalog()
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.StreamID)
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, huma.Error400BadRequest(fmt.Sprintf("invalid stream id %q", input.StreamID))
	}

	out := &StreamURLOutput{}
	out.Body.URL = r.streamURL(c, id, strings.TrimPrefix(input.Ext, "."))
	return out, nil
}

// listResult turns a published error message into a 502.
func listResult[T any](st orchestrator.ListState[T]) (*ListOutput[T], error) {
	if st.ErrorMessage != "" {
		return nil, huma.Error502BadGateway(st.ErrorMessage)
	}
	return &ListOutput[T]{Body: st}, nil
}
