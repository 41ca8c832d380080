package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// catalogCommands are the browse operations shared by every content type.
type catalogCommands interface {
	categories(ctx context.Context, cmd *cobra.Command, c *app.Content) error
	items(ctx context.Context, cmd *cobra.Command, c *app.Content, categoryID string) error
	search(ctx context.Context, cmd *cobra.Command, c *app.Content, query string, opts searchOptions) error
}

// catalogView renders one catalog as a table.
type catalogView[T any] struct {
	pick   func(*app.Content) *orchestrator.Catalog[T]
	header []any
	cols   func(T) []any
}

var catalogViews = map[xtream.ContentType]catalogCommands{
	xtream.ContentLive: catalogView[xtream.Channel]{
		pick:   func(c *app.Content) *orchestrator.Catalog[xtream.Channel] { return c.Channels.Catalog },
		header: []any{"ID", "NAME", "CATEGORY", "ARCHIVE"},
		cols: func(ch xtream.Channel) []any {
			return []any{ch.StreamID, ch.Name, ch.CategoryID, ch.HasArchive()}
		},
	},
	xtream.ContentMovie: catalogView[xtream.Movie]{
		pick:   func(c *app.Content) *orchestrator.Catalog[xtream.Movie] { return c.Movies.Catalog },
		header: []any{"ID", "NAME", "RATING", "EXT"},
		cols: func(m xtream.Movie) []any {
			return []any{m.StreamID, m.Name, fmt.Sprintf("%.1f", m.Rating.Float()), m.ContainerExtension}
		},
	},
	xtream.ContentSeries: catalogView[xtream.Series]{
		pick:   func(c *app.Content) *orchestrator.Catalog[xtream.Series] { return c.Series.Catalog },
		header: []any{"ID", "NAME", "GENRE", "RATING"},
		cols: func(s xtream.Series) []any {
			return []any{s.SeriesID, s.Name, s.Genre, fmt.Sprintf("%.1f", s.Rating.Float())}
		},
	},
}

// lookupCatalog resolves a content type argument such as "live" or "movies".
func lookupCatalog(arg string) (catalogCommands, error) {
	ct, err := xtream.ParseContentType(arg)
	if err != nil {
		return nil, err
	}
	return catalogViews[ct], nil
}

func (v catalogView[T]) categories(ctx context.Context, cmd *cobra.Command, c *app.Content) error {
	categories, err := v.pick(c).Categories.Ensure(ctx)
	if err != nil {
		return err
	}
	return render(cmd, categories, func(w io.Writer) {
		row(w, "ID", "NAME")
		for _, cat := range categories {
			row(w, cat.ID, cat.Name)
		}
	})
}

func (v catalogView[T]) items(ctx context.Context, cmd *cobra.Command, c *app.Content, categoryID string) error {
	cat := v.pick(c)
	if err := loadCategory(ctx, cat, categoryID); err != nil {
		return err
	}
	return v.render(cmd.OutOrStdout(), outputFormat(cmd), cat.State())
}

func (v catalogView[T]) render(out io.Writer, format string, st orchestrator.ListState[T]) error {
	return renderTo(out, format, st, func(w io.Writer) {
		row(w, v.header...)
		for _, item := range st.Items {
			row(w, v.cols(item)...)
		}
	})
}

// loadCategory selects a category and waits for its items.
func loadCategory[T any](ctx context.Context, cat *orchestrator.Catalog[T], categoryID string) error {
	if _, err := cat.Categories.Ensure(ctx); err != nil {
		return err
	}
	category, ok := cat.Categories.Find(categoryID)
	if !ok {
		return fmt.Errorf("%s category %q not found", cat.Categories.ContentType(), categoryID)
	}
	if err := await(ctx, cat.LoadCategory(categoryID, category.Name)); err != nil {
		return err
	}
	if msg := cat.State().ErrorMessage; msg != "" {
		return errors.New(msg)
	}
	return nil
}

// searchOptions controls what is browsed before searching.
type searchOptions struct {
	category    string
	all         bool
	interactive bool
}

// prepare indexes the items search runs over: one category, every category,
// or whatever the catalog loads on start.
func (v catalogView[T]) prepare(ctx context.Context, cat *orchestrator.Catalog[T], opts searchOptions) error {
	switch {
	case opts.all:
		categories, err := cat.Categories.Ensure(ctx)
		if err != nil {
			return err
		}
		for _, category := range categories {
			if err := loadCategory(ctx, cat, string(category.ID)); err != nil {
				return err
			}
		}
		return nil
	case opts.category != "":
		return loadCategory(ctx, cat, opts.category)
	default:
		if err := await(ctx, cat.Start()); err != nil {
			return err
		}
		_, err := cat.Categories.Ensure(ctx)
		return err
	}
}

func (v catalogView[T]) search(ctx context.Context, cmd *cobra.Command, c *app.Content, query string, opts searchOptions) error {
	cat := v.pick(c)
	if err := v.prepare(ctx, cat, opts); err != nil {
		return err
	}
	logger.Debug("search index ready", slog.Int("indexed", cat.Indexed()))

	run := func(q string) error {
		if err := await(ctx, cat.Search(q)); err != nil {
			return err
		}
		return v.render(cmd.OutOrStdout(), outputFormat(cmd), cat.State())
	}
	if !opts.interactive {
		return run(query)
	}
	return interactiveSearch(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), run)
}

// interactiveSearch reads one query per line and runs the latest one once
// typing pauses for the configured debounce delay. The last query is always
// run before returning at end of input.
func interactiveSearch(ctx context.Context, in io.Reader, errOut io.Writer, run func(string) error) error {
	d := orchestrator.NewDebouncer(cfg.Orchestrator.SearchDebounce)

	var (
		mu      sync.Mutex
		done    bool
		last    *string
		lastRun *string
	)
	execute := func(q string) {
		if err := run(q); err != nil {
			fmt.Fprintf(errOut, "search %q: %v\n", q, err)
		}
		lastRun = &q
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			d.Stop()
			mu.Lock()
			done = true
			mu.Unlock()
			return ctx.Err()
		case q, ok := <-lines:
			if !ok {
				d.Flush()
				d.Stop()
				mu.Lock()
				defer mu.Unlock()
				done = true
				if last != nil && (lastRun == nil || *lastRun != *last) {
					execute(*last)
				}
				return nil
			}
			mu.Lock()
			last = &q
			mu.Unlock()
			d.Call(func() {
				mu.Lock()
				defer mu.Unlock()
				if !done {
					execute(q)
				}
			})
		}
	}
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

var categoriesCmd = &cobra.Command{
	Use:       "categories <live|movie|series>",
	Short:     "List the categories of a catalog",
	Args:      cobra.ExactArgs(1),
	ValidArgs: contentTypeArgs(),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := lookupCatalog(args[0])
		if err != nil {
			return err
		}
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			return view.categories(ctx, cmd, c)
		})
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items <live|movie|series> <category-id>",
	Short: "List the channels, movies or series of a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := lookupCatalog(args[0])
		if err != nil {
			return err
		}
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			return view.items(ctx, cmd, c, args[1])
		})
	},
}

var searchOpts searchOptions

var searchCmd = &cobra.Command{
	Use:   "search <live|movie|series> [query...]",
	Short: "Search the items of a catalog by name",
	Long: `Search the items that have been browsed by name. Only the first word of
the query is matched, case-insensitively, and at most orchestrator.search_limit
results are shown.

Search runs over the category given with --category, every category with
--all, or otherwise the category loaded when the catalog starts.

With --interactive, queries are read from standard input one per line and
run once typing pauses.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := lookupCatalog(args[0])
		if err != nil {
			return err
		}
		if searchOpts.category != "" && searchOpts.all {
			return errors.New("--category and --all are mutually exclusive")
		}
		query := strings.Join(args[1:], " ")
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			return view.search(ctx, cmd, c, query, searchOpts)
		})
	},
}

func contentTypeArgs() []string {
	args := make([]string, 0, len(xtream.ContentTypes))
	for _, ct := range xtream.ContentTypes {
		args = append(args, ct.String())
	}
	return args
}

func init() {
	searchCmd.Flags().StringVarP(&searchOpts.category, "category", "c", "", "category to browse before searching")
	searchCmd.Flags().BoolVar(&searchOpts.all, "all", false, "browse every category before searching")
	searchCmd.Flags().BoolVarP(&searchOpts.interactive, "interactive", "i", false, "read queries from standard input")

	rootCmd.AddCommand(categoriesCmd, itemsCmd, searchCmd)
}
