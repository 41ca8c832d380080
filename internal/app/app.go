// Package app wires configuration, persistence and the panel client into the
// orchestrators shared by the CLI and the HTTP bridge.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jmylchreest/xtreamer/internal/config"
	"github.com/jmylchreest/xtreamer/internal/database"
	"github.com/jmylchreest/xtreamer/internal/favorites"
	"github.com/jmylchreest/xtreamer/internal/metrics"
	"github.com/jmylchreest/xtreamer/internal/observability"
	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/internal/playback"
	"github.com/jmylchreest/xtreamer/internal/session"
	"github.com/jmylchreest/xtreamer/internal/throttle"
	"github.com/jmylchreest/xtreamer/internal/version"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// ErrNotLoggedIn is returned when content is requested without a session.
var ErrNotLoggedIn = errors.New("not logged in")

// Content holds the orchestrators bound to one logged-in session.
type Content struct {
	Session  *session.Session
	Channels *orchestrator.Channels
	Movies   *orchestrator.Movies
	Series   *orchestrator.Series
}

// Close stops every orchestrator of the session.
func (c *Content) Close() {
	c.Channels.Close()
	c.Movies.Close()
	c.Series.Close()
}

// App is the composition root.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Throttle  *throttle.Throttle
	DB        *database.DB
	Favorites *favorites.Store
	Login     *orchestrator.Login

	deps       session.Deps
	httpClient *http.Client

	mu      sync.Mutex
	content *Content
	closed  bool
}

// New builds the application from cfg. The favorites backend is opened here;
// no panel call is made until Login.Submit.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Throttle: throttle.New(cfg.Throttle.Interval),
	}

	store, db, err := openFavorites(ctx, cfg.Favorites, observability.WithComponent(logger, "favorites"))
	if err != nil {
		return nil, err
	}
	a.Favorites, a.DB = store, db

	httpClient := xtream.NewHTTPClient(cfg.Client.ConnectTimeout, cfg.Client.ReadTimeout, logger)
	httpClient.Timeout = cfg.Client.RequestTimeout

	userAgent := cfg.Client.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	a.httpClient = httpClient
	a.deps = session.Deps{
		HTTPClient:   httpClient,
		UserAgent:    userAgent,
		Limiter:      a.Throttle,
		Recorder:     metrics.PanelRecorder{},
		Logger:       logger,
		URLCacheSize: cfg.StreamURL.CacheSize,
	}

	a.Login = orchestrator.NewLogin(cfg.Panel.Credentials(), a.NewSession, a.orchestratorOptions()...)
	return a, nil
}

func openFavorites(ctx context.Context, cfg config.FavoritesConfig, logger *slog.Logger) (*favorites.Store, *database.DB, error) {
	var (
		backend favorites.Backend
		db      *database.DB
	)
	switch cfg.Backend {
	case "memory":
		backend = favorites.NewMemoryBackend()
	case "file":
		backend = favorites.NewFileBackend(cfg.Path)
	default:
		var err error
		db, err = database.New(cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening favorites database: %w", err)
		}
		backend = favorites.NewDBBackend(db)
	}

	store, err := favorites.Open(ctx, backend, logger)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, err
	}
	return store, db, nil
}

func (a *App) orchestratorOptions() []orchestrator.Option {
	o := a.Config.Orchestrator
	return []orchestrator.Option{
		orchestrator.WithLogger(a.Logger),
		orchestrator.WithCategoryReload(o.CategoryReload),
		orchestrator.WithListReload(o.ListReload),
		orchestrator.WithLoginInterval(o.LoginInterval),
		orchestrator.WithSearchLimit(o.SearchLimit),
	}
}

// NewSession creates an unauthenticated session sharing the process-wide
// throttle, HTTP client and metrics.
func (a *App) NewSession(creds xtream.Credentials) (*session.Session, error) {
	return session.New(creds, a.deps)
}

// Connect submits the login form as currently filled and waits for the
// outcome. A refused or failed attempt returns the form's error message.
func (a *App) Connect(ctx context.Context) (*Content, error) {
	select {
	case <-a.Login.Submit():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	st := a.Login.State()
	if !st.Authenticated {
		if st.ErrorMessage == "" {
			return nil, ErrNotLoggedIn
		}
		return nil, errors.New(st.ErrorMessage)
	}
	return a.Content()
}

// Content returns the orchestrators of the current session, creating them
// on first use after a login.
func (a *App) Content() (*Content, error) {
	sess := a.Login.Session()
	if sess == nil {
		return nil, ErrNotLoggedIn
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrNotLoggedIn
	}
	if a.content != nil && a.content.Session == sess {
		return a.content, nil
	}
	if a.content != nil {
		a.content.Close()
	}

	opts := a.orchestratorOptions()
	a.content = &Content{
		Session:  sess,
		Channels: orchestrator.NewChannels(sess.Client, sess.URLs, a.Favorites, opts...),
		Movies:   orchestrator.NewMovies(sess.Client, sess.URLs, opts...),
		Series:   orchestrator.NewSeries(sess.Client, sess.URLs, opts...),
	}
	a.Logger.Debug("session content ready", slog.Any("session", sess))
	return a.content, nil
}

// Logout ends the session and stops its orchestrators.
func (a *App) Logout() {
	a.Login.Logout()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.content != nil {
		a.content.Close()
		a.content = nil
	}
}

// NewPlayer returns a playback controller driving the configured external
// player.
func (a *App) NewPlayer() *playback.Controller {
	p := a.Config.Player
	factory := playback.NewExecFactory(playback.ExecConfig{
		Command: p.Command,
		Args:    p.Args,
		Logger:  observability.WithComponent(a.Logger, "player"),
	})
	return playback.NewController(factory,
		playback.WithPollInterval(p.PositionPoll),
		playback.WithSeekStep(p.SeekStep),
		playback.WithLogger(a.Logger),
	)
}

// Close releases everything in reverse order of creation.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	content := a.content
	a.content = nil
	a.mu.Unlock()

	if content != nil {
		content.Close()
	}
	a.Login.Close()
	a.Favorites.Close()
	a.httpClient.CloseIdleConnections()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}
