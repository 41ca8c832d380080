// Package session binds one set of panel credentials to the client and the
// stream URL builder used while they are logged in.
package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/xtreamer/internal/streamurl"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Deps are the process-wide collaborators shared by every session.
type Deps struct {
	HTTPClient   *http.Client
	UserAgent    string
	Limiter      xtream.Limiter
	Recorder     xtream.Recorder
	Logger       *slog.Logger
	URLCacheSize int
}

// Session is one logged-in panel account.
type Session struct {
	ID          string
	Credentials xtream.Credentials
	Client      *xtream.Client
	URLs        *streamurl.Builder
	CreatedAt   time.Time

	// Auth is set once Authenticate succeeded.
	Auth *xtream.AuthResult
}

// New trims and validates creds and wires a client for them. Invalid credentials
// return *xtream.ConfigurationError and nothing is created.
func New(creds xtream.Credentials, deps Deps) (*Session, error) {
	creds = creds.Normalized()
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := ulid.Make().String()
	logger = logger.With(slog.String("session_id", id))

	opts := []xtream.ClientOption{
		xtream.WithLogger(logger),
		xtream.WithLimiter(deps.Limiter),
		xtream.WithRecorder(deps.Recorder),
	}
	if deps.HTTPClient != nil {
		opts = append(opts, xtream.WithHTTPClient(deps.HTTPClient))
	}
	if deps.UserAgent != "" {
		opts = append(opts, xtream.WithUserAgent(deps.UserAgent))
	}

	return &Session{
		ID:          id,
		Credentials: creds,
		Client:      xtream.NewClient(creds, opts...),
		URLs:        streamurl.NewBuilder(creds, streamurl.NewCache(deps.URLCacheSize)),
		CreatedAt:   time.Now(),
	}, nil
}

// LogValue keeps the password out of logs.
func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", s.ID),
		slog.String("base_url", s.Credentials.BaseURL()),
		slog.String("username", s.Credentials.Username),
	)
}
