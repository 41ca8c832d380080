package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jmylchreest/xtreamer/internal/session"
	"github.com/jmylchreest/xtreamer/internal/state"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// DefaultLoginInterval is the minimum spacing between two login attempts.
const DefaultLoginInterval = 3 * time.Second

// Account summarizes the panel's user_info and server_info after login.
type Account struct {
	Username          string    `json:"username"`
	Status            string    `json:"status"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
	IsTrial           bool      `json:"is_trial"`
	ActiveConnections int64     `json:"active_connections"`
	MaxConnections    int64     `json:"max_connections"`
	ServerURL         string    `json:"server_url,omitempty"`
	Timezone          string    `json:"timezone,omitempty"`
}

func accountFrom(auth *xtream.AuthResult) *Account {
	if auth == nil {
		return nil
	}
	return &Account{
		Username:          auth.UserInfo.Username,
		Status:            auth.UserInfo.Status,
		ExpiresAt:         auth.UserInfo.ExpirationTime(),
		IsTrial:           auth.UserInfo.IsTrial.Int() == 1,
		ActiveConnections: auth.UserInfo.ActiveConnections.Int(),
		MaxConnections:    auth.UserInfo.MaxConnections.Int(),
		ServerURL:         auth.ServerInfo.URL,
		Timezone:          auth.ServerInfo.Timezone,
	}
}

// LoginState is the published snapshot of the login form.
type LoginState struct {
	Scheme         string   `json:"scheme,omitempty"`
	Host           string   `json:"host"`
	Port           string   `json:"port"`
	Username       string   `json:"username"`
	Password       string   `json:"-"`
	IsLoading      bool     `json:"is_loading"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	SuccessMessage string   `json:"success_message,omitempty"`
	Authenticated  bool     `json:"authenticated"`
	Account        *Account `json:"account,omitempty"`
}

// Credentials returns the form fields as panel credentials.
func (s LoginState) Credentials() xtream.Credentials {
	return xtream.Credentials{
		Scheme:   s.Scheme,
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
	}
}

// SessionFactory builds a session for credentials. It must reject invalid
// credentials without any network call.
type SessionFactory func(creds xtream.Credentials) (*session.Session, error)

// Login owns the login form and the authenticated session.
type Login struct {
	factory SessionFactory
	gate    time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu          sync.Mutex
	lastAttempt time.Time
	session     *session.Session

	value *state.Value[LoginState]
	slot  *taskSlot
}

// NewLogin creates the login orchestrator with the form prefilled from
// defaults.
func NewLogin(defaults xtream.Credentials, factory SessionFactory, opts ...Option) *Login {
	o := buildOptions(opts)
	return &Login{
		factory: factory,
		gate:    o.gate,
		now:     o.now,
		logger:  o.logger.With(slog.String("component", "login")),
		value: state.NewValue(LoginState{
			Scheme:   defaults.Scheme,
			Host:     defaults.Host,
			Port:     defaults.Port,
			Username: defaults.Username,
			Password: defaults.Password,
		}),
		slot: newTaskSlot(),
	}
}

// State returns the current snapshot.
func (l *Login) State() LoginState {
	return l.value.Get()
}

// Subscribe streams snapshots, starting with the current one.
func (l *Login) Subscribe() *state.Subscription[LoginState] {
	return l.value.Subscribe()
}

func (l *Login) edit(fn func(*LoginState)) {
	l.value.Update(func(s LoginState) LoginState {
		fn(&s)
		return s
	})
}

// UpdateScheme sets the scheme field. Blank means http.
func (l *Login) UpdateScheme(v string) { l.edit(func(s *LoginState) { s.Scheme = v }) }

// UpdateHost sets the host field.
func (l *Login) UpdateHost(v string) { l.edit(func(s *LoginState) { s.Host = v }) }

// UpdatePort sets the port field.
func (l *Login) UpdatePort(v string) { l.edit(func(s *LoginState) { s.Port = v }) }

// UpdateUsername sets the username field.
func (l *Login) UpdateUsername(v string) { l.edit(func(s *LoginState) { s.Username = v }) }

// UpdatePassword sets the password field.
func (l *Login) UpdatePassword(v string) { l.edit(func(s *LoginState) { s.Password = v }) }

// ClearError clears the error and success messages.
func (l *Login) ClearError() {
	l.edit(func(s *LoginState) {
		s.ErrorMessage = ""
		s.SuccessMessage = ""
	})
}

// Session returns the authenticated session, nil when logged out.
func (l *Login) Session() *session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// admit applies the attempt gate. It records the attempt when admitted and
// otherwise returns the remaining wait.
func (l *Login) admit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if !l.lastAttempt.IsZero() {
		if elapsed := now.Sub(l.lastAttempt); elapsed < l.gate {
			return l.gate - elapsed, false
		}
	}
	l.lastAttempt = now
	return 0, true
}

// Submit attempts a login with the current form. Attempts closer together
// than the login interval are refused with a wait message. Invalid forms are
// refused without a network call. The channel closes when the attempt ends.
func (l *Login) Submit() <-chan struct{} {
	if wait, ok := l.admit(); !ok {
		msg := fmt.Sprintf("Please wait %d seconds before trying again", int(math.Ceil(wait.Seconds())))
		return l.slot.now(func() {
			l.edit(func(s *LoginState) {
				s.ErrorMessage = msg
				s.SuccessMessage = ""
			})
		})
	}

	creds := l.State().Credentials()
	if err := creds.Validate(); err != nil {
		return l.slot.now(func() {
			l.edit(func(s *LoginState) {
				s.ErrorMessage = MsgFillAllFields
				s.SuccessMessage = ""
			})
		})
	}

	sess, err := l.factory(creds)
	if err != nil {
		return l.slot.now(func() {
			l.edit(func(s *LoginState) {
				s.ErrorMessage = UserMessage(err)
				s.SuccessMessage = ""
			})
		})
	}

	return l.slot.start(func(ctx context.Context, commit commitFunc) {
		commit(func() {
			l.edit(func(s *LoginState) {
				s.IsLoading = true
				s.ErrorMessage = ""
				s.SuccessMessage = ""
			})
		})

		auth, err := sess.Client.Authenticate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("login failed",
				slog.Any("credentials", creds),
				slog.String("error", err.Error()))
			commit(func() {
				l.edit(func(s *LoginState) {
					s.IsLoading = false
					s.ErrorMessage = LoginFailureMessage(creds, err, l.gate)
				})
			})
			return
		}

		sess.Auth = auth
		commit(func() {
			l.mu.Lock()
			l.session = sess
			l.mu.Unlock()
			l.edit(func(s *LoginState) {
				s.IsLoading = false
				s.Authenticated = true
				s.SuccessMessage = MsgLoginSuccess
				s.Account = accountFrom(auth)
			})
		})
		l.logger.Info("login succeeded", slog.Any("session", sess))
	})
}

// Logout drops the session and returns the form to the unauthenticated
// state, keeping the entered fields. It returns the dropped session.
func (l *Login) Logout() *session.Session {
	var prev *session.Session
	l.slot.now(func() {
		l.mu.Lock()
		prev = l.session
		l.session = nil
		l.mu.Unlock()
		l.edit(func(s *LoginState) {
			s.IsLoading = false
			s.Authenticated = false
			s.Account = nil
			s.ErrorMessage = ""
			s.SuccessMessage = ""
		})
	})
	return prev
}

// Close cancels any attempt and ends subscriptions.
func (l *Login) Close() {
	l.slot.close()
	l.value.Close()
}
