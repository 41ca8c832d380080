// Package favorites keeps the persisted set of favorited live channel ids.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/xtreamer/internal/metrics"
	"github.com/jmylchreest/xtreamer/internal/state"
)

// ErrInvalidID matches *InvalidIDError.
var ErrInvalidID = errors.New("invalid channel id")

// InvalidIDError is returned for ids that are not integer stream ids.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	if e.ID == "" {
		return "empty channel id"
	}
	return fmt.Sprintf("invalid channel id %q: not an integer", e.ID)
}

// Is matches ErrInvalidID.
func (e *InvalidIDError) Is(target error) bool {
	return target == ErrInvalidID
}

// ParseID returns the canonical decimal form of a channel id.
func ParseID(id string) (string, error) {
	id = strings.TrimSpace(id)
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", &InvalidIDError{ID: id}
	}
	return strconv.FormatInt(n, 10), nil
}

// Backend persists the whole favorites set. Save replaces what was stored.
type Backend interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ids []string) error
}

// Store is the process-wide favorites set. Every mutation is
// read-modify-persist-publish under one lock: the in-memory set only
// changes after the backend accepted the new set.
type Store struct {
	mu      sync.Mutex
	backend Backend
	ids     map[string]struct{}
	value   *state.Value[[]string]
	logger  *slog.Logger
}

// Open loads the persisted set from backend. Stored ids that are not
// integers are dropped.
func Open(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}

	s := &Store{
		backend: backend,
		logger:  logger.With(slog.String("component", "favorites")),
	}

	ids := make(map[string]struct{}, len(loaded))
	for _, raw := range loaded {
		id, err := ParseID(raw)
		if err != nil {
			s.logger.Warn("skipping stored favorite", slog.String("error", err.Error()))
			continue
		}
		ids[id] = struct{}{}
	}
	s.ids = ids
	s.value = state.NewValue(sortedIDs(ids))
	s.logger.Debug("favorites loaded", slog.Int("count", len(ids)))
	return s, nil
}

// Contains reports whether id is a favorite.
func (s *Store) Contains(id string) bool {
	id, err := ParseID(id)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// List returns the favorite ids in numeric order.
func (s *Store) List() []string {
	return slices.Clone(s.value.Get())
}

// Len returns the number of favorites.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Add marks id as a favorite.
func (s *Store) Add(ctx context.Context, id string) error {
	return s.mutate(ctx, "add", id, func(bool) bool { return true })
}

// Remove unmarks id.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, "remove", id, func(bool) bool { return false })
}

// Toggle flips membership of id and reports whether it is now a favorite.
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	var now bool
	err := s.mutate(ctx, "toggle", id, func(present bool) bool {
		now = !present
		return now
	})
	if err != nil {
		return s.Contains(id), err
	}
	return now, nil
}

func (s *Store) mutate(ctx context.Context, op, id string, want func(present bool) bool) error {
	id, err := ParseID(id)
	if err != nil {
		metrics.FavoritesMutations.WithLabelValues(op, "invalid").Inc()
		return fmt.Errorf("favorites %s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, present := s.ids[id]
	member := want(present)
	if member == present {
		metrics.FavoritesMutations.WithLabelValues(op, "unchanged").Inc()
		return nil
	}

	next := make(map[string]struct{}, len(s.ids)+1)
	for k := range s.ids {
		next[k] = struct{}{}
	}
	if member {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}

	list := sortedIDs(next)
	if err := s.backend.Save(ctx, list); err != nil {
		metrics.FavoritesMutations.WithLabelValues(op, "error").Inc()
		s.logger.Warn("persisting favorites failed",
			slog.String("op", op),
			slog.String("channel_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("saving favorites: %w", err)
	}

	s.ids = next
	s.value.Set(list)
	metrics.FavoritesMutations.WithLabelValues(op, "ok").Inc()
	return nil
}

// Subscribe streams the favorites set, starting with the current one.
func (s *Store) Subscribe() *state.Subscription[[]string] {
	return s.value.Subscribe()
}

// Close ends all subscriptions.
func (s *Store) Close() {
	s.value.Close()
}

// sortedIDs orders numeric ids numerically and puts anything else after
// them in lexical order.
func sortedIDs(ids map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	slices.SortFunc(out, compareIDs)
	return out
}

func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
