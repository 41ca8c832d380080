package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/renameio/v2"
	"gorm.io/gorm"

	"github.com/jmylchreest/xtreamer/internal/database"
	"github.com/jmylchreest/xtreamer/internal/models"
)

// MemoryBackend keeps the set in process memory only.
type MemoryBackend struct {
	mu  sync.Mutex
	ids []string
}

// NewMemoryBackend creates a backend seeded with ids.
func NewMemoryBackend(ids ...string) *MemoryBackend {
	return &MemoryBackend{ids: slices.Clone(ids)}
}

func (b *MemoryBackend) Load(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ids), nil
}

func (b *MemoryBackend) Save(_ context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = slices.Clone(ids)
	return nil
}

// DBBackend stores one row per favorite in the favorite_entries table.
type DBBackend struct {
	db    *database.DB
	store string
	key   string
}

// NewDBBackend creates a backend for the favorite channels set.
func NewDBBackend(db *database.DB) *DBBackend {
	return &DBBackend{db: db, store: models.FavoritesStore, key: models.FavoriteChannelsKey}
}

func (b *DBBackend) scope(tx *gorm.DB) *gorm.DB {
	// struct conditions keep the reserved "key" column quoted on every dialect
	return tx.Model(&models.FavoriteEntry{}).Where(&models.FavoriteEntry{Store: b.store, Key: b.key})
}

func (b *DBBackend) Load(ctx context.Context) ([]string, error) {
	var ids []string
	if err := b.scope(b.db.WithContext(ctx)).Order("created_at").Pluck("value", &ids).Error; err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}
	return ids, nil
}

// Save replaces the stored set inside one transaction.
func (b *DBBackend) Save(ctx context.Context, ids []string) error {
	return b.db.Transaction(ctx, func(tx *gorm.DB) error {
		var existing []string
		if err := b.scope(tx).Pluck("value", &existing).Error; err != nil {
			return fmt.Errorf("querying favorites: %w", err)
		}

		var stale []string
		for _, id := range existing {
			if !slices.Contains(ids, id) {
				stale = append(stale, id)
			}
		}
		if len(stale) > 0 {
			err := tx.Where(&models.FavoriteEntry{Store: b.store, Key: b.key}).
				Where("value IN ?", stale).
				Delete(&models.FavoriteEntry{}).Error
			if err != nil {
				return fmt.Errorf("deleting favorites: %w", err)
			}
		}

		var added []models.FavoriteEntry
		for _, id := range ids {
			if !slices.Contains(existing, id) {
				added = append(added, models.FavoriteEntry{Store: b.store, Key: b.key, Value: id})
			}
		}
		if len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return fmt.Errorf("inserting favorites: %w", err)
			}
		}
		return nil
	})
}

// FileBackend stores the set in a JSON document of the form
// {"favorites": {"favorite_channels": ["12", "7"]}}. Other stores and keys in
// the document are preserved.
type FileBackend struct {
	path  string
	store string
	key   string
}

// NewFileBackend creates a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, store: models.FavoritesStore, key: models.FavoriteChannelsKey}
}

type document map[string]map[string][]string

func (b *FileBackend) read() (document, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading favorites file: %w", err)
	}
	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing favorites file: %w", err)
	}
	return doc, nil
}

func (b *FileBackend) Load(context.Context) ([]string, error) {
	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	return slices.Clone(doc[b.store][b.key]), nil
}

// Save rewrites the document atomically: fsync then rename.
func (b *FileBackend) Save(_ context.Context, ids []string) error {
	doc, err := b.read()
	if err != nil {
		return err
	}
	if doc[b.store] == nil {
		doc[b.store] = map[string][]string{}
	}
	doc[b.store][b.key] = append([]string{}, ids...)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding favorites: %w", err)
	}

	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating favorites directory: %w", err)
		}
	}

	pending, err := renameio.NewPendingFile(b.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending favorites file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write favorites data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace favorites file: %w", err)
	}
	return nil
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*DBBackend)(nil)
	_ Backend = (*FileBackend)(nil)
)
