package models

// Persistent key-value namespace of the favorites set.
const (
	FavoritesStore      = "favorites"
	FavoriteChannelsKey = "favorite_channels"
)

// FavoriteEntry is one member of a persisted string set. The set under
// (Store, Key) is the collection of Value across its rows.
type FavoriteEntry struct {
	BaseModel
	Store string `gorm:"size:64;not null;uniqueIndex:idx_favorite_entry" json:"store"`
	Key   string `gorm:"size:128;not null;uniqueIndex:idx_favorite_entry" json:"key"`
	Value string `gorm:"size:255;not null;uniqueIndex:idx_favorite_entry" json:"value"`
}

// TableName overrides the default table name.
func (FavoriteEntry) TableName() string {
	return "favorite_entries"
}
