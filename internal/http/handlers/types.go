// Package handlers provides the HTTP API handlers for xtreamer.
package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Health types

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPUInfo       CPUInfo           `json:"cpu_info"`
	Memory        MemoryInfo        `json:"memory"`
	Components    HealthComponents  `json:"components"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo reports host load.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports host and process memory.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMB         float64 `json:"process_mb"`
	ChildProcessCount int     `json:"child_process_count"`
}

// HealthComponents reports the state of each dependency.
type HealthComponents struct {
	Database  DatabaseHealth  `json:"database"`
	Session   SessionHealth   `json:"session"`
	Favorites FavoritesHealth `json:"favorites"`
}

// DatabaseHealth is "not_configured" unless favorites live in a database.
type DatabaseHealth struct {
	Status         string         `json:"status"`
	Driver         string         `json:"driver,omitempty"`
	ResponseTimeMS float64        `json:"response_time_ms,omitempty"`
	Pool           map[string]any `json:"pool,omitempty"`
}

// SessionHealth reports the panel session.
type SessionHealth struct {
	Authenticated bool   `json:"authenticated"`
	BaseURL       string `json:"base_url,omitempty"`
	Username      string `json:"username,omitempty"`
}

// FavoritesHealth reports the favorites store.
type FavoritesHealth struct {
	Backend string `json:"backend"`
	Count   int    `json:"count"`
}

// LivezResponse is the body of GET /livez.
type LivezResponse struct {
	Status string `json:"status"`
}

// Content types

// CategoriesOutput lists the categories of a content type.
type CategoriesOutput struct {
	Body struct {
		ContentType xtream.ContentType `json:"content_type"`
		Categories  []xtream.Category  `json:"categories"`
	}
}

// CategoryItemsInput selects one category.
type CategoryItemsInput struct {
	CategoryID string `path:"categoryId" doc:"Category id"`
}

// SearchInput is a search query.
type SearchInput struct {
	Query string `query:"q" doc:"Search query; blank restores the current category"`
}

// ListOutput is a list snapshot of one content type.
type ListOutput[T any] struct {
	Body orchestrator.ListState[T]
}

// StreamURLInput selects a stream.
type StreamURLInput struct {
	StreamID string `path:"streamId" doc:"Stream, movie or episode id"`
	Ext      string `query:"ext" doc:"Container extension for movies and episodes"`
}

// StreamURLOutput is a playable URL.
type StreamURLOutput struct {
	Body struct {
		URL string `json:"url"`
	}
}

// Session types

// LoginInput is the login form.
type LoginInput struct {
	Body struct {
		Scheme   string `json:"scheme,omitempty" enum:"http,https" doc:"Defaults to http"`
		Host     string `json:"host"`
		Port     string `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
}

// LoginOutput is the login form state.
type LoginOutput struct {
	Body orchestrator.LoginState
}

// Favorites types

// FavoriteInput selects a channel.
type FavoriteInput struct {
	StreamID string `path:"streamId" doc:"Live stream id"`
}

// FavoritesOutput lists favorite ids.
type FavoritesOutput struct {
	Body struct {
		Favorites []string `json:"favorites"`
	}
}

// ToggleFavoriteOutput reports the state after a toggle.
type ToggleFavoriteOutput struct {
	Body struct {
		StreamID string `json:"stream_id"`
		Favorite bool   `json:"favorite"`
	}
}

// PlaylistOutput is a raw M3U document.
type PlaylistOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ChannelsOutput is the live list snapshot with favorites.
type ChannelsOutput struct {
	Body orchestrator.ChannelsState
}

// Detail types

// IDInput selects a movie or series.
type IDInput struct {
	ID string `path:"id" doc:"Movie or series id"`
}

// SeriesDetailInput selects a series and optionally a season.
type SeriesDetailInput struct {
	ID     string `path:"id" doc:"Series id"`
	Season int    `query:"season" minimum:"0" doc:"Season to select; 0 keeps the lowest"`
}

// MovieDetailOutput is the movie detail state.
type MovieDetailOutput struct {
	Body orchestrator.MovieDetailState
}

// SeriesDetailOutput is the series detail state.
type SeriesDetailOutput struct {
	Body orchestrator.SeriesDetailState
}

// ProgramGuideInput selects a channel.
type ProgramGuideInput struct {
	StreamID string `path:"streamId" doc:"Live stream id"`
}

// ProgramGuideOutput is the guide of one channel.
type ProgramGuideOutput struct {
	Body struct {
		StreamID string              `json:"stream_id"`
		Programs []xtream.EPGProgram `json:"programs"`
	}
}

// content returns the logged-in orchestrators or a 401.
func content(a *app.App) (*app.Content, error) {
	c, err := a.Content()
	if errors.Is(err, app.ErrNotLoggedIn) {
		return nil, huma.Error401Unauthorized("not logged in")
	}
	return c, err
}

// wait blocks until done closes or the request ends.
func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// panelError converts a client error into an API error.
func panelError(err error) error {
	switch {
	case errors.Is(err, xtream.ErrConfiguration):
		return huma.Error400BadRequest(orchestrator.UserMessage(err))
	case errors.Is(err, xtream.ErrAuthentication):
		return huma.Error401Unauthorized(orchestrator.UserMessage(err))
	default:
		return huma.Error502BadGateway(orchestrator.UserMessage(err))
	}
}
