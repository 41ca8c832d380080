// Package xtream provides a Go client for the Xtream Codes panel API.
//
// Xtream Codes is an IPTV panel system that exposes a REST API for live TV
// channels, video on demand (movies), TV series and program guide data.
//
// # Basic Usage
//
//	creds := xtream.Credentials{Host: "panel.example", Port: "8080", Username: "u", Password: "p"}
//	client := xtream.NewClient(creds, xtream.WithLimiter(limiter))
//
//	// Verify the account; auth == 1 is the only success signal
//	result, err := client.Authenticate(ctx)
//
//	// List categories of a catalog
//	categories, err := client.ListCategories(ctx, xtream.ContentLive)
//
//	// List channels in a category
//	channels, err := client.ListChannels(ctx, "5")
//
//	// Program guide for a channel
//	programs, err := client.FetchProgramGuide(ctx, 12345)
//
// # Errors
//
// Every call returns an error matching exactly one of ErrConfiguration,
// ErrAuthentication or ErrTransport. Nothing is retried; callers decide.
//
// # Stream URLs
//
// Stream URLs are pure functions of the credentials and an identifier:
//
//	xtream.LiveStreamURL(creds, "12345")          // {base}/live/u/p/12345.m3u8
//	xtream.MovieStreamURL(creds, "67890", "mkv")  // {base}/movie/u/p/67890.mkv
//	xtream.EpisodeStreamURL(creds, "111", "mp4")  // {base}/series/u/p/111.mp4
//
// # API Endpoints
//
//	{base}/player_api.php?username={user}&password={pass}&action={action}
//
// Actions used:
//   - (no action): authentication and server info
//   - get_live_categories, get_vod_categories, get_series_categories
//   - get_live_streams, get_vod_streams, get_series (optional: category_id)
//   - get_vod_info (vod_id), get_series_info (series_id)
//
// Program guide:
//
//	{base}/xmltv.php?username={user}&password={pass}&stream_id={id}
package xtream
