package xtream

import "strings"

// Default container extensions.
const (
	ExtensionHLS = "m3u8"
	ExtensionMP4 = "mp4"
)

// LiveStreamURL returns {base}/live/{user}/{pass}/{id}.m3u8.
func LiveStreamURL(creds Credentials, streamID string) string {
	return streamURL(creds, pathLive, streamID, ExtensionHLS)
}

// MovieStreamURL returns {base}/movie/{user}/{pass}/{id}.{ext}. A blank
// extension falls back to mp4.
func MovieStreamURL(creds Credentials, streamID, ext string) string {
	return streamURL(creds, pathMovie, streamID, ext)
}

// EpisodeStreamURL returns {base}/series/{user}/{pass}/{id}.{ext}. A blank
// extension falls back to mp4.
func EpisodeStreamURL(creds Credentials, episodeID, ext string) string {
	return streamURL(creds, pathSeries, episodeID, ext)
}

func streamURL(creds Credentials, path, id, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = ExtensionMP4
	}

	var b strings.Builder
	b.WriteString(creds.BaseURL())
	b.WriteString(path)
	b.WriteByte('/')
	b.WriteString(creds.Username)
	b.WriteByte('/')
	b.WriteString(creds.Password)
	b.WriteByte('/')
	b.WriteString(id)
	b.WriteByte('.')
	b.WriteString(ext)
	return b.String()
}
