// Package m3u writes extended M3U playlists.
package m3u

import (
	"fmt"
	"io"
	"strings"
)

// Entry is one playlist item.
type Entry struct {
	// Duration in seconds; zero is written as -1, meaning live or unknown.
	Duration int

	// TvgID is the guide channel identifier.
	TvgID      string
	TvgName    string
	TvgLogo    string
	GroupTitle string

	// ChannelNumber is written as tvg-chno when positive.
	ChannelNumber int64

	Title string
	URL   string
}

// Writer streams a playlist. The #EXTM3U header is written before the first
// entry.
type Writer struct {
	w             io.Writer
	headerWritten bool
	entries       int
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the playlist header once.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if _, err := fmt.Fprintln(w.w, "#EXTM3U"); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes the EXTINF line and URL of entry.
func (w *Writer) WriteEntry(entry Entry) error {
	if entry.URL == "" {
		return fmt.Errorf("playlist entry %q has no URL", entry.Title)
	}
	if err := w.WriteHeader(); err != nil {
		return err
	}

	var b strings.Builder
	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}
	fmt.Fprintf(&b, "#EXTINF:%d", duration)

	attr := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, ` %s="%s"`, name, escapeQuotes(value))
		}
	}
	attr("tvg-id", entry.TvgID)
	attr("tvg-name", entry.TvgName)
	attr("tvg-logo", entry.TvgLogo)
	attr("group-title", entry.GroupTitle)
	if entry.ChannelNumber > 0 {
		fmt.Fprintf(&b, ` tvg-chno="%d"`, entry.ChannelNumber)
	}

	// A newline in the title would end the EXTINF line early.
	title := strings.Join(strings.Fields(entry.Title), " ")
	fmt.Fprintf(&b, ",%s\n%s\n", title, entry.URL)

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return fmt.Errorf("writing entry %q: %w", entry.Title, err)
	}
	w.entries++
	return nil
}

// Entries returns how many entries have been written.
func (w *Writer) Entries() int {
	return w.entries
}

// escapeQuotes escapes double quotes in attribute values.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
