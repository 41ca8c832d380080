package m3u

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteEntry(Entry{
		TvgID:         "bbc1.uk",
		TvgName:       `BBC "One"`,
		TvgLogo:       "http://logo.example/bbc1.png",
		GroupTitle:    "UK",
		ChannelNumber: 101,
		Title:         "BBC One\nHD",
		URL:           "http://panel.example/live/u/p/1.m3u8",
	}))
	require.NoError(t, w.WriteEntry(Entry{
		Duration: 5400,
		Title:    "Heat",
		URL:      "http://panel.example/movie/u/p/9.mkv",
	}))

	want := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-id="bbc1.uk" tvg-name="BBC \"One\"" tvg-logo="http://logo.example/bbc1.png" group-title="UK" tvg-chno="101",BBC One HD` + "\n" +
		"http://panel.example/live/u/p/1.m3u8\n" +
		"#EXTINF:5400,Heat\n" +
		"http://panel.example/movie/u/p/9.mkv\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, w.Entries())
}

func TestWriter_HeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteHeader())
	assert.Equal(t, "#EXTM3U\n", buf.String())
}

func TestWriter_RejectsEntryWithoutURL(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	assert.Error(t, w.WriteEntry(Entry{Title: "nowhere"}))
	assert.Empty(t, buf.String())
	assert.Zero(t, w.Entries())
}
