package xtream

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Transport defaults. Connect and read timeouts mirror what panels
// typically tolerate on mobile links.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 15 * time.Second
	DefaultTimeout        = 2 * time.Minute
)

// Encoding constants.
const (
	headerAcceptEncoding  = "Accept-Encoding"
	headerContentEncoding = "Content-Encoding"
	acceptEncodingValue   = "gzip, deflate, br"

	encodingGzip    = "gzip"
	encodingDeflate = "deflate"
	encodingBrotli  = "br"
)

// NewHTTPClient returns an *http.Client whose transport dials with
// connectTimeout, waits at most readTimeout for response headers, and
// decodes gzip, deflate and brotli bodies. Requests are never retried.
func NewHTTPClient(connectTimeout, readTimeout time.Duration, logger *slog.Logger) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	base.ResponseHeaderTimeout = readTimeout
	// Decompression is handled by DecompressingTransport so brotli is
	// covered too.
	base.DisableCompression = true

	return &http.Client{
		Transport: NewDecompressingTransport(base, logger),
		Timeout:   DefaultTimeout,
	}
}

// DecompressingTransport advertises gzip, deflate and brotli and unwraps
// the response body accordingly. It also logs each round trip at debug
// level with the query string removed.
type DecompressingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// NewDecompressingTransport wraps next. A nil next uses http.DefaultTransport.
func NewDecompressingTransport(next http.RoundTripper, logger *slog.Logger) *DecompressingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DecompressingTransport{next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *DecompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(headerAcceptEncoding) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(headerAcceptEncoding, acceptEncodingValue)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.DebugContext(req.Context(), "panel request failed",
			slog.String("url", redactedURL(req)),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", redactURLError(err).Error()),
		)
		return nil, err
	}

	t.logger.DebugContext(req.Context(), "panel request completed",
		slog.String("url", redactedURL(req)),
		slog.Int("status", resp.StatusCode),
		slog.String("encoding", resp.Header.Get(headerContentEncoding)),
		slog.Duration("duration", time.Since(start)),
	)

	t.wrapDecompression(resp)
	return resp, nil
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *DecompressingTransport) CloseIdleConnections() {
	if ci, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// wrapDecompression replaces resp.Body with a decoding reader when the
// Content-Encoding is one we understand.
func (t *DecompressingTransport) wrapDecompression(resp *http.Response) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get(headerContentEncoding)))
	if encoding == "" {
		return
	}

	var reader io.Reader
	switch encoding {
	case encodingGzip:
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			t.logger.Warn("failed to create gzip reader, returning raw body",
				slog.String("error", err.Error()),
			)
			return
		}
		reader = gz
	case encodingDeflate:
		reader = flate.NewReader(resp.Body)
	case encodingBrotli:
		reader = brotli.NewReader(resp.Body)
	default:
		return
	}

	resp.Body = &decompressReader{reader: reader, closer: resp.Body}
	resp.Header.Del(headerContentEncoding)
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
}

// decompressReader wraps a decompression reader with the original body closer.
type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		closer.Close()
	}
	return d.closer.Close()
}

func redactedURL(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}

var _ http.RoundTripper = (*DecompressingTransport)(nil)
