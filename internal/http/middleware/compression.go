package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// SkipCompressionForSSE applies compress to every request except event
// streams, which must be flushed unbuffered. A request is an event stream when
// it accepts text/event-stream or targets one of ssePaths.
func SkipCompressionForSSE(compress func(http.Handler) http.Handler, ssePaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compress(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
				slices.Contains(ssePaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
