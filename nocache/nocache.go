// Package nocache implements an http.Handler decorator that forbids
// clients and proxies from caching any response.
package nocache

import (
	"net/http"
)

const (
	// CacheControl is the value of the Cache-Control header set on every response.
	CacheControl = "no-store, no-cache, must-revalidate, max-age=0"
	// Pragma covers HTTP/1.0 caches.
	Pragma = "no-cache"
	// Expires marks the response as already expired.
	Expires = "0"
)

// Header is a single response header injected by the Handler.
type Header struct {
	Key   string
	Value string
}

// Headers are the cache-busting headers in the order they are emitted.
var Headers = []Header{
	{Key: "Cache-Control", Value: CacheControl},
	{Key: "Pragma", Value: Pragma},
	{Key: "Expires", Value: Expires},
}

// Apply sets the cache-busting headers on h.
func Apply(h http.Header) {
	for _, v := range Headers {
		h.Set(v.Key, v.Value)
	}
}

// Handler wraps next so that every response it produces,
// errors and redirects included, carries the cache-busting headers.
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		w := &responseWriter{ResponseWriter: rw}
		next.ServeHTTP(w, req)
		// handlers that never write still get the headers
		w.finalize()
	})
}

// responseWriter injects the headers right before the header block is sent.
// http.FileServer strips Cache-Control from error responses, so setting
// the headers before calling the wrapped handler isn't enough.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *responseWriter) finalize() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	Apply(w.ResponseWriter.Header())
}

func (w *responseWriter) WriteHeader(code int) {
	// 1xx responses are informational, the final header block comes later
	if code >= 100 && code <= 199 && code != http.StatusSwitchingProtocols {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.finalize()
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.finalize()
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Flush() {
	w.finalize()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
