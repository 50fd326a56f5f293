package timer

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// MakeRequestTimeTracker wraps the handler so that the time spent
// on every request is passed to the savers once the handler returns.
func MakeRequestTimeTracker(handler http.Handler, savers ...func(req *http.Request, t time.Duration)) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := time.Now()
		handler.ServeHTTP(rw, req)
		elapsed := time.Since(start)

		for _, save := range savers {
			save(req, elapsed)
		}
	})
}

// LogSaver returns a saver reporting the serving time at debug level.
func LogSaver(logger *log.Logger) func(req *http.Request, t time.Duration) {
	return func(req *http.Request, t time.Duration) {
		logger.Debug("Request served", "path", req.URL.Path, "took", t)
	}
}
