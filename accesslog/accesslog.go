// Package accesslog writes one line per served request in the form
// `[<timestamp>] <message>`, using the common access-log time format.
package accesslog

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TimeFormat is the layout of the bracketed timestamp.
const TimeFormat = "02/Jan/2006:15:04:05 -0700"

// Logger is safe for concurrent use. Every line is a single write to out.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// New creates a Logger writing to out, usually os.Stderr.
func New(out io.Writer) *Logger {
	return &Logger{
		out: out,
		now: time.Now,
	}
}

// Printf formats the message and writes it prefixed with the current time.
func (l *Logger) Printf(format string, args ...any) {
	l.write(fmt.Sprintf(format, args...))
}

// Write makes the Logger usable as the output of a standard log.Logger,
// e.g. http.Server.ErrorLog. Every call produces one line.
func (l *Logger) Write(p []byte) (int, error) {
	l.write(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (l *Logger) write(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.out, "[%s] %s\n", l.now().Format(TimeFormat), msg)
}

// LogRequest logs a completed request as `"<request line>" <code> <size>`.
func (l *Logger) LogRequest(req *http.Request, code int, size int64) {
	l.Printf("\"%s\" %d %s", requestLine(req), code, sizeString(size))
}

// LogError logs an error status as `code <code>, message <text>`.
func (l *Logger) LogError(code int, message string) {
	l.Printf("code %d, message %s", code, message)
}

// Handler logs every request served by next once it has completed.
func (l *Logger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		w := &statusWriter{ResponseWriter: rw}
		next.ServeHTTP(w, req)

		code := w.Code()
		if code >= http.StatusBadRequest {
			l.LogError(code, http.StatusText(code))
		}
		l.LogRequest(req, code, w.size)
	})
}

func requestLine(req *http.Request) string {
	uri := req.RequestURI
	if uri == "" {
		uri = req.URL.RequestURI()
	}
	return req.Method + " " + uri + " " + req.Proto
}

func sizeString(size int64) string {
	if size <= 0 {
		return "-"
	}
	return fmt.Sprint(size)
}

// statusWriter remembers the status code and counts body bytes.
type statusWriter struct {
	http.ResponseWriter
	code int
	size int64
}

// Code returns the status sent to the client, 200 when the handler never set one.
func (w *statusWriter) Code() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

func (w *statusWriter) WriteHeader(code int) {
	// keep the final status, not an informational one
	if w.code == 0 && (code < 100 || code > 199) {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
