package web

import (
	"log"
	"net/http"
	"time"
)

// statusRecorder remembers the status code a handler writes,
// some handlers never call WriteHeader so it defaults to 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func NilHandler(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte{})
}

// Logger wraps handler with one request log line per call when verbose
// is set, a plain passthrough otherwise.
func Logger(handler http.Handler, name string, verbose bool) http.Handler {
	if !verbose {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(rec, r)
		log.Printf("%s- %s %s> (%d) @%s: - agent:%s - %s",
			name, r.Method, r.RequestURI, rec.status,
			r.Header.Get("X-FORWARDED-FOR"), r.Header.Get("USER-AGENT"), time.Since(t0))
	})
}
