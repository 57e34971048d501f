// Package pprof is kept apart from metrics so that only the ceremony binary
// pulls in the net/http/pprof side effects.
package pprof

import (
	"net/http"
	"net/http/pprof"
)

// WithProfile returns a mux serving the pprof endpoints, to mount at /debug/pprof.
func WithProfile() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	return mux
}
