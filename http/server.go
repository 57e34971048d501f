// Package http serves the records of past and current ceremony cycles as a
// read only REST API.
package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/gorilla/handlers"
	json "github.com/nikkolasg/hexjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drand/ceremony/ceremony"
	"github.com/drand/ceremony/log"
	"github.com/drand/ceremony/metrics"
	"github.com/drand/ceremony/store"
)

// New returns the REST handler over s. The version is reported by /health.
func New(s store.Store, version string, l log.Logger) http.Handler {
	h := &handler{store: s, version: version, log: l.Named("http")}

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/ceremonies/{cindex}/communities", func(r chi.Router) {
		r.Get("/", h.Communities)
		r.Get("/{cid}/assignment", h.Assignment)
		r.Get("/{cid}/judgements", h.Judgements)
		r.Get("/{cid}/meetups/{meetup}/judgement", h.Judgement)
	})

	var out http.Handler = r
	out = handlers.CompressHandler(out)
	out = promhttp.InstrumentHandlerDuration(metrics.HTTPLatency, out)
	out = promhttp.InstrumentHandlerCounter(metrics.HTTPCallCounter, out)
	return promhttp.InstrumentHandlerInFlight(metrics.HTTPInFlight, out)
}

type handler struct {
	store   store.Store
	version string
	log     log.Logger
}

type assignmentResponse struct {
	*ceremony.CommunityAssignment
	Digest []byte `json:"digest"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, &healthResponse{Status: "ok", Version: h.version})
}

func (h *handler) Communities(w http.ResponseWriter, r *http.Request) {
	cindex, ok := h.cindex(w, r)
	if !ok {
		return
	}
	all, err := h.store.Assignments(r.Context(), cindex)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]*assignmentResponse, 0, len(all))
	for _, a := range all {
		out = append(out, &assignmentResponse{CommunityAssignment: a, Digest: a.Digest()})
	}
	h.write(w, r, out)
}

func (h *handler) Assignment(w http.ResponseWriter, r *http.Request) {
	cindex, ok := h.cindex(w, r)
	if !ok {
		return
	}
	a, err := h.store.Assignment(r.Context(), cindex, chi.URLParam(r, "cid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, &assignmentResponse{CommunityAssignment: a, Digest: a.Digest()})
}

func (h *handler) Judgements(w http.ResponseWriter, r *http.Request) {
	cindex, ok := h.cindex(w, r)
	if !ok {
		return
	}
	all, err := h.store.Judgements(r.Context(), cindex, chi.URLParam(r, "cid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if all == nil {
		all = []*store.MeetupJudgement{}
	}
	h.write(w, r, all)
}

func (h *handler) Judgement(w http.ResponseWriter, r *http.Request) {
	cindex, ok := h.cindex(w, r)
	if !ok {
		return
	}
	meetup, err := strconv.ParseUint(chi.URLParam(r, "meetup"), 10, 64)
	if err != nil || meetup == 0 {
		h.badRequest(w, r, fmt.Errorf("invalid meetup index %q", chi.URLParam(r, "meetup")))
		return
	}
	j, err := h.store.Judgement(r.Context(), cindex, chi.URLParam(r, "cid"), meetup)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, j)
}

func (h *handler) cindex(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	cindex, err := strconv.ParseUint(chi.URLParam(r, "cindex"), 10, 32)
	if err != nil {
		h.badRequest(w, r, fmt.Errorf("invalid ceremony index %q", chi.URLParam(r, "cindex")))
		return 0, false
	}
	return uint32(cindex), true
}

func (h *handler) write(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		h.log.Debugw("writing response", "path", r.URL.Path, "err", err)
	}
}

func (h *handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Debugw("bad request", "path", r.URL.Path, "err", err)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.log.Warnw("serving request", "path", r.URL.Path, "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
