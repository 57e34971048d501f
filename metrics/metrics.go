// Package metrics holds the prometheus collectors of the ceremony engine and
// the listener exposing them.
package metrics

import (
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drand/ceremony/log"
)

var (
	// PrivateMetrics about the internal world (go process, private stuff)
	PrivateMetrics = prometheus.NewRegistry()
	// HTTPMetrics about the public surface area (http requests)
	HTTPMetrics = prometheus.NewRegistry()
	// CeremonyMetrics about assignments and judgements
	CeremonyMetrics = prometheus.NewRegistry()

	// CommunitiesAssigned (Ceremony) communities that got an assignment
	CommunitiesAssigned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ceremony_communities_assigned",
		Help: "Number of community assignments computed",
	})
	// CommunitiesSkipped (Ceremony) communities without assignment, by reason
	CommunitiesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ceremony_communities_skipped",
		Help: "Number of communities left without assignment",
	}, []string{"reason"})
	// MeetupsOpened (Ceremony) meetups of the last assigned cycle per community
	MeetupsOpened = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ceremony_meetups",
		Help: "Number of meetups opened in the last assigned cycle",
	}, []string{"community"})
	// SeatedParticipants (Ceremony) seated participants per category
	SeatedParticipants = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ceremony_seated_participants",
		Help: "Number of participants seated in the last assigned cycle",
	}, []string{"community", "category"})
	// CycleDuration (Ceremony) time to assign a whole cycle
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ceremony_cycle_assign_seconds",
		Help:    "Time taken to assign every community of a cycle",
		Buckets: prometheus.DefBuckets,
	})
	// Exclusions (Ceremony) excluded participants by reason
	Exclusions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ceremony_exclusions",
		Help: "Number of participants excluded from rewards",
	}, []string{"reason"})
	// UndependableMeetups (Ceremony) meetups without dependable vote
	UndependableMeetups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ceremony_undependable_meetups",
		Help: "Number of meetups whose votes were not dependable",
	})
	// RewardsIssued (Ceremony) participants handed to the rewarder
	RewardsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ceremony_rewards_issued",
		Help: "Number of legit participants rewarded",
	})

	// BeaconFetches (Private) requests to drand relays by status
	BeaconFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_fetches",
		Help: "Number of requests made to drand relays",
	}, []string{"code"})
	// BeaconFetchLatency (Private) latency of drand relay requests
	BeaconFetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "beacon_fetch_seconds",
		Help:    "Latency of requests to drand relays",
		Buckets: prometheus.DefBuckets,
	})
	// BeaconVerifyFailures (Private) beacons with an invalid signature
	BeaconVerifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beacon_verify_failures",
		Help: "Number of fetched beacons failing verification",
	})

	// HTTPCallCounter (HTTP) how many http requests
	HTTPCallCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_call_counter",
		Help: "Number of HTTP calls received",
	}, []string{"code", "method"})
	// HTTPLatency (HTTP) how long http request handling takes
	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "http_response_duration",
		Help:        "histogram of request latencies",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"handler": "http"},
	}, []string{"method"})
	// HTTPInFlight (HTTP) how many http requests exist
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight",
		Help: "A gauge of requests currently being served.",
	})

	bindOnce sync.Once
)

func bindMetrics() {
	// The private go-level metrics live in private.
	_ = PrivateMetrics.Register(prometheus.NewGoCollector())
	_ = PrivateMetrics.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	private := []prometheus.Collector{
		BeaconFetches,
		BeaconFetchLatency,
		BeaconVerifyFailures,
	}
	for _, c := range private {
		_ = PrivateMetrics.Register(c)
	}

	ceremony := []prometheus.Collector{
		CommunitiesAssigned,
		CommunitiesSkipped,
		MeetupsOpened,
		SeatedParticipants,
		CycleDuration,
		Exclusions,
		UndependableMeetups,
		RewardsIssued,
	}
	for _, c := range ceremony {
		_ = CeremonyMetrics.Register(c)
		_ = PrivateMetrics.Register(c)
	}

	http := []prometheus.Collector{
		HTTPCallCounter,
		HTTPLatency,
		HTTPInFlight,
	}
	for _, c := range http {
		_ = HTTPMetrics.Register(c)
		_ = PrivateMetrics.Register(c)
	}
}

// Bind registers every collector once.
func Bind() {
	bindOnce.Do(bindMetrics)
}

// Start starts a prometheus metrics server with debug endpoints.
func Start(l log.Logger, metricsBind string, pprof http.Handler) (net.Listener, error) {
	Bind()

	ln, err := net.Listen("tcp", metricsBind)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	l.Debugw("private listener started", "at", ln.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(PrivateMetrics, promhttp.HandlerOpts{Registry: PrivateMetrics}))
	mux.Handle("/metrics/ceremony", CeremonyHandler())
	if pprof != nil {
		mux.Handle("/debug/pprof/", http.StripPrefix("/debug/pprof", pprof))
	}
	mux.HandleFunc("/debug/gc", func(w http.ResponseWriter, req *http.Request) {
		runtime.GC()
		fmt.Fprintf(w, "GC run complete")
	})

	s := http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() {
		l.Warnw("metrics listen finished", "err", s.Serve(ln))
	}()
	return ln, nil
}

// CeremonyHandler exposes only the ceremony metrics.
func CeremonyHandler() http.Handler {
	return promhttp.HandlerFor(CeremonyMetrics, promhttp.HandlerOpts{Registry: CeremonyMetrics})
}
