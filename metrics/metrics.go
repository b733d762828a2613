// Package metrics collects Prometheus metrics for the volatility oracle and
// option pricer and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds every metric the daemon exports. It satisfies both the oracle's
// and the pricer's Recorder interfaces.
type Set struct {
	registry *prometheus.Registry

	commitsAccepted *prometheus.CounterVec
	commitsRejected *prometheus.CounterVec
	annualizedVol   *prometheus.GaugeVec
	lastCommit      *prometheus.GaugeVec

	quotesServed *prometheus.CounterVec

	feedMessages   prometheus.Counter
	feedReconnects prometheus.Counter
}

type Config struct {
	Namespace string
}

func DefaultConfig() Config {
	return Config{Namespace: "voloracle"}
}

func New(cfg Config) *Set {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Set{
		registry: reg,

		commitsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "commits_accepted_total",
				Help:      "Accepted volatility commits",
			},
			[]string{"instrument"},
		),
		commitsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "commits_rejected_total",
				Help:      "Rejected volatility commits by reason",
			},
			[]string{"instrument", "reason"},
		),
		annualizedVol: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "annualized_vol",
				Help:      "Annualized volatility at 1e8 scale",
			},
			[]string{"instrument"},
		),
		lastCommit: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "last_commit_timestamp_seconds",
				Help:      "Period boundary of the last accepted commit",
			},
			[]string{"instrument"},
		),

		quotesServed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "quotes_served_total",
				Help:      "Option quotes served by side",
			},
			[]string{"side"},
		),

		feedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "feed_messages_total",
			Help:      "Price feed messages received",
		}),
		feedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "feed_reconnects_total",
			Help:      "Price feed reconnect attempts",
		}),
	}
}

func (s *Set) CommitAccepted(instrument string, annualizedVol, boundary int64) {
	s.commitsAccepted.WithLabelValues(instrument).Inc()
	s.annualizedVol.WithLabelValues(instrument).Set(float64(annualizedVol))
	s.lastCommit.WithLabelValues(instrument).Set(float64(boundary))
}

func (s *Set) CommitRejected(instrument, reason string) {
	s.commitsRejected.WithLabelValues(instrument, reason).Inc()
}

func (s *Set) QuoteServed(side string) {
	s.quotesServed.WithLabelValues(side).Inc()
}

func (s *Set) FeedMessage() {
	s.feedMessages.Inc()
}

func (s *Set) FeedReconnect() {
	s.feedReconnects.Inc()
}

// Handler returns the HTTP handler exposing this set's registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Set) Registry() *prometheus.Registry {
	return s.registry
}

// Serve exposes the metrics endpoint in the background.
func (s *Set) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
