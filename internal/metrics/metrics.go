// Package metrics declares the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheLookups counts cache reads by cache name and result (hit, miss, stale, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcheckout",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache and result.",
	}, []string{"cache", "result"})

	// CacheEvictions counts entries removed by capacity pressure or expiry sweeps.
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcheckout",
		Name:      "cache_evictions_total",
		Help:      "Cache evictions by cache and reason.",
	}, []string{"cache", "reason"})

	// LLMCalls counts completion calls by provider and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcheckout",
		Name:      "llm_calls_total",
		Help:      "LLM completion calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ChatTurns counts handled turns by the step they ended on.
	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcheckout",
		Name:      "chat_turns_total",
		Help:      "Chat turns by resulting step.",
	}, []string{"step"})

	// RecoveredTurns counts turns converted into the recovery response.
	RecoveredTurns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcheckout",
		Name:      "chat_recovered_turns_total",
		Help:      "Turns that failed inside a step handler and were recovered.",
	})

	// ActiveSessions tracks the number of in-memory conversation sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatcheckout",
		Name:      "active_sessions",
		Help:      "Conversation sessions held in memory.",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
