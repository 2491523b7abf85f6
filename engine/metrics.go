package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var assessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "moderation_assess_duration_seconds",
	Help:    "Time to produce a risk decision for one message",
	Buckets: prometheus.ExponentialBucketsRange(0.001, 10, 10),
})

var assessPanicCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_assess_panics_total",
	Help: "Number of assessments recovered from a panic",
})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_decisions_total",
	Help: "Number of decisions produced, by action category",
}, []string{"action"})

var sourceErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_source_errors_total",
	Help: "Number of failed source calls, by source",
}, []string{"source"})

var cacheHitCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_decision_cache_hits_total",
	Help: "Number of assessments served from the decision cache",
})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_escalations_total",
	Help: "Number of escalation actions taken, by action",
}, []string{"action"})
