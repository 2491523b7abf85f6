package sources

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var perspectiveAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moderation_perspective_api_duration_sec",
	Help: "Duration of Perspective comment analysis API calls",
})

var perspectiveAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_perspective_api_count",
	Help: "Number of Perspective comment analysis API calls, by HTTP status code",
}, []string{"status"})

var moderationAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moderation_modapi_duration_sec",
	Help: "Duration of moderation endpoint API calls",
})

var moderationAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_modapi_count",
	Help: "Number of moderation endpoint API calls, by HTTP status code",
}, []string{"status"})
