package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"InventoryChat/internal/chatbot"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invchat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invchat_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	chatExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invchat_chat_exchanges_total",
			Help: "Total number of chat exchanges by provider and outcome.",
		},
		[]string{"provider", "status", "cached"},
	)

	chatLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invchat_chat_latency_ms",
			Help:    "Backend latency of chat exchanges in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"provider"},
	)

	chatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invchat_chat_tokens_total",
			Help: "Tokens reported by the backend.",
		},
		[]string{"provider", "kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		chatExchangesTotal,
		chatLatencyMs,
		chatTokensTotal,
	)
}

// metricsMiddleware records request counts and latency by route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func observeChat(res chatbot.ChatResult) {
	provider := string(res.Provider)
	chatExchangesTotal.WithLabelValues(provider, string(res.Status), strconv.FormatBool(res.Cached)).Inc()
	if !res.Cached {
		chatLatencyMs.WithLabelValues(provider).Observe(float64(res.LatencyMS))
	}
	chatTokensTotal.WithLabelValues(provider, "prompt").Add(float64(res.TokenUsage.PromptTokens))
	chatTokensTotal.WithLabelValues(provider, "completion").Add(float64(res.TokenUsage.CompletionTokens))
}
