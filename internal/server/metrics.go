package server

import (
	"context"
	"strconv"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records HTTP and GraphQL operation metrics. It is a gqlgen
// handler extension.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	operationTime  *prometheus.HistogramVec
	resolverErrors *prometheus.CounterVec
}

var (
	_ graphql.HandlerExtension    = (*Metrics)(nil)
	_ graphql.ResponseInterceptor = (*Metrics)(nil)
)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskgraph",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskgraph",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskgraph",
			Name:      "graphql_responses_total",
			Help:      "GraphQL responses by operation type and name.",
		}, []string{"type", "operation"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskgraph",
			Name:      "graphql_response_duration_seconds",
			Help:      "Time to produce a GraphQL response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		resolverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskgraph",
			Name:      "graphql_errors_total",
			Help:      "GraphQL errors by code.",
		}, []string{"code"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.operations, m.operationTime, m.resolverErrors)
	return m
}

func (m *Metrics) ExtensionName() string { return "PrometheusMetrics" }

func (m *Metrics) Validate(graphql.ExecutableSchema) error { return nil }

// InterceptResponse counts every response, so a subscription counts once per event.
func (m *Metrics) InterceptResponse(ctx context.Context, next graphql.ResponseHandler) *graphql.Response {
	start := time.Now()
	resp := next(ctx)
	if resp == nil {
		return nil
	}

	opType, opName := "unknown", ""
	if graphql.HasOperationContext(ctx) {
		opCtx := graphql.GetOperationContext(ctx)
		opName = opCtx.OperationName
		if opCtx.Operation != nil {
			opType = string(opCtx.Operation.Operation)
		}
	}

	m.operations.WithLabelValues(opType, opName).Inc()
	m.operationTime.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	for _, err := range resp.Errors {
		code, _ := err.Extensions["code"].(string)
		if code == "" {
			code = "GRAPHQL_VALIDATION_FAILED"
		}
		m.resolverErrors.WithLabelValues(code).Inc()
	}
	return resp
}

func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
