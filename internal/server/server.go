// Package server wires the GraphQL API into an HTTP router.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/graph"
)

// Options configures the router.
type Options struct {
	Resolver *graph.Resolver
	Logger   *zap.Logger
	// Registry receives the server metrics and is served on /metrics.
	// A nil registry creates a private one.
	Registry *prometheus.Registry

	// MediaDir is served under /media when set.
	MediaDir       string
	AllowedOrigins []string
	MaxUploadBytes int64

	// Health reports whether the service can take requests.
	Health func(ctx context.Context) error
}

// New builds the HTTP handler:
//
//	POST/GET /graphql  GraphQL over JSON, query params, multipart, websocket and SSE
//	GET /graphql       playground for browsers
//	/media/*           locally stored uploads
//	/metrics           Prometheus metrics
//	/healthz           liveness
func New(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := NewMetrics(reg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), metrics.middleware(), cors(opts.AllowedOrigins))

	api := auth.Middleware(newGraphQLHandler(opts, metrics))
	page := playground.Handler("taskgraph", "/graphql")
	graphqlRoute := func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && c.Query("query") == "" && !isUpgrade(c.Request) {
			page.ServeHTTP(c.Writer, c.Request)
			return
		}
		api.ServeHTTP(c.Writer, c.Request)
	}
	router.GET("/graphql", graphqlRoute)
	router.POST("/graphql", graphqlRoute)
	router.OPTIONS("/graphql", graphqlRoute)

	if opts.MediaDir != "" {
		router.Static("/media", opts.MediaDir)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	router.GET("/healthz", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

func newGraphQLHandler(opts Options, metrics *Metrics) *handler.Server {
	srv := handler.New(graph.NewExecutableSchema(graph.Config{Resolvers: opts.Resolver}))

	srv.AddTransport(transport.Websocket{
		KeepAlivePingInterval: 10 * time.Second,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(opts.AllowedOrigins, r.Header.Get("Origin"))
			},
		},
		// Browsers cannot set headers on websockets; the token travels in
		// the connection_init payload instead.
		InitFunc: func(ctx context.Context, payload transport.InitPayload) (context.Context, *transport.InitPayload, error) {
			if token := auth.TokenFromHeader(payload.Authorization()); token != "" {
				ctx = auth.WithToken(ctx, token)
			}
			return ctx, &payload, nil
		},
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.SSE{}) // before POST, which also accepts SSE requests
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.AddTransport(transport.MultipartForm{
		MaxUploadSize: opts.MaxUploadBytes,
		MaxMemory:     32 << 20,
	})

	srv.SetQueryCache(lru.New[*ast.QueryDocument](1000))
	srv.Use(extension.Introspection{})
	srv.Use(extension.AutomaticPersistedQuery{Cache: lru.New[string](100)})
	srv.Use(metrics)

	return srv
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
