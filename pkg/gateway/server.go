// Package gateway is the configuration service's HTTP front: routing,
// CORS, request logging and metrics, with every configuration route
// behind the service auth gate.
package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"ConfigService/pkg/auth"
	"ConfigService/pkg/respond"
	"ConfigService/pkg/store"
)

const (
	ServiceName    = "Configuration Service"
	ServiceVersion = "1.0.0"

	// ConfigurationsPath is where the configuration API is mounted.
	ConfigurationsPath = "/api/configurations"
)

type Options struct {
	Gate  *auth.Gate
	Store store.Store
	// AllowedOrigin is the main app origin allowed by CORS.
	AllowedOrigin string
	// Registry, when set, receives HTTP metrics and is served at /metrics.
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

type Server struct {
	h http.Handler
}

func New(opts Options) *Server {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(recoverJSON)
	if opts.Registry != nil {
		r.Use(newHTTPMetrics(opts.Registry).middleware)
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{opts.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			auth.HeaderAPIKey,
			auth.HeaderUserID,
			auth.HeaderSignature,
			auth.HeaderTimestamp,
		},
		AllowCredentials: true,
	}).Handler)

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{
			"service": ServiceName,
			"version": ServiceVersion,
			"status":  "running",
		})
	})
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	h := &Handler{Store: opts.Store}
	// The gate wraps each route rather than the subtree, so unknown
	// routes and methods get the JSON 404 without credentials.
	r.Route(ConfigurationsPath, func(r chi.Router) {
		h.Routes(r.With(opts.Gate.Middleware))
	})

	return &Server{h: r}
}

func (s *Server) Handler() http.Handler {
	return s.h
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, http.StatusNotFound, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
}

func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				hlog.FromRequest(r).Error().Interface("panic", rvr).Msg("unhandled panic")
				respond.Error(w, http.StatusInternalServerError, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type httpMetrics struct {
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "configsvc_http_request_duration_seconds",
			Help:    "HTTP request latencies by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.duration)
	return m
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.duration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
