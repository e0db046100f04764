package mockledger

import (
	"net/http"

	"github.com/creachadair/jrpc2/jhttp"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Handler serves the ledger's JSON RPC surface over HTTP.
type Handler struct {
	bridge jhttp.Bridge
	ledger *Ledger
	http.Handler

	requestCounter prometheus.Counter
}

// NewHandler wires the ledger's method map behind an HTTP bridge with
// permissive CORS, the way browser-based contract clients expect, and
// registers its request counter on registry (which may be nil).
func NewHandler(l *Ledger, registry *prometheus.Registry) *Handler {
	bridge := jhttp.NewBridge(l.methods(), nil)
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
	})

	requestCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mock_ledger", Subsystem: "rpc", Name: "requests_total",
		Help: "total RPC requests served",
	})
	if registry != nil {
		registry.MustRegister(requestCounter)
	}

	h := &Handler{
		bridge:         bridge,
		ledger:         l,
		requestCounter: requestCounter,
	}
	router := chi.NewRouter()
	router.Use(h.countRequests)
	router.Handle("/", corsMiddleware.Handler(bridge))
	h.Handler = router
	return h
}

func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requestCounter.Inc()
		next.ServeHTTP(w, r)
	})
}

// Close stops the bridge. The handler rejects requests afterwards.
func (h *Handler) Close() {
	if err := h.bridge.Close(); err != nil {
		h.ledger.logger.WithError(err).Warn("could not close bridge")
	}
}

// NewAdminHandler serves operational endpoints: prometheus metrics and
// pprof. Not meant to be reachable from anywhere but localhost.
func NewAdminHandler(registry *prometheus.Registry) http.Handler {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Mount("/debug", middleware.Profiler())
	return router
}
