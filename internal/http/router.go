package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/greeter-service/internal/observability"
)

// RouterConfig holds what NewRouter needs to assemble the route table.
type RouterConfig struct {
	Handler *Handler
	Logger  *zap.Logger
	// Limiter throttles GET /. Nil disables rate limiting.
	Limiter *rate.Limiter
	// OpsEndpoints exposes /health and /metrics.
	OpsEndpoints       bool
	CORSAllowedOrigins []string
}

// NewRouter returns the service's root handler: GET / plus the optional ops endpoints.
// Unmatched paths get a 404 envelope and wrong methods a 405, both through the same
// middleware as routed requests.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	common := []mux.MiddlewareFunc{
		CorrelationIDMiddleware(logger),
		MetricsMiddleware,
		SizeMetricsMiddleware,
		RecoverMiddleware(logger),
	}

	router := mux.NewRouter()
	router.Use(common...)
	router.NotFoundHandler = chain(http.HandlerFunc(cfg.Handler.NotFound), common...)
	router.MethodNotAllowedHandler = chain(http.HandlerFunc(cfg.Handler.MethodNotAllowed), common...)

	greet := RateLimitMiddleware(cfg.Limiter)(http.HandlerFunc(cfg.Handler.GetGreeting))
	router.Handle("/", greet).Methods(http.MethodGet)

	if cfg.OpsEndpoints {
		router.HandleFunc("/health", cfg.Handler.GetHealth).Methods(http.MethodGet)
		router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	}

	return CORSMiddleware(cfg.CORSAllowedOrigins)(router)
}

// chain wraps h so that mws[0] runs first.
func chain(h http.Handler, mws ...mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
