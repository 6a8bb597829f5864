package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"stockroom.app/internal/auth"
	"stockroom.app/internal/catalog"
	"stockroom.app/internal/gateway"
	"stockroom.app/internal/obs"
	"stockroom.app/internal/ratelimit"
)

const defaultMaxBodyBytes = 1 << 20

// Authenticator logs users in and validates their bearer tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Authenticate(token string) (auth.Principal, error)
}

// Operations dispatches transactional operations.
type Operations interface {
	Execute(ctx context.Context, op gateway.Operation, actor gateway.Actor) (gateway.Result, error)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the data layer.
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Auth        Authenticator
	Ops         Operations
	Catalog     catalog.Reader
	Ready       readinessChecker
	Limiter     ratelimit.Limiter
	Logger      *zap.Logger
	Version     string
	CORSOrigins []string
	// AllowLocalOrigins admits http://localhost and 127.0.0.1 origins.
	AllowLocalOrigins bool
	MaxBodyBytes      int64
	// TrustedProxies may report the caller via X-Forwarded-For.
	TrustedProxies []string
	Tracer         trace.TracerProvider
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	auth     Authenticator
	ops      Operations
	catalog  catalog.Reader
	ready    readinessChecker
	limiter  ratelimit.Limiter
	logger   *zap.Logger
	version  string
	origins  []string
	local    bool
	maxBytes int64
	proxies  TrustedProxies
	tracer   trace.TracerProvider
}

func New(d Deps) (*API, error) {
	if d.Auth == nil || d.Ops == nil || d.Catalog == nil {
		return nil, errors.New("httpapi: auth, operations and catalog are required")
	}
	a := &API{
		mux:      http.NewServeMux(),
		auth:     d.Auth,
		ops:      d.Ops,
		catalog:  d.Catalog,
		ready:    d.Ready,
		limiter:  d.Limiter,
		logger:   d.Logger,
		version:  d.Version,
		origins:  d.CORSOrigins,
		local:    d.AllowLocalOrigins,
		maxBytes: d.MaxBodyBytes,
		tracer:   d.Tracer,
	}
	proxies, err := ParseTrustedProxies(d.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	a.proxies = proxies
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.limiter == nil {
		a.limiter = ratelimit.Unlimited{}
	}
	if a.logger == nil {
		a.logger = obs.Logger()
	}
	if a.maxBytes <= 0 {
		a.maxBytes = defaultMaxBodyBytes
	}

	a.mux.HandleFunc("/health", a.Health)
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/orders", a.handleOrdersCollection)
	a.mux.HandleFunc("/api/orders/", a.handleOrderResource)
	a.mux.HandleFunc("/api/payments", a.handlePayments)
	a.mux.Handle("/api/products", RequirePermission(auth.PermProductsView, a.logger)(http.HandlerFunc(a.handleProducts)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Resource not found")
	})
	return a, nil
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBytes)
	h = RateLimit(h, a.limiter, a.logger)
	h = CORS(h, a.origins, a.local)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h, a.logger)
	h = obs.Trace(h, a.tracer)
	h = ClientIP(h, a.proxies)
	h = RequestID(h)
	return Recover(h, a.logger)
}

// Health is the minimal liveness document kept for existing clients.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "OK"})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "stockroom-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		a.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
