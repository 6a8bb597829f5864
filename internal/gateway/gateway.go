// Package gateway runs the sealed stored procedures that mutate stock,
// orders, invoices and payments. Every call checks out exactly one pooled
// connection and releases it on every path.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"stockroom.app/internal/obs"
)

const (
	DefaultAcquireTimeout = 2 * time.Second

	// sentinel returned by the procedures for a business rule rejection
	rejectedID = -1
)

const tracerName = "stockroom.app/internal/gateway"

// Gateway executes operations against the shared pool.
type Gateway struct {
	db             *sql.DB
	acquireTimeout time.Duration
	callTimeout    time.Duration
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// Option configures Gateway behavior.
type Option func(*Gateway)

// WithAcquireTimeout bounds how long a call waits for a free connection.
func WithAcquireTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.acquireTimeout = d
		}
	}
}

// WithCallTimeout bounds the procedure itself. Zero lets it run to completion.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.callTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTracerProvider sets where Execute spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		if tp != nil {
			g.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.now = fn
		}
	}
}

// New builds a Gateway over db.
func New(db *sql.DB, opts ...Option) (*Gateway, error) {
	if db == nil {
		return nil, errors.New("gateway: database handle is required")
	}
	g := &Gateway{
		db:             db,
		acquireTimeout: DefaultAcquireTimeout,
		logger:         zap.NewNop(),
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Execute validates op, runs its procedure on one pooled connection and maps
// the outcome. Failures are always *Error.
func (g *Gateway) Execute(ctx context.Context, op Operation, actor Actor) (res Result, err error) {
	if op == nil {
		return Result{}, invalid("operation required")
	}
	kind := op.Kind()
	start := g.now()
	ctx, span := g.tracer.Start(ctx, "gateway.Execute", trace.WithAttributes(
		attribute.String("operation", kind.String()),
		attribute.Int64("actor.identity_id", actor.IdentityID),
	))
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(CodeOf(err))
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetAttributes(attribute.Int64("result.id", res.ID))
		}
		obs.ObserveOperation(kind.String(), outcome, g.now().Sub(start))
		span.End()
	}()

	op, err = op.normalize()
	if err != nil {
		return Result{}, err
	}
	if actor.IdentityID <= 0 {
		return Result{}, invalid("acting identity required")
	}

	log := g.logger.With(
		zap.String("operation", kind.String()),
		zap.Int64("identity_id", actor.IdentityID),
	)
	if rid := obs.RequestIDFromContext(ctx); rid != "" {
		log = log.With(zap.String("request_id", rid))
	}

	conn, err := g.acquire(ctx)
	if err != nil {
		log.Error("connection checkout failed", zap.Error(err))
		return Result{}, failed(kind.failureMessage(), err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("connection release failed", zap.Error(cerr))
		}
	}()

	// A client disconnect must not interrupt a running procedure.
	callCtx := context.WithoutCancel(ctx)
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, g.callTimeout)
		defer cancel()
	}

	query, args := op.statement(actor)
	var (
		id  sql.NullInt64
		msg sql.NullString
	)
	if err := conn.QueryRowContext(callCtx, query, args...).Scan(&id, &msg); err != nil {
		log.Error("procedure call failed", zap.Error(err))
		return Result{}, failed(kind.failureMessage(), err)
	}

	switch {
	case !id.Valid:
		log.Error("procedure returned no id", zap.String("message", msg.String))
		return Result{}, failed(kind.failureMessage(), errors.New("procedure returned null id"))
	case id.Int64 == rejectedID:
		log.Info("operation rejected", zap.String("reason", msg.String))
		if msg.String == "" {
			return Result{}, rejected("Operation rejected")
		}
		return Result{}, rejected(msg.String)
	case id.Int64 <= 0:
		log.Error("procedure returned unexpected id", zap.Int64("result_id", id.Int64))
		return Result{}, failed(kind.failureMessage(), errors.New("procedure returned non-positive id"))
	}

	log.Info("operation committed", zap.Int64("result_id", id.Int64))
	return Result{ID: id.Int64, Message: msg.String}, nil
}

func (g *Gateway) acquire(ctx context.Context) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, g.acquireTimeout)
	defer cancel()
	return g.db.Conn(actx)
}
