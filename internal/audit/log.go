package audit

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"stockroom.app/internal/auth"
	"stockroom.app/internal/obs"
)

// Event names written to the audit trail.
const (
	EventLoginSucceeded   = "auth.login.succeeded"
	EventLoginFailed      = "auth.login.failed"
	EventOrderCreated     = "order.created"
	EventOrderRejected    = "order.rejected"
	EventPaymentProcessed = "payment.processed"
	EventPaymentRejected  = "payment.rejected"
)

// LogEvent writes an audit log entry enriched with request and identity context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	zf := make([]zap.Field, 0, len(fields)+4)
	zf = append(zf, zap.String("type", "audit"), zap.String("event", event))
	if rid := obs.RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if id := auth.ActingIdentity(ctx); id > 0 {
		zf = append(zf, zap.Int64("identity_id", id))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}

	obs.Logger().Info("audit", zf...)
	return nil
}
