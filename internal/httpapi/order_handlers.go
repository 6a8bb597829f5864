package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"stockroom.app/internal/audit"
	"stockroom.app/internal/auth"
	"stockroom.app/internal/catalog"
	"stockroom.app/internal/gateway"
)

func (a *API) handleOrdersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createOrder(w, r)
	case http.MethodGet:
		a.listOrders(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrderResource(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "Resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.authorize(w, r, auth.PermOrdersView); !ok {
		return
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid order id")
		return
	}
	order, err := a.catalog.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Order not found")
			return
		}
		a.logger.Error("get order failed", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to retrieve order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.authorize(w, r, auth.PermOrdersCreate)
	if !ok {
		return
	}
	var req gateway.CreateOrderRequest
	if err := decodeJSON(w, r, &req, a.maxBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := a.ops.Execute(r.Context(), req, gateway.Actor{IdentityID: principal.Identity.ID})
	if err != nil {
		if gateway.CodeOf(err) == gateway.CodeBusinessRuleViolation {
			_ = audit.LogEvent(r.Context(), audit.EventOrderRejected, map[string]any{
				"customer_id": req.CustomerID,
				"product_id":  req.ProductID,
				"quantity":    req.Quantity,
				"reason":      operationMessage(err),
			})
		}
		writeOperationError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), audit.EventOrderCreated, map[string]any{
		"order_id":    res.ID,
		"customer_id": req.CustomerID,
		"product_id":  req.ProductID,
		"quantity":    req.Quantity,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  res.Message,
		"order_id": res.ID,
	})
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authorize(w, r, auth.PermOrdersView); !ok {
		return
	}
	orders, err := a.catalog.ListOrders(r.Context(), catalog.DefaultOrderLimit)
	if err != nil {
		a.logger.Error("list orders failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": orders})
}

func (a *API) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := a.authorize(w, r, auth.PermPaymentsCreate)
	if !ok {
		return
	}
	var req gateway.ProcessPaymentRequest
	if err := decodeJSON(w, r, &req, a.maxBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := a.ops.Execute(r.Context(), req, gateway.Actor{IdentityID: principal.Identity.ID})
	if err != nil {
		if gateway.CodeOf(err) == gateway.CodeBusinessRuleViolation {
			_ = audit.LogEvent(r.Context(), audit.EventPaymentRejected, map[string]any{
				"invoice_id": req.InvoiceID,
				"amount":     req.AmountPaid.String(),
				"reason":     operationMessage(err),
			})
		}
		writeOperationError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), audit.EventPaymentProcessed, map[string]any{
		"payment_id": res.ID,
		"invoice_id": req.InvoiceID,
		"amount":     req.AmountPaid.String(),
		"method":     req.PaymentMethod,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"message":    res.Message,
		"payment_id": res.ID,
	})
}

// writeOperationError maps the gateway taxonomy onto HTTP. Only the
// caller-safe message ever leaves the process.
func writeOperationError(w http.ResponseWriter, r *http.Request, err error) {
	switch gateway.CodeOf(err) {
	case gateway.CodeInvalidRequest, gateway.CodeBusinessRuleViolation:
		writeError(w, r, http.StatusBadRequest, operationMessage(err))
	default:
		writeError(w, r, http.StatusInternalServerError, operationMessage(err))
	}
}

func operationMessage(err error) string {
	var ge *gateway.Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return "Internal server error"
}
