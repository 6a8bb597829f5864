package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	products, err := a.catalog.ListProducts(r.Context())
	if err != nil {
		a.logger.Error("list products failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "products": products})
}
