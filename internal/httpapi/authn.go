package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"stockroom.app/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	msgAuthRequired      = "Authentication required"
	msgInsufficientPerms = "Insufficient permissions"
	wwwAuthenticate      = `Bearer realm="stockroom"`
)

var publicPaths = []string{
	"/api/auth/login",
	"/health",
	"/healthz",
	"/readyz",
	"/metrics",
}

// withAuth is the authorization gate: every non-public request must carry a
// valid bearer token. All failures look identical to the caller.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			a.unauthorized(w, r, err)
			return
		}
		principal, err := a.auth.Authenticate(token)
		if err != nil {
			a.unauthorized(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

func (a *API) unauthorized(w http.ResponseWriter, r *http.Request, cause error) {
	rejectUnauthenticated(w, r, a.logger, cause)
}

func rejectUnauthenticated(w http.ResponseWriter, r *http.Request, logger *zap.Logger, cause error) {
	logger.Debug("authentication rejected",
		zap.String("path", r.URL.Path),
		zap.Error(cause),
	)
	w.Header().Set("WWW-Authenticate", wwwAuthenticate)
	writeError(w, r, http.StatusUnauthorized, msgAuthRequired)
}

// authorize reports whether the request principal holds perm, writing the
// 401/403 response when it does not.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, perm string) (auth.Principal, bool) {
	return checkPermission(w, r, a.logger, perm)
}

func checkPermission(w http.ResponseWriter, r *http.Request, logger *zap.Logger, perm string) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		rejectUnauthenticated(w, r, logger, auth.ErrUnauthenticated)
		return auth.Principal{}, false
	}
	if !principal.HasPermission(perm) {
		logger.Info("permission denied",
			zap.Int64("identity_id", principal.Identity.ID),
			zap.String("permission", perm),
			zap.String("path", r.URL.Path),
		)
		writeError(w, r, http.StatusForbidden, msgInsufficientPerms)
		return auth.Principal{}, false
	}
	return principal, true
}

// RequirePermission guards a handler with a single permission code.
func RequirePermission(perm string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := checkPermission(w, r, logger, perm); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
