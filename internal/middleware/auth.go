package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-token-gate/internal/model"
	"go-token-gate/pkg/apierror"
)

// RotatedTokenHeader carries a freshly minted access token back to the client.
const RotatedTokenHeader = "X-New-Access-Token"

type accessVerifier interface {
	VerifyAccess(token string) (*model.AccessClaims, error)
	RotateAccess(token string) (string, bool, error)
}

type claimsContextKey struct{}

type tokenContextKey struct{}

// AuthMiddleware is the access gate: Authenticate, then optionally RequireRole, then Rotate.
type AuthMiddleware struct {
	tokens accessVerifier
}

func NewAuthMiddleware(tokens accessVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "TOKEN_MISSING", "missing bearer token")
			return
		}

		claims, err := m.tokens.VerifyAccess(token)
		if err != nil {
			code, message := "TOKEN_INVALID", "invalid access token"
			var apiErr *apierror.APIError
			if errors.As(err, &apiErr) {
				code, message = apiErr.Code, apiErr.Message
			}
			writeJSONError(w, http.StatusUnauthorized, code, message)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		ctx = context.WithValue(ctx, tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	denied := roleDenied(roles)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "TOKEN_MISSING", "authentication required")
				return
			}

			if _, permitted := allowed[claims.Role]; !permitted {
				writeJSONError(w, denied.HTTPStatus, denied.Code, denied.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Rotate attaches a replacement access token to the response. It never blocks the request.
func (m *AuthMiddleware) Rotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := r.Context().Value(tokenContextKey{}).(string)
		if ok {
			rotated, issued, err := m.tokens.RotateAccess(token)
			switch {
			case err != nil:
				slog.Warn("access token rotation failed", "path", r.URL.Path, "error", err)
			case issued:
				w.Header().Set(RotatedTokenHeader, rotated)
			}
		}

		next.ServeHTTP(w, r)
	})
}

func roleDenied(roles []model.Role) *apierror.APIError {
	message := "Access denied. Insufficient role."
	if len(roles) == 1 && roles[0] == model.RoleAdmin {
		message = "Access denied. Admin role required."
	}
	return apierror.Wrap(model.ErrRoleDenied, "ROLE_DENIED", message, http.StatusForbidden)
}

func ClaimsFromContext(ctx context.Context) (*model.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*model.AccessClaims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	if token == "" {
		return "", false
	}

	return token, true
}
