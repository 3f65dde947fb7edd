package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/utils"
)

// Authenticator validates bearer access tokens and puts the caller's
// auth.Identity on the request context.
type Authenticator struct {
	jwt    *utils.JWTService
	logger *slog.Logger
}

// NewAuthenticator 创建认证中间件
func NewAuthenticator(jwt *utils.JWTService, logger *slog.Logger) *Authenticator {
	return &Authenticator{jwt: jwt, logger: logger}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireAuth JWT认证中间件，匿名会话同样有效
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			utils.WriteUnauthorizedResponse(w, "Missing or malformed authorization header")
			return
		}

		id, err := a.jwt.ValidateAccessToken(token)
		if err != nil {
			a.logger.Debug("rejected access token", "path", r.URL.Path, "error", err)
			if errors.Is(err, utils.ErrTokenExpired) {
				utils.WriteUnauthorizedResponse(w, "Token expired")
				return
			}
			utils.WriteUnauthorizedResponse(w, "Invalid token")
			return
		}

		recordIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// OptionalAuth 可选的认证中间件（不强制要求认证）
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if id, err := a.jwt.ValidateAccessToken(token); err == nil {
				recordIdentity(r.Context(), id)
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRegistered rejects anonymous sessions; use after RequireAuth.
func RequireRegistered(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			utils.WriteUnauthorizedResponse(w, "user not authenticated")
			return
		}
		if id.Anonymous {
			utils.WriteForbiddenResponse(w, "Create an account to use this feature")
			return
		}
		next.ServeHTTP(w, r)
	})
}
