package middleware

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/request"
	"github.com/vitalog/vitalog-api/internal/services/auth"
)

// Auth creates authentication middleware that validates JWT bearer tokens.
// The token subject is the user ID; unknown users are provisioned on first
// request so the identity provider stays the source of truth.
func Auth(users *database.UserRepository, verifier *auth.Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "Missing Authorization header", logger)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "Invalid Authorization header format", logger)
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, parts[1])
			if err != nil {
				logger.Warn("token verification failed", zap.Error(err))
				respondError(w, http.StatusUnauthorized, "Invalid or expired token", logger)
				return
			}

			userID, err := uuid.Parse(claims.Sub)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid token subject", logger)
				return
			}

			user, err := users.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					user = &models.User{
						ID:    userID,
						Email: claims.Email,
					}
					if claims.Name != "" {
						name := claims.Name
						user.Name = &name
					}
					if err := users.Create(ctx, user); err != nil {
						logger.Error("failed to provision user", zap.Error(err))
						respondError(w, http.StatusInternalServerError, "Failed to create user", logger)
						return
					}
				} else {
					logger.Error("database error while fetching user", zap.Error(err))
					respondError(w, http.StatusInternalServerError, "Database error", logger)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil && logger != nil {
		logger.Error("failed to encode error response", zap.Error(err))
	}
}
