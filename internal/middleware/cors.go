package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS creates CORS middleware allowing the configured frontend origin
func CORS(frontendURL string) func(http.Handler) http.Handler {
	allowed := []string{"http://localhost:3000"}
	if frontendURL != "" {
		allowed = []string{frontendURL}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler
}
