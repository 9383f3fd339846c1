package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows credentialed requests so the browser sends the refresh cookie, and exposes the
// rotation header so scripts can read it.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3001"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RotatedTokenHeader, requestIDHeader},
		ExposedHeaders:   []string{RotatedTokenHeader, requestIDHeader},
		MaxAge:           600,
		AllowCredentials: true,
	})

	return handler.Handler
}
