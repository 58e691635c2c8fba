package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/gamebank/internal/middleware"
)

// Logging creates request logging middleware for the API
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}

// RequestID tags each API request with an X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = middleware.RequestIDHeader
