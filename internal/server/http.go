package server

import (
	"net/http"
	"time"

	"github.com/rs/cors"
)

// NewHTTPServer wraps handler with CORS for the storefront origins. Write
// timeouts are left unset because live feeds hold responses open.
func NewHTTPServer(addr string, handler http.Handler, allowedOrigins []string) *http.Server {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	return &http.Server{
		Addr:              addr,
		Handler:           c.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
