package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with graceful startup and shutdown helpers.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates the API server. The write timeout must cover an
// entire archive stream, not a single response write, which is why the
// config default keeps it far above the read timeout.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	return &HTTPServer{server: srv}
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting new requests and waits for in-flight exports to
// drain until the context expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
