package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"user-registry/internal/domain/service"
	"user-registry/internal/infrastructure/config"
	"user-registry/internal/interface/http/handler"
	"user-registry/internal/interface/http/middleware"
	"user-registry/internal/interface/http/routes"
)

const readHeaderTimeout = 5 * time.Second

// Handler holds the HTTP handler dependencies
type Handler struct {
	userService handler.UserService
	appService  service.AppService
	config      config.OtelConfig

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewHandler creates a new HTTP handler
func NewHandler(userService handler.UserService, appService service.AppService, cfg config.OtelConfig) *Handler {
	return &Handler{
		userService: userService,
		appService:  appService,
		config:      cfg,
	}
}

// SetupRoutes sets up the HTTP routes with middleware
func (h *Handler) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	router := routes.NewRouter(h.userService, h.appService)
	router.RegisterRoutes(mux)

	middlewareChain := middleware.ChainMiddleware(
		middleware.LoggingMiddlewareWithConfig(h.config.LogBodies),
		middleware.OtelHttpMiddleware("http.server"),
		middleware.RecoveryMiddleware,
		middleware.CORSMiddleware,
	)

	return middlewareChain(mux)
}

// StartWithAddr starts the HTTP server on the given port. It returns nil
// once the server has been stopped.
func (h *Handler) StartWithAddr(_ context.Context, port string) error {
	server := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           h.SetupRoutes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.server = server
	h.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server. A server that has not started yet never will.
func (h *Handler) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = true
	server := h.server
	h.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}
