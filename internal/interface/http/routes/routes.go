package routes

import (
	"net/http"

	"user-registry/internal/domain/service"
	"user-registry/internal/interface/http/handler"
)

// Router holds the router dependencies
type Router struct {
	userService handler.UserService
	appService  service.AppService
}

// NewRouter creates a new router
func NewRouter(userService handler.UserService, appService service.AppService) *Router {
	return &Router{
		userService: userService,
		appService:  appService,
	}
}

// RegisterRoutes registers all routes. Unmatched methods on a known path
// get a 405 from the mux.
func (r *Router) RegisterRoutes(mux *http.ServeMux) {
	rootHandler := handler.NewRootHandler(r.appService)
	healthHandler := handler.NewHealthHandler(r.appService)
	usersHandler := handler.NewUsersHandler(r.userService)

	mux.HandleFunc("GET /{$}", rootHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler.Handle)

	mux.HandleFunc("POST /users", usersHandler.Create)
	mux.HandleFunc("GET /users", usersHandler.List)
	mux.HandleFunc("GET /users/{id}", usersHandler.Get)
	mux.HandleFunc("PATCH /users/{id}", usersHandler.Update)
	mux.HandleFunc("DELETE /users/{id}", usersHandler.Delete)
}
