package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/domain/service"
	"user-registry/internal/infrastructure/telemetry"
)

// RootHandler handles requests to the root endpoint
type RootHandler struct {
	appService service.AppService
}

// NewRootHandler creates a new root handler
func NewRootHandler(appService service.AppService) *RootHandler {
	return &RootHandler{
		appService: appService,
	}
}

// Handle handles requests to the root endpoint
func (h *RootHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.route", "/"),
		attribute.String("handler", "root"),
	)

	response, err := h.appService.GetWelcomeMessage(ctx)
	if err != nil {
		telemetry.Log(ctx, telemetry.LevelError, "Failed to get welcome message", err,
			attribute.String("handler", "root"),
		)
		writeError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, w, response, http.StatusOK)
}
