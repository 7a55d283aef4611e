package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/application/dto"
	domainErrors "user-registry/internal/domain/errors"
	"user-registry/internal/infrastructure/telemetry"
)

// UserService is the set of user operations the HTTP layer depends on
type UserService interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (dto.UserResponse, error)
	ListUsers(ctx context.Context) ([]dto.UserResponse, error)
	GetUserByID(ctx context.Context, id string) (dto.UserResponse, error)
	UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) error
	DeleteUser(ctx context.Context, id string) error
}

// UsersHandler handles requests to the users endpoints
type UsersHandler struct {
	userService UserService
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(userService UserService) *UsersHandler {
	return &UsersHandler{
		userService: userService,
	}
}

// List handles GET /users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.route", "/users"),
		attribute.String("handler", "users"),
		attribute.String("operation", "list"),
	)

	users, err := h.userService.ListUsers(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, users, http.StatusOK)
}

// Get handles GET /users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.route", "/users/{id}"),
		attribute.String("handler", "users"),
		attribute.String("operation", "get"),
		attribute.String("user.id", idStr),
	)

	user, err := h.userService.GetUserByID(ctx, idStr)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, user, http.StatusOK)
}

// Create handles POST /users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.route", "/users"),
		attribute.String("handler", "users"),
		attribute.String("operation", "create"),
	)

	var req dto.CreateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, err := h.userService.CreateUser(ctx, req)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, user, http.StatusCreated)
}

// Update handles PATCH /users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.route", "/users/{id}"),
		attribute.String("handler", "users"),
		attribute.String("operation", "update"),
		attribute.String("user.id", idStr),
	)

	var req dto.UpdateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.userService.UpdateUser(ctx, idStr, req); err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("http.route", "/users/{id}"),
		attribute.String("handler", "users"),
		attribute.String("operation", "delete"),
		attribute.String("user.id", idStr),
	)

	if err := h.userService.DeleteUser(ctx, idStr); err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// maxBodyBytes caps the request bodies of create and update
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("Request body too large")

// decodeBody decodes a single JSON object into dst. An empty body decodes as
// {}. Type mismatches (e.g. a numeric name) and anything after the object
// are reported as errors.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		err = dec.Decode(&struct{}{})
		if errors.Is(err, io.EOF) {
			return nil
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return errors.New(typeErr.Field + " must be a " + typeErr.Type.String())
	}
	return errors.New("Invalid JSON")
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(ctx, w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(ctx, w, http.StatusBadRequest, err.Error())
}

// writeJSON writes data as a JSON response
func writeJSON(ctx context.Context, w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already written
		telemetry.Log(ctx, telemetry.LevelError, "Failed to encode JSON response", err)
	}
}

// writeError writes an error body shaped like {"statusCode","message","error"}
func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string) {
	writeJSON(ctx, w, dto.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
		Error:      http.StatusText(statusCode),
	}, statusCode)
}

// writeDomainError maps a domain error to its HTTP status code
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var domainErr *domainErrors.DomainError
	if !errors.As(err, &domainErr) {
		telemetry.Log(ctx, telemetry.LevelError, "Unhandled error", err)
		writeError(ctx, w, http.StatusInternalServerError, domainErrors.ErrInternalError.Message)
		return
	}

	var statusCode int
	switch domainErr.Code {
	case domainErrors.ErrCodeUserNotFound:
		statusCode = http.StatusNotFound
	case domainErrors.ErrCodeUserAlreadyExists, domainErrors.ErrCodeUpdateFailed:
		statusCode = http.StatusConflict
	case domainErrors.ErrCodeValidationFailed, domainErrors.ErrCodeInvalidEmail,
		domainErrors.ErrCodeInvalidName, domainErrors.ErrCodeInvalidID:
		statusCode = http.StatusBadRequest
	default:
		writeError(ctx, w, http.StatusInternalServerError, domainErrors.ErrInternalError.Message)
		return
	}

	writeError(ctx, w, statusCode, domainErr.Message)
}
