package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/application/dto"
	"user-registry/internal/domain/entity"
	"user-registry/internal/domain/errors"
	"user-registry/internal/domain/event"
	"user-registry/internal/domain/repository"
	"user-registry/internal/infrastructure/telemetry"
)

const defaultPublishTimeout = 2 * time.Second

// UserService handles user-related business operations on top of the store.
// Cache and event delivery are best effort: their failures are logged and
// never change the outcome of an operation. A publish that outlives
// publishTimeout is abandoned.
type UserService struct {
	repo           repository.UserRepository
	cache          repository.UserCache
	cacheTTL       time.Duration
	publisher      event.Publisher
	publishTimeout time.Duration
	telemetry      *telemetry.Telemetry
	tracer         trace.Tracer
	now            func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(repo repository.UserRepository, tel *telemetry.Telemetry) *UserService {
	return &UserService{
		repo:           repo,
		publisher:      event.NopPublisher{},
		publishTimeout: defaultPublishTimeout,
		telemetry:      tel,
		tracer:         tel.Tracer,
		now:            time.Now,
	}
}

// WithCache enables read-through caching of single-user lookups
func (s *UserService) WithCache(cache repository.UserCache, ttl time.Duration) *UserService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// WithPublisher sets where user lifecycle events are sent
func (s *UserService) WithPublisher(p event.Publisher) *UserService {
	s.publisher = p
	return s
}

// CreateUser creates a new user
func (s *UserService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.CreateUser")
	defer span.End()

	span.SetAttributes(attribute.String("operation", "create_user"))

	if err := req.Validate(); err != nil {
		span.SetAttributes(attribute.String("error", "validation_failed"))
		s.recordMetric(ctx, "create", "validation_error")
		return dto.UserResponse{}, err
	}

	user, err := entity.NewUser(*req.Name, *req.Email)
	if err != nil {
		s.recordMetric(ctx, "create", "validation_error")
		return dto.UserResponse{}, err
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Creating user", nil,
		semconv.HTTPRoute("/users"),
		attribute.String("operation", "create"),
		attribute.String("user.email", user.Email().String()),
	)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return dto.UserResponse{}, s.fail(ctx, span, "create", err)
	}

	s.adjustStored(ctx, 1)
	s.fillCache(ctx, created)
	s.publish(ctx, event.NewUserEvent(event.TypeUserCreated, created, s.now()))

	span.SetAttributes(attribute.String("user.id", created.ID().String()))
	telemetry.Log(ctx, telemetry.LevelInfo, "User created successfully", nil,
		semconv.HTTPRoute("/users"),
		attribute.String("operation", "create"),
		attribute.String("user.id", created.ID().String()),
	)

	s.recordMetric(ctx, "create", "success")
	return dto.NewUserResponse(created), nil
}

// ListUsers returns every user in insertion order
func (s *UserService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.ListUsers")
	defer span.End()

	span.SetAttributes(attribute.String("operation", "list_users"))

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "list", err)
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Users fetched successfully", nil,
		semconv.HTTPRoute("/users"),
		attribute.String("operation", "read"),
		attribute.Int("users.count", len(users)),
	)

	s.recordMetric(ctx, "list", "success")
	return dto.NewUserListResponse(users), nil
}

// GetUserByID retrieves a user by ID, consulting the cache first
func (s *UserService) GetUserByID(ctx context.Context, idStr string) (dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetUserByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "get_user_by_id"),
		attribute.String("user.id", idStr),
	)

	id, err := s.parseID(ctx, span, "get_by_id", idStr)
	if err != nil {
		return dto.UserResponse{}, err
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			telemetry.Log(ctx, telemetry.LevelWarn, "User cache lookup failed", err,
				attribute.String("user.id", id.String()))
		case ok:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			s.recordMetric(ctx, "get_by_id", "success")
			return dto.NewUserResponse(cached), nil
		}
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, s.fail(ctx, span, "get_by_id", err)
	}

	s.fillCache(ctx, user)

	s.recordMetric(ctx, "get_by_id", "success")
	return dto.NewUserResponse(user), nil
}

// UpdateUser overwrites the fields present in req. It returns nothing on
// success; callers re-fetch to observe the result.
func (s *UserService) UpdateUser(ctx context.Context, idStr string, req dto.UpdateUserRequest) error {
	ctx, span := s.tracer.Start(ctx, "UserService.UpdateUser")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "update_user"),
		attribute.String("user.id", idStr),
	)

	id, err := s.parseID(ctx, span, "update", idStr)
	if err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		span.SetAttributes(attribute.String("error", "validation_failed"))
		s.recordMetric(ctx, "update", "validation_error")
		return err
	}

	if err := s.repo.Update(ctx, id, req.Patch()); err != nil {
		return s.fail(ctx, span, "update", err)
	}

	s.invalidate(ctx, id)

	if updated, err := s.repo.GetByID(ctx, id); err == nil {
		s.publish(ctx, event.NewUserEvent(event.TypeUserUpdated, updated, s.now()))
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "User updated successfully", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("operation", "update"),
		attribute.String("user.id", id.String()),
	)

	s.recordMetric(ctx, "update", "success")
	return nil
}

// DeleteUser removes a user by ID
func (s *UserService) DeleteUser(ctx context.Context, idStr string) error {
	ctx, span := s.tracer.Start(ctx, "UserService.DeleteUser")
	defer span.End()

	span.SetAttributes(
		attribute.String("operation", "delete_user"),
		attribute.String("user.id", idStr),
	)

	id, err := s.parseID(ctx, span, "delete", idStr)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail(ctx, span, "delete", err)
	}

	s.adjustStored(ctx, -1)
	s.invalidate(ctx, id)
	s.publish(ctx, event.NewUserEvent(event.TypeUserDeleted, entity.User{}.WithID(id), s.now()))

	telemetry.Log(ctx, telemetry.LevelInfo, "User deleted successfully", nil,
		semconv.HTTPRoute("/users/{id}"),
		attribute.String("operation", "delete"),
		attribute.String("user.id", id.String()),
	)

	s.recordMetric(ctx, "delete", "success")
	return nil
}

// SeedUsers loads fixture users with fixed IDs into the store
func (s *UserService) SeedUsers(ctx context.Context, seeds []dto.SeedUser) error {
	ctx, span := s.tracer.Start(ctx, "UserService.SeedUsers")
	defer span.End()

	users := make([]entity.User, 0, len(seeds))
	for _, seed := range seeds {
		user, err := entity.RestoreUser(entity.UserID(seed.ID), seed.Name, seed.Email)
		if err != nil {
			return s.fail(ctx, span, "seed", err)
		}
		users = append(users, user)
	}

	if err := s.repo.Seed(ctx, users...); err != nil {
		return s.fail(ctx, span, "seed", err)
	}

	s.adjustStored(ctx, int64(len(users)))
	for _, u := range users {
		s.fillCache(ctx, u)
	}
	telemetry.Log(ctx, telemetry.LevelInfo, "Users seeded", nil,
		attribute.Int("users.count", len(users)))
	return nil
}

func (s *UserService) parseID(ctx context.Context, span trace.Span, op, idStr string) (entity.UserID, error) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		span.SetAttributes(attribute.String("error", "invalid_id"))
		s.recordMetric(ctx, op, "validation_error")
		return 0, errors.ErrInvalidID.WithContext("id", idStr)
	}
	return entity.UserID(id), nil
}

// fail classifies err for metrics and span attributes. Domain errors pass
// through unchanged, anything else is wrapped as a repository error.
func (s *UserService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	switch {
	case errors.IsUserNotFound(err):
		span.SetAttributes(attribute.String("error", "user_not_found"))
		s.recordMetric(ctx, op, "not_found")
		return err
	case errors.IsConflict(err):
		span.SetAttributes(attribute.String("error", "email_conflict"))
		s.recordMetric(ctx, op, "conflict")
		return err
	case errors.IsValidationError(err):
		span.SetAttributes(attribute.String("error", "validation_failed"))
		s.recordMetric(ctx, op, "validation_error")
		return err
	}

	span.SetAttributes(attribute.String("error", "repository_error"))
	s.recordMetric(ctx, op, "error")
	telemetry.Log(ctx, telemetry.LevelError, "User repository failure", err,
		attribute.String("operation", op))
	if errors.IsRepositoryError(err) {
		return err
	}
	return errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, "failed to "+op+" user", err)
}

// fillCache overwrites whatever the cache holds for user's ID, so an entry
// left behind by an earlier holder of the ID is never served.
func (s *UserService) fillCache(ctx context.Context, user entity.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, user, s.cacheTTL); err != nil {
		telemetry.Log(ctx, telemetry.LevelWarn, "User cache fill failed", err,
			attribute.String("user.id", user.ID().String()))
	}
}

func (s *UserService) invalidate(ctx context.Context, id entity.UserID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		telemetry.Log(ctx, telemetry.LevelWarn, "User cache invalidation failed", err,
			attribute.String("user.id", id.String()))
	}
}

// publish runs after the store has committed, so it detaches from the
// caller's cancellation and is bounded by publishTimeout instead.
func (s *UserService) publish(ctx context.Context, ev event.UserEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, ev); err != nil {
		telemetry.Log(ctx, telemetry.LevelError, "Failed to publish user event", err,
			attribute.String("event.type", string(ev.Type)),
			attribute.Int("user.id", ev.UserID),
		)
	}
}

// recordMetric records a metric for user operations
func (s *UserService) recordMetric(ctx context.Context, operation, status string) {
	if s.telemetry != nil && s.telemetry.UserCounter != nil {
		s.telemetry.UserCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
	}
}

func (s *UserService) adjustStored(ctx context.Context, delta int64) {
	if s.telemetry != nil && s.telemetry.UsersStored != nil {
		s.telemetry.UsersStored.Add(ctx, delta)
	}
}
