package memory

import (
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"user-registry/internal/domain/entity"
	"user-registry/internal/domain/errors"
	"user-registry/internal/infrastructure/telemetry"
)

// UserRepository is the in-memory user store. Records are kept in insertion
// order; every method holds mu for its whole scan-then-act sequence.
type UserRepository struct {
	mu     sync.Mutex
	users  []entity.User
	nextID entity.UserID
	tracer trace.Tracer
}

// NewUserRepository creates a new, empty in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make([]entity.User, 0),
		nextID: 1,
		tracer: noop.NewTracerProvider().Tracer("memory-repository"),
	}
}

// WithTracer sets the tracer for the repository
func (r *UserRepository) WithTracer(tracer trace.Tracer) *UserRepository {
	r.tracer = tracer
	return r
}

// Create stores user under the next ID. A user whose email is already held
// by any stored record is rejected and the ID counter is left untouched.
func (r *UserRepository) Create(ctx context.Context, user entity.User) (entity.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	span.SetAttributes(
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.collection", "users"),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexByEmail(user.Email()) >= 0 {
		err := errors.ErrUserAlreadyExists.WithContext("email", user.Email().String())
		telemetry.Log(ctx, telemetry.LevelWarn, "User already exists", err,
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.collection", "users"),
		)
		return entity.User{}, err
	}

	stored := user.WithID(r.nextID)
	r.nextID++
	r.users = append(r.users, stored)

	span.SetAttributes(attribute.String("user.id", stored.ID().String()))
	telemetry.Log(ctx, telemetry.LevelInfo, "User created in memory", nil,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", stored.ID().String()),
	)
	return stored, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id entity.UserID) (entity.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 {
		return entity.User{}, r.notFound(ctx, "SELECT", id)
	}
	return r.users[i], nil
}

// List retrieves all users in insertion order. The result is never nil.
func (r *UserRepository) List(ctx context.Context) ([]entity.User, error) {
	_, span := r.tracer.Start(ctx, "UserRepository.List")
	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.collection", "users"),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	users := slices.Clone(r.users)
	if users == nil {
		users = []entity.User{}
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Update overwrites the fields present in patch. The target must exist
// before any uniqueness check runs. A proposed email held by any record,
// the target included, is a conflict: resubmitting a user's current email
// is rejected.
func (r *UserRepository) Update(ctx context.Context, id entity.UserID, patch entity.UserPatch) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Update")
	span.SetAttributes(
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 {
		return r.notFound(ctx, "UPDATE", id)
	}

	if patch.HasEmail() && r.indexByEmail(entity.Email(*patch.Email)) >= 0 {
		err := errors.ErrUpdateFailed.WithContext("email", *patch.Email)
		telemetry.Log(ctx, telemetry.LevelWarn, "User with this email already exists", err,
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.collection", "users"),
			attribute.String("user.id", id.String()),
			attribute.String("user.email", *patch.Email),
		)
		return err
	}

	r.users[i] = r.users[i].Apply(patch)

	telemetry.Log(ctx, telemetry.LevelInfo, "User updated in memory", nil,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	return nil
}

// Delete removes a user by ID, keeping the relative order of the rest
func (r *UserRepository) Delete(ctx context.Context, id entity.UserID) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Delete")
	span.SetAttributes(
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 {
		return r.notFound(ctx, "DELETE", id)
	}
	r.users = slices.Delete(r.users, i, i+1)

	telemetry.Log(ctx, telemetry.LevelInfo, "User deleted from memory", nil,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	return nil
}

// Count returns the total number of users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	_, span := r.tracer.Start(ctx, "UserRepository.Count")
	span.SetAttributes(
		attribute.String("db.operation", "COUNT"),
		attribute.String("db.collection", "users"),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.users)
	span.SetAttributes(attribute.Int("users.count", count))
	return count, nil
}

// Seed appends users that already carry an ID. The batch is checked as a
// whole before anything is stored: a duplicate ID is a validation error and
// a duplicate email a conflict. The ID counter moves past the highest
// seeded ID so seeded IDs are never handed out again.
func (r *UserRepository) Seed(ctx context.Context, users ...entity.User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Seed")
	span.SetAttributes(
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.collection", "users"),
		attribute.Int("users.count", len(users)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[entity.UserID]struct{}, len(users))
	emails := make(map[entity.Email]struct{}, len(users))
	for _, u := range users {
		if !u.ID().IsValid() {
			return errors.ErrInvalidID.WithContext("id", int(u.ID()))
		}
		if _, dup := ids[u.ID()]; dup || r.indexByID(u.ID()) >= 0 {
			return errors.NewDomainError(errors.ErrCodeValidationFailed, "duplicate user id").
				WithContext("id", int(u.ID()))
		}
		if _, dup := emails[u.Email()]; dup || r.indexByEmail(u.Email()) >= 0 {
			return errors.ErrUserAlreadyExists.WithContext("email", u.Email().String())
		}
		ids[u.ID()] = struct{}{}
		emails[u.Email()] = struct{}{}
	}

	for _, u := range users {
		r.users = append(r.users, u)
		if u.ID() >= r.nextID {
			r.nextID = u.ID() + 1
		}
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Users seeded in memory", nil,
		attribute.Int("users.count", len(users)),
	)
	return nil
}

func (r *UserRepository) indexByID(id entity.UserID) int {
	return slices.IndexFunc(r.users, func(u entity.User) bool { return u.ID() == id })
}

func (r *UserRepository) indexByEmail(email entity.Email) int {
	return slices.IndexFunc(r.users, func(u entity.User) bool { return u.Email() == email })
}

func (r *UserRepository) notFound(ctx context.Context, op string, id entity.UserID) error {
	err := errors.ErrUserNotFound.WithContext("id", int(id))
	telemetry.Log(ctx, telemetry.LevelWarn, "User not found", err,
		attribute.String("db.operation", op),
		attribute.String("db.collection", "users"),
		attribute.String("user.id", id.String()),
	)
	return err
}
