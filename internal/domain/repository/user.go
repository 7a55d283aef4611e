package repository

import (
	"context"
	"time"

	"user-registry/internal/domain/entity"
)

// UserRepository defines the interface for user data operations.
// Implementations own their records exclusively: every User handed out is a
// copy.
type UserRepository interface {
	// Create stores a new user, assigns its ID and returns the stored copy
	Create(ctx context.Context, user entity.User) (entity.User, error)

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id entity.UserID) (entity.User, error)

	// List retrieves all users in insertion order
	List(ctx context.Context) ([]entity.User, error)

	// Update overwrites the fields present in patch
	Update(ctx context.Context, id entity.UserID, patch entity.UserPatch) error

	// Delete removes a user by ID
	Delete(ctx context.Context, id entity.UserID) error

	// Count returns the total number of users
	Count(ctx context.Context) (int, error)

	// Seed stores users that already carry an ID
	Seed(ctx context.Context, users ...entity.User) error
}

// UserCache holds short-lived snapshots of single users.
type UserCache interface {
	Get(ctx context.Context, id entity.UserID) (entity.User, bool, error)
	Set(ctx context.Context, user entity.User, ttl time.Duration) error
	Invalidate(ctx context.Context, id entity.UserID) error
}
