package dto

import (
	"user-registry/internal/domain/entity"
	"user-registry/internal/domain/errors"
)

// CreateUserRequest represents the request to create a user. Pointer fields
// distinguish a missing key from an empty string.
type CreateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Validate checks that name is present and email is a valid address
func (r *CreateUserRequest) Validate() error {
	if r.Name == nil {
		return errors.ErrInvalidName
	}
	if r.Email == nil {
		return errors.ErrInvalidEmail
	}
	_, err := entity.NewEmail(*r.Email)
	return err
}

// UpdateUserRequest represents a partial update. Absent fields are left as
// they are.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Validate checks that email, when given, is a valid address
func (r *UpdateUserRequest) Validate() error {
	if r.Email != nil {
		if _, err := entity.NewEmail(*r.Email); err != nil {
			return err
		}
	}
	return nil
}

// Patch converts the request to a domain patch
func (r *UpdateUserRequest) Patch() entity.UserPatch {
	return entity.UserPatch{Name: r.Name, Email: r.Email}
}

// UserResponse represents the response when returning user data
type UserResponse struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUserResponse creates a UserResponse from a domain entity
func NewUserResponse(user entity.User) UserResponse {
	return UserResponse{
		ID:    int(user.ID()),
		Name:  user.Name().String(),
		Email: user.Email().String(),
	}
}

// NewUserListResponse maps users in order; the result is never nil so it
// encodes as [] when empty.
func NewUserListResponse(users []entity.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, user := range users {
		out[i] = NewUserResponse(user)
	}
	return out
}

// SeedUser is one entry of a seed file
type SeedUser struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse is the error body returned by the HTTP layer
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}
