package entity

import (
	"fmt"
	"regexp"

	"user-registry/internal/domain/errors"
)

// UserID represents a unique identifier for a user
type UserID int

// IsValid checks if the UserID is valid
func (id UserID) IsValid() bool {
	return id > 0
}

// String returns string representation of UserID
func (id UserID) String() string {
	return fmt.Sprintf("%d", int(id))
}

// Email represents a validated email address. Comparison is exact and
// case-sensitive.
type Email string

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NewEmail creates a new Email after validation
func NewEmail(email string) (Email, error) {
	if email == "" {
		return "", errors.NewDomainError(errors.ErrCodeInvalidEmail, "email should not be empty")
	}
	if !emailRegex.MatchString(email) {
		return "", errors.ErrInvalidEmail
	}
	return Email(email), nil
}

// String returns the string representation of the email
func (e Email) String() string {
	return string(e)
}

// Name represents a user's display name. Any string is accepted, including "".
type Name string

// String returns the string representation of the name
func (n Name) String() string {
	return string(n)
}

// User represents a user entity in the domain. It is a value type: copies
// handed out by the store never alias stored state.
type User struct {
	id    UserID
	name  Name
	email Email
}

// NewUser creates a new, not yet stored, User with validation
func NewUser(name, email string) (User, error) {
	userEmail, err := NewEmail(email)
	if err != nil {
		return User{}, err
	}
	return User{
		name:  Name(name),
		email: userEmail,
	}, nil
}

// RestoreUser rebuilds a User with a known identity, e.g. from fixtures.
func RestoreUser(id UserID, name, email string) (User, error) {
	if !id.IsValid() {
		return User{}, errors.ErrInvalidID.WithContext("id", int(id))
	}
	u, err := NewUser(name, email)
	if err != nil {
		return User{}, err
	}
	u.id = id
	return u, nil
}

// ID returns the user's ID
func (u User) ID() UserID {
	return u.id
}

// Name returns the user's name
func (u User) Name() Name {
	return u.name
}

// Email returns the user's email
func (u User) Email() Email {
	return u.email
}

// WithID returns a copy of the user carrying id (used by repository layer)
func (u User) WithID(id UserID) User {
	u.id = id
	return u
}

// UserPatch carries the fields of a partial update. Nil fields are left
// untouched.
type UserPatch struct {
	Name  *string
	Email *string
}

// HasEmail reports whether the patch proposes a non-empty email.
func (p UserPatch) HasEmail() bool {
	return p.Email != nil && *p.Email != ""
}

// Apply overwrites the fields present in p and returns the result. The id
// is never changed.
func (u User) Apply(p UserPatch) User {
	if p.Name != nil {
		u.name = Name(*p.Name)
	}
	if p.Email != nil {
		u.email = Email(*p.Email)
	}
	return u
}

// Equals checks if two users are equal based on their ID
func (u User) Equals(other User) bool {
	return u.id == other.id && u.id.IsValid()
}
