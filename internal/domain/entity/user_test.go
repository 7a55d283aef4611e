package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-registry/internal/domain/errors"
)

func TestNewEmail(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{input: "testuser@email.com"},
		{input: "First.Last+tag@Example.co.uk"},
		{input: "testuser", wantErr: true},
		{input: "", wantErr: true},
		{input: "a@b", wantErr: true},
		{input: " spaced@email.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			email, err := NewEmail(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, email.String(), "email case and content are preserved")
		})
	}
}

func TestNewUser_AllowsEmptyName(t *testing.T) {
	u, err := NewUser("", "testuser@email.com")
	require.NoError(t, err)
	assert.Equal(t, Name(""), u.Name())
	assert.False(t, u.ID().IsValid())
}

func TestRestoreUser_RejectsInvalidID(t *testing.T) {
	_, err := RestoreUser(0, "Test User", "testuser@email.com")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	u, err := RestoreUser(25, "Test User", "testuser@email.com")
	require.NoError(t, err)
	assert.Equal(t, UserID(25), u.ID())
}

func TestUser_Apply(t *testing.T) {
	u, err := RestoreUser(25, "Test User", "testuser@email.com")
	require.NoError(t, err)

	name := "Updated Name"
	renamed := u.Apply(UserPatch{Name: &name})
	assert.Equal(t, Name("Updated Name"), renamed.Name())
	assert.Equal(t, Email("testuser@email.com"), renamed.Email())
	assert.Equal(t, UserID(25), renamed.ID())

	// the receiver is a value and stays as it was
	assert.Equal(t, Name("Test User"), u.Name())

	email := "updated@email.com"
	both := u.Apply(UserPatch{Name: &name, Email: &email})
	assert.Equal(t, Email("updated@email.com"), both.Email())
	assert.True(t, both.Equals(u))
}

func TestUserPatch_HasEmail(t *testing.T) {
	empty := ""
	set := "a@x.com"

	assert.False(t, UserPatch{}.HasEmail())
	assert.False(t, UserPatch{Email: &empty}.HasEmail())
	assert.True(t, UserPatch{Email: &set}.HasEmail())
}
