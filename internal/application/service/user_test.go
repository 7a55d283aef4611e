package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-registry/internal/application/dto"
	"user-registry/internal/domain/entity"
	"user-registry/internal/domain/errors"
	"user-registry/internal/domain/event"
	"user-registry/internal/infrastructure/repository/memory"
	"user-registry/internal/infrastructure/telemetry"
)

type fakeCache struct {
	mu          sync.Mutex
	users       map[entity.UserID]entity.User
	invalidated []entity.UserID
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{users: make(map[entity.UserID]entity.User)}
}

func (c *fakeCache) Get(_ context.Context, id entity.UserID) (entity.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return entity.User{}, false, c.getErr
	}
	u, ok := c.users[id]
	return u, ok, nil
}

func (c *fakeCache) Set(_ context.Context, user entity.User, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.ID()] = user
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id entity.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type recordingPublisher struct {
	events []event.UserEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev event.UserEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func ptr(s string) *string { return &s }

func newService(t *testing.T) (*UserService, *fakeCache, *recordingPublisher) {
	t.Helper()
	cache := newFakeCache()
	pub := &recordingPublisher{}
	svc := NewUserService(memory.NewUserRepository(), telemetry.NewNoop()).
		WithCache(cache, time.Minute).
		WithPublisher(pub)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, cache, pub
}

func seedFixture(t *testing.T, svc *UserService) {
	t.Helper()
	require.NoError(t, svc.SeedUsers(context.Background(), []dto.SeedUser{
		{ID: 25, Name: "Test User", Email: "testuser@email.com"},
	}))
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newService(t)

	got, err := svc.CreateUser(ctx, dto.CreateUserRequest{Name: ptr("Test User"), Email: ptr("testuser@email.com")})
	require.NoError(t, err)
	assert.Equal(t, dto.UserResponse{ID: 1, Name: "Test User", Email: "testuser@email.com"}, got)

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.TypeUserCreated, pub.events[0].Type)
	assert.Equal(t, 1, pub.events[0].UserID)
	assert.NotEmpty(t, pub.events[0].ID)

	_, err = svc.CreateUser(ctx, dto.CreateUserRequest{Name: ptr("Again"), Email: ptr("testuser@email.com")})
	require.Error(t, err)
	assert.True(t, errors.IsUserAlreadyExists(err))
	assert.Len(t, pub.events, 1, "failed creates publish nothing")

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUser_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	tests := []struct {
		name string
		req  dto.CreateUserRequest
	}{
		{name: "invalid email", req: dto.CreateUserRequest{Name: ptr("Test User"), Email: ptr("testuser")}},
		{name: "missing email", req: dto.CreateUserRequest{Name: ptr("Test User")}},
		{name: "missing name", req: dto.CreateUserRequest{Email: ptr("testuser@email.com")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}

	created, err := svc.CreateUser(ctx, dto.CreateUserRequest{Name: ptr(""), Email: ptr("empty@email.com")})
	require.NoError(t, err, "an empty name is allowed")
	assert.Equal(t, 1, created.ID, "rejected requests never reach the store")
}

func TestListUsers_Empty(t *testing.T) {
	svc, _, _ := newService(t)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.NotNil(t, users)
	assert.Empty(t, users)
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()
	svc, cache, _ := newService(t)

	_, err := svc.GetUserByID(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.IsUserNotFound(err))

	_, err = svc.GetUserByID(ctx, "abc")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	seedFixture(t, svc)
	got, err := svc.GetUserByID(ctx, "25")
	require.NoError(t, err)
	assert.Equal(t, dto.UserResponse{ID: 25, Name: "Test User", Email: "testuser@email.com"}, got)

	_, cached := cache.users[25]
	assert.True(t, cached, "lookups fill the cache")
}

func TestGetUserByID_CacheErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	svc, cache, _ := newService(t)
	seedFixture(t, svc)
	cache.getErr = stderrors.New("redis down")

	got, err := svc.GetUserByID(ctx, "25")
	require.NoError(t, err)
	assert.Equal(t, 25, got.ID)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	svc, cache, pub := newService(t)
	seedFixture(t, svc)

	_, err := svc.GetUserByID(ctx, "25")
	require.NoError(t, err)

	err = svc.UpdateUser(ctx, "25", dto.UpdateUserRequest{Name: ptr("Updated Name"), Email: ptr("updated@email.com")})
	require.NoError(t, err)
	assert.Contains(t, cache.invalidated, entity.UserID(25))

	got, err := svc.GetUserByID(ctx, "25")
	require.NoError(t, err)
	assert.Equal(t, dto.UserResponse{ID: 25, Name: "Updated Name", Email: "updated@email.com"}, got)

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.TypeUserUpdated, pub.events[0].Type)
	assert.Equal(t, "updated@email.com", pub.events[0].Email)
}

func TestUpdateUser_Failures(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newService(t)
	seedFixture(t, svc)

	err := svc.UpdateUser(ctx, "1", dto.UpdateUserRequest{Name: ptr("Test User"), Email: ptr("updated@email.com")})
	assert.True(t, errors.IsUserNotFound(err))

	err = svc.UpdateUser(ctx, "25", dto.UpdateUserRequest{Email: ptr("testuser@email.com")})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.False(t, errors.IsUserAlreadyExists(err), "update conflicts are reported as update failures")

	err = svc.UpdateUser(ctx, "25", dto.UpdateUserRequest{Email: ptr("testuser")})
	assert.True(t, errors.IsValidationError(err))

	assert.Empty(t, pub.events)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, cache, pub := newService(t)
	seedFixture(t, svc)

	require.NoError(t, svc.DeleteUser(ctx, "25"))
	assert.Contains(t, cache.invalidated, entity.UserID(25))

	_, err := svc.GetUserByID(ctx, "25")
	assert.True(t, errors.IsUserNotFound(err))

	err = svc.DeleteUser(ctx, "25")
	assert.True(t, errors.IsUserNotFound(err))

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.TypeUserDeleted, pub.events[0].Type)
	assert.Equal(t, 25, pub.events[0].UserID)
	assert.Empty(t, pub.events[0].Email)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newService(t)
	pub.err = stderrors.New("broker unavailable")

	_, err := svc.CreateUser(ctx, dto.CreateUserRequest{Name: ptr("Test User"), Email: ptr("testuser@email.com")})
	require.NoError(t, err)
}

func TestSeedUsers_RejectsBadFixtures(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	err := svc.SeedUsers(ctx, []dto.SeedUser{{ID: 1, Name: "x", Email: "not-an-email"}})
	assert.True(t, errors.IsValidationError(err))

	err = svc.SeedUsers(ctx, []dto.SeedUser{
		{ID: 32, Name: "Test User 2", Email: "testuser2@email.com"},
		{ID: 33, Name: "Test User 2", Email: "testuser2@email.com"},
	})
	assert.True(t, errors.IsUserAlreadyExists(err))
}

func TestCreateUser_OverwritesLeftoverCacheEntry(t *testing.T) {
	ctx := context.Background()
	svc, cache, _ := newService(t)

	leftover, err := entity.RestoreUser(1, "Old Alice", "alice@old.com")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, leftover, time.Minute))

	created, err := svc.CreateUser(ctx, dto.CreateUserRequest{Name: ptr("Bob"), Email: ptr("bob@new.com")})
	require.NoError(t, err)
	require.Equal(t, 1, created.ID)

	got, err := svc.GetUserByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, dto.UserResponse{ID: 1, Name: "Bob", Email: "bob@new.com"}, got)
}

func TestSeedUsers_OverwritesLeftoverCacheEntry(t *testing.T) {
	ctx := context.Background()
	svc, cache, _ := newService(t)

	leftover, err := entity.RestoreUser(25, "Old Alice", "alice@old.com")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, leftover, time.Minute))

	seedFixture(t, svc)

	got, err := svc.GetUserByID(ctx, "25")
	require.NoError(t, err)
	assert.Equal(t, "testuser@email.com", got.Email)
}

// blockingPublisher never delivers; it waits for the context to end
type blockingPublisher struct{}

func (blockingPublisher) Publish(ctx context.Context, _ event.UserEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPublishIsBounded(t *testing.T) {
	svc, _, _ := newService(t)
	svc.WithPublisher(blockingPublisher{})
	svc.publishTimeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateUser(context.Background(), dto.CreateUserRequest{Name: ptr("Test User"), Email: ptr("testuser@email.com")})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err, "the store commit stands when delivery times out")
	case <-time.After(5 * time.Second):
		t.Fatal("CreateUser blocked on an undeliverable event")
	}

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestPublishSurvivesCallerCancellation(t *testing.T) {
	pub := &ctxRecordingPublisher{}
	svc, _, _ := newService(t)
	svc.WithPublisher(pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.CreateUser(ctx, dto.CreateUserRequest{Name: ptr("Test User"), Email: ptr("testuser@email.com")})
	require.NoError(t, err)

	require.Len(t, pub.errs, 1)
	assert.NoError(t, pub.errs[0])
	assert.True(t, pub.hadDeadline)
}

type ctxRecordingPublisher struct {
	errs        []error
	hadDeadline bool
}

func (p *ctxRecordingPublisher) Publish(ctx context.Context, _ event.UserEvent) error {
	_, p.hadDeadline = ctx.Deadline()
	p.errs = append(p.errs, ctx.Err())
	return nil
}
