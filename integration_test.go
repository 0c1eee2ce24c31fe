package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func setupIntegrationDB(t *testing.T, name string) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, accounts.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestProvisioningAndLoginIntegration(t *testing.T) {
	ctx := context.Background()
	db := setupIntegrationDB(t, "provisioning_login")

	sink := &capturingSink{}
	repo := accounts.NewRepositoryManager(db)
	lifecycle := accounts.NewLifecycle(repo).WithActivitySink(sink)

	user, err := lifecycle.Create(ctx, accounts.CreateUserInput{
		Email:     "Teacher@Example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      accounts.RoleTeacher,
		Password:  "classroom-pass-1",
		IsStaff:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "teacher@example.com", user.Email)
	assert.True(t, user.HasUsableCredential())

	// Same address in different casing hits the uniqueness check
	_, err = lifecycle.Create(ctx, accounts.CreateUserInput{
		Email:    "TEACHER@example.com",
		Role:     accounts.RoleTeacher,
		Password: "other-pass",
	})
	require.Error(t, err)
	assert.True(t, accounts.IsDuplicateIdentity(err))

	provider := accounts.NewUserProvider(repo.Users())
	authenticator := accounts.NewAuthenticator(provider, newMockConfig()).
		WithActivitySink(sink)

	t.Run("failed login tracks the attempt", func(t *testing.T) {
		_, err := authenticator.Login(ctx, "teacher@example.com", "wrong-pass")
		require.ErrorIs(t, err, accounts.ErrInvalidCredentials)

		stored, err := repo.Users().GetByEmail(ctx, "teacher@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.LoginAttempts)
		assert.NotNil(t, stored.LoginAttemptAt)
	})

	t.Run("successful login issues a token and clears counters", func(t *testing.T) {
		token, err := authenticator.Login(ctx, "teacher@example.com", "classroom-pass-1")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		session, err := authenticator.SessionFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), session.GetUserID())
		assert.Equal(t, accounts.RoleTeacher, session.GetData()["role"])

		stored, err := repo.Users().GetByEmail(ctx, "teacher@example.com")
		require.NoError(t, err)
		assert.Equal(t, 0, stored.LoginAttempts)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("deactivated account cannot login until reactivated", func(t *testing.T) {
		_, err := db.NewUpdate().
			Model((*accounts.User)(nil)).
			Set("is_active = ?", false).
			Where("id = ?", user.ID.String()).
			Exec(ctx)
		require.NoError(t, err)

		_, err = authenticator.Login(ctx, "teacher@example.com", "classroom-pass-1")
		require.ErrorIs(t, err, accounts.ErrInvalidCredentials)

		require.NoError(t, lifecycle.Reactivate(ctx, user))

		token, err := authenticator.Login(ctx, "teacher@example.com", "classroom-pass-1")
		require.NoError(t, err)
		require.NotEmpty(t, token)
	})

	expected := []accounts.ActivityEventType{
		accounts.ActivityEventAccountCreated,
		accounts.ActivityEventLoginFailure,
		accounts.ActivityEventLoginSuccess,
		accounts.ActivityEventLoginFailure,
		accounts.ActivityEventAccountReactivated,
		accounts.ActivityEventLoginSuccess,
	}

	require.Len(t, sink.events, len(expected))
	for i, eventType := range expected {
		assert.Equal(t, eventType, sink.events[i].EventType, "event %d", i)
	}
}

func TestSetCredentialIntegration(t *testing.T) {
	ctx := context.Background()
	db := setupIntegrationDB(t, "set_credential")

	repo := accounts.NewRepositoryManager(db)
	lifecycle := accounts.NewLifecycle(repo)

	user, err := lifecycle.Create(ctx, accounts.CreateUserInput{
		Email: "student@example.com",
		Role:  accounts.RoleStudent,
	})
	require.NoError(t, err)
	assert.False(t, user.HasUsableCredential())

	// No credential yet so every candidate fails, the empty string included
	for _, candidate := range []string{"guess", ""} {
		_, err = lifecycle.Authenticate(ctx, "student@example.com", candidate)
		require.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	}

	require.NoError(t, lifecycle.SetCredential(ctx, user, "first-day-pass"))

	authenticated, err := lifecycle.Authenticate(ctx, "student@example.com", "first-day-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authenticated.ID)

	// Setting the same credential again is a no-op, not an error
	require.NoError(t, lifecycle.SetCredential(ctx, user, "first-day-pass"))
}
