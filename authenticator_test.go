package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestIdentity is a simple implementation of Identity interface for testing
type TestIdentity struct {
	id    string
	email string
	role  string
}

func (t TestIdentity) ID() string    { return t.id }
func (t TestIdentity) Email() string { return t.email }
func (t TestIdentity) Role() string  { return t.role }

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return("test-signing-key")
	mockConfig.On("GetTokenExpiration").Return(24)
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAudience").Return([]string{"test:audience"})
	return mockConfig
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	authenticator := accounts.NewAuthenticator(mockProvider, mockConfig)

	t.Run("Successful login", func(t *testing.T) {
		identity := TestIdentity{
			id:    uuid.New().String(),
			email: "test@example.com",
			role:  accounts.RoleTeacher,
		}

		mockProvider.On("VerifyIdentity", ctx, "test@example.com", "password123").
			Return(identity, nil).Once()

		token, err := authenticator.Login(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotEmpty(t, token)

		parsedToken, err := jwt.ParseWithClaims(token, &accounts.JWTClaims{}, func(t *jwt.Token) (any, error) {
			return []byte("test-signing-key"), nil
		})

		assert.NoError(t, err)
		assert.True(t, parsedToken.Valid)

		claims, ok := parsedToken.Claims.(*accounts.JWTClaims)
		assert.True(t, ok)
		assert.Equal(t, identity.ID(), claims.Subject())
		assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"test:audience"}, claims.RegisteredClaims.Audience)
		assert.NotEmpty(t, claims.RegisteredClaims.ID)
		assert.Equal(t, accounts.RoleTeacher, claims.UserRole)
	})

	t.Run("Failed login collapses to generic error", func(t *testing.T) {
		mockProvider.On("VerifyIdentity", ctx, "bad@example.com", "wrongpassword").
			Return(nil, errors.New("user row missing")).Once()

		token, err := authenticator.Login(ctx, "bad@example.com", "wrongpassword")

		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
		assert.Empty(t, token)
		assert.NotContains(t, err.Error(), "missing")
	})

	t.Run("Nil identity collapses to generic error", func(t *testing.T) {
		mockProvider.On("VerifyIdentity", ctx, "ghost@example.com", "password123").
			Return(nil, nil).Once()

		token, err := authenticator.Login(ctx, "ghost@example.com", "password123")

		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
		assert.Empty(t, token)
	})
}

func TestSessionFromToken(t *testing.T) {
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	authenticator := accounts.NewAuthenticator(mockProvider, mockConfig)

	now := time.Now()
	userID := uuid.New().String()
	expiry := now.Add(24 * time.Hour)

	claims := &accounts.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  []string{"test:audience"},
			Issuer:    "test-issuer",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
		UID:      userID,
		UserRole: accounts.RoleAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-signing-key"))
	assert.NoError(t, err)

	t.Run("Valid token", func(t *testing.T) {
		session, err := authenticator.SessionFromToken(tokenString)

		assert.NoError(t, err)
		assert.NotNil(t, session)

		assert.Equal(t, userID, session.GetUserID())
		assert.Equal(t, []string{"test:audience"}, session.GetAudience())
		assert.Equal(t, "test-issuer", session.GetIssuer())

		data := session.GetData()
		assert.Equal(t, accounts.RoleAdmin, data["role"])
	})

	t.Run("Invalid token signature", func(t *testing.T) {
		badToken := tokenString + "tampered"
		session, err := authenticator.SessionFromToken(badToken)

		assert.Error(t, err)
		assert.Nil(t, session)
	})

	t.Run("Expired token", func(t *testing.T) {
		expiredClaims := &accounts.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   userID,
				Audience:  []string{"test:audience"},
				Issuer:    "test-issuer",
				IssuedAt:  jwt.NewNumericDate(now.Add(-48 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-24 * time.Hour)),
			},
			UID:      userID,
			UserRole: accounts.RoleAdmin,
		}

		expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims)
		expiredTokenString, _ := expiredToken.SignedString([]byte("test-signing-key"))

		session, err := authenticator.SessionFromToken(expiredTokenString)

		assert.Error(t, err)
		assert.Nil(t, session)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestLoginActivitySink(t *testing.T) {
	ctx := context.Background()
	identity := TestIdentity{
		id:    uuid.New().String(),
		email: "audit@example.com",
		role:  accounts.RoleStudent,
	}

	t.Run("success event", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		config := newMockConfig()
		sink := new(MockActivitySink)

		authenticator := accounts.NewAuthenticator(provider, config).WithActivitySink(sink)

		provider.On("VerifyIdentity", ctx, identity.Email(), "password").
			Return(identity, nil).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt accounts.ActivityEvent) bool {
			return evt.EventType == accounts.ActivityEventLoginSuccess &&
				evt.UserID == identity.ID() &&
				evt.Role == identity.Role()
		})).Return(nil).Once()

		_, err := authenticator.Login(ctx, identity.Email(), "password")
		require.NoError(t, err)

		sink.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("failure event", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		config := newMockConfig()
		sink := new(MockActivitySink)

		authenticator := accounts.NewAuthenticator(provider, config).WithActivitySink(sink)

		provider.On("VerifyIdentity", ctx, "unknown@example.com", "password").
			Return(nil, errors.New("boom")).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt accounts.ActivityEvent) bool {
			return evt.EventType == accounts.ActivityEventLoginFailure &&
				evt.UserID == "" &&
				evt.Email == "unknown@example.com"
		})).Return(nil).Once()

		_, err := authenticator.Login(ctx, "unknown@example.com", "password")
		require.Error(t, err)

		sink.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("sink error never blocks login", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		config := newMockConfig()
		sink := new(MockActivitySink)

		authenticator := accounts.NewAuthenticator(provider, config).WithActivitySink(sink)

		provider.On("VerifyIdentity", ctx, identity.Email(), "password").
			Return(identity, nil).Once()

		sink.On("Record", mock.Anything, mock.Anything).
			Return(errors.New("sink unavailable")).Once()

		token, err := authenticator.Login(ctx, identity.Email(), "password")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		sink.AssertExpectations(t)
	})
}

func TestIdentityFromSession(t *testing.T) {
	ctx := context.Background()
	mockProvider := new(MockIdentityProvider)
	mockConfig := newMockConfig()

	authenticator := accounts.NewAuthenticator(mockProvider, mockConfig)

	userID := uuid.New().String()
	now := time.Now()
	session := &accounts.SessionObject{
		UserID:   userID,
		Audience: []string{"test:audience"},
		Issuer:   "test-issuer",
		IssuedAt: &now,
		Data:     map[string]any{"role": accounts.RoleAdmin},
	}

	t.Run("Identity found", func(t *testing.T) {
		identity := TestIdentity{
			id:    userID,
			email: "test@example.com",
			role:  accounts.RoleAdmin,
		}

		mockProvider.On("FindIdentityByIdentifier", ctx, userID).
			Return(identity, nil).Once()

		result, err := authenticator.IdentityFromSession(ctx, session)

		assert.NoError(t, err)
		assert.Equal(t, identity.ID(), result.ID())
		assert.Equal(t, identity.Email(), result.Email())
		assert.Equal(t, identity.Role(), result.Role())
	})

	t.Run("Identity not found", func(t *testing.T) {
		mockProvider.On("FindIdentityByIdentifier", ctx, userID).
			Return(nil, accounts.ErrIdentityNotFound).Once()

		result, err := authenticator.IdentityFromSession(ctx, session)

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "identity not found")
	})
}
