package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionObject(t *testing.T) {
	userID := uuid.New().String()
	now := time.Now()
	sessionData := map[string]any{
		"role": accounts.RoleTeacher,
	}

	session := &accounts.SessionObject{
		UserID:         userID,
		Audience:       []string{"app:user"},
		Issuer:         "test-issuer",
		IssuedAt:       &now,
		ExpirationDate: &now,
		Data:           sessionData,
	}

	assert.Equal(t, userID, session.GetUserID())

	userUUID, err := session.GetUserUUID()
	assert.NoError(t, err)
	assert.Equal(t, userID, userUUID.String())

	assert.Equal(t, []string{"app:user"}, session.GetAudience())
	assert.Equal(t, "test-issuer", session.GetIssuer())
	assert.Equal(t, &now, session.GetIssuedAt())
	assert.Equal(t, sessionData, session.GetData())

	stringRep := session.String()
	assert.Contains(t, stringRep, userID)
	assert.Contains(t, stringRep, "app:user")
	assert.Contains(t, stringRep, "test-issuer")
}

func TestSessionObjectRole(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		expected accounts.Role
	}{
		{
			name:     "role present",
			data:     map[string]any{"role": accounts.RoleAdmin},
			expected: accounts.RoleAdmin,
		},
		{
			name:     "nil data",
			data:     nil,
			expected: "",
		},
		{
			name:     "role missing",
			data:     map[string]any{},
			expected: "",
		},
		{
			name:     "role wrong type",
			data:     map[string]any{"role": 123},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &accounts.SessionObject{Data: tt.data}
			assert.Equal(t, tt.expected, session.Role())
		})
	}
}

func TestSessionFromClaims(t *testing.T) {
	userID := uuid.New().String()
	now := time.Now()
	expTime := now.Add(time.Hour)

	claims := jwt.MapClaims{
		"sub":  userID,
		"aud":  []string{"test:audience"},
		"iss":  "test-issuer",
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(expTime),
		"role": accounts.RoleStudent,
	}

	auther := createTestAuthenticator(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-signing-key"))
	assert.NoError(t, err)

	session, err := auther.SessionFromToken(tokenString)
	assert.NoError(t, err)

	assert.Equal(t, userID, session.GetUserID())
	assert.Equal(t, []string{"test:audience"}, session.GetAudience())
	assert.Equal(t, "test-issuer", session.GetIssuer())

	data := session.GetData()
	assert.NotNil(t, data)
	assert.Equal(t, accounts.RoleStudent, data["role"])
}

// Helper function to create a test authenticator
func createTestAuthenticator(_ *testing.T) accounts.Authenticator {
	provider := &mockIdentityProvider{}

	cfg := &mockConfig{
		signingKey: "test-signing-key",
		tokenExp:   24,
		audience:   []string{"test:audience"},
		issuer:     "test-issuer",
	}

	return accounts.NewAuthenticator(provider, cfg)
}

// Mock implementations for testing

type mockIdentityProvider struct{}

func (m *mockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (accounts.Identity, error) {
	return &mockIdentity{
		id:    uuid.New().String(),
		email: "test@example.com",
		role:  accounts.RoleTeacher,
	}, nil
}

func (m *mockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (accounts.Identity, error) {
	return &mockIdentity{
		id:    identifier,
		email: "test@example.com",
		role:  accounts.RoleTeacher,
	}, nil
}

type mockIdentity struct {
	id    string
	email string
	role  string
}

func (m mockIdentity) ID() string    { return m.id }
func (m mockIdentity) Email() string { return m.email }
func (m mockIdentity) Role() string  { return m.role }

type mockConfig struct {
	signingKey string
	tokenExp   int
	audience   []string
	issuer     string
}

func (m *mockConfig) GetSigningKey() string         { return m.signingKey }
func (m *mockConfig) GetSigningMethod() string      { return "HS256" }
func (m *mockConfig) GetContextKey() string         { return "jwt" }
func (m *mockConfig) GetTokenExpiration() int       { return m.tokenExp }
func (m *mockConfig) GetExtendedTokenDuration() int { return m.tokenExp * 2 }
func (m *mockConfig) GetIssuer() string             { return m.issuer }
func (m *mockConfig) GetAudience() []string         { return m.audience }
func (m *mockConfig) GetRejectedRouteKey() string   { return "rejected_route" }
func (m *mockConfig) GetSiteDomain() string         { return "example.com" }
func (m *mockConfig) GetSiteUseHTTPS() bool         { return true }
func (m *mockConfig) GetFromEmail() string          { return "noreply@example.com" }
