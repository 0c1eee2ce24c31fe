package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// Role returns the role claim carried by the session, or the empty string.
func (s *SessionObject) Role() Role {
	if s.Data == nil {
		return ""
	}

	if role, ok := s.Data["role"].(string); ok {
		return Role(role)
	}

	return ""
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromClaims builds a session object from raw token claims, as found
// in middleware locals.
func sessionFromClaims(claims jwt.MapClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToMapClaims
	}

	session := &SessionObject{
		Data: map[string]any{},
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		session.UserID = sub
	}

	if uid, ok := claims["uid"].(string); ok && uid != "" {
		session.UserID = uid
	}

	if session.UserID == "" {
		return nil, ErrUnableToMapClaims
	}

	if iss, err := claims.GetIssuer(); err == nil {
		session.Issuer = iss
	}

	if aud, err := claims.GetAudience(); err == nil {
		session.Audience = []string(aud)
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt := iat.Time
		session.IssuedAt = &issuedAt
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt := exp.Time
		session.ExpirationDate = &expiresAt
	}

	if role, ok := claims["role"].(string); ok {
		session.Data["role"] = role
	}

	return session, nil
}

// sessionFromAuthClaims converts validated JWT claims into a session object
func sessionFromAuthClaims(claims *JWTClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToMapClaims
	}

	session := &SessionObject{
		UserID:   claims.UserID(),
		Issuer:   claims.RegisteredClaims.Issuer,
		Audience: claims.RegisteredClaims.Audience,
		Data: map[string]any{
			"role": claims.Role(),
		},
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		issuedAt := claims.RegisteredClaims.IssuedAt.Time
		session.IssuedAt = &issuedAt
	}

	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt := claims.RegisteredClaims.ExpiresAt.Time
		session.ExpirationDate = &expiresAt
	}

	return session, nil
}
