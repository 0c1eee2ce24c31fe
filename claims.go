package accounts

import "time"

// AuthClaims is the structured view of a validated session token. Handlers
// and middleware work against this interface so they never depend on the
// signing implementation.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// HasRole checks if the user carries the exact role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks the user's role against the role hierarchy
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return IsRoleAtLeast(c.UserRole, minRole)
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
