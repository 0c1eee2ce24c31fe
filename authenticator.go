package accounts

import (
	"context"
	"reflect"
	"time"
)

// Auther verifies identities and mints session tokens for the web layer
type Auther struct {
	provider     IdentityProvider
	tokenService TokenService
	logger       Logger
	activity     ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		tokenService: tokenService,
		logger:       defLogger{},
		activity:     noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink attaches an audit sink for login outcomes
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the identifier/password pair and returns a signed session
// token. Every failure path surfaces the same generic credential error so
// callers cannot probe which addresses exist.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.recordLogin(ctx, ActivityEventLoginFailure, identifier, nil)
		return "", ErrInvalidCredentials
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.recordLogin(ctx, ActivityEventLoginFailure, identifier, nil)
		return "", ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login token generation error", "error", err)
		return "", err
	}

	s.recordLogin(ctx, ActivityEventLoginSuccess, identifier, identity)

	return token, nil
}

func (s *Auther) recordLogin(ctx context.Context, eventType ActivityEventType, identifier string, identity Identity) {
	event := ActivityEvent{
		EventType:  eventType,
		Email:      identifier,
		OccurredAt: time.Now(),
	}

	if identity != nil {
		event.UserID = identity.ID()
		event.Role = identity.Role()
	}

	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Error("Activity sink record error", "error", err)
	}
}

// SessionFromToken validates a raw token and maps it into a session
func (s Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// IdentityFromSession resolves the identity referenced by a session
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier", "error", err)
		return nil, err
	}

	return identity, nil
}

var _ Authenticator = (*Auther)(nil)
