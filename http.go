package accounts

import (
	"net/http"
	"time"

	"github.com/goliatone/go-accounts/middleware/jwtware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// DestinationPaths maps abstract destinations to concrete routes. The
// zero value falls back to sensible defaults.
type DestinationPaths map[Destination]string

func defaultDestinationPaths() DestinationPaths {
	return DestinationPaths{
		DestinationStudentHome: "/student",
		DestinationTeacherHome: "/teacher",
		DestinationAdminHome:   "/admin",
	}
}

// RouteAuthenticator is the session boundary for the web layer: login and
// logout are the only operations that mutate authentication state, and both
// go through the standard cookie primitives.
type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	policy           *RolePolicy
	paths            DestinationPaths
	cookieDuration   time.Duration
	extendedDuration time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, policy *RolePolicy, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	if policy == nil {
		policy = NewRolePolicy(RoleDestinations{})
	}

	a := &RouteAuthenticator{
		cfg:              cfg,
		auth:             auther,
		policy:           policy,
		paths:            defaultDestinationPaths(),
		Logger:           defLogger{},
		cookieDuration:   cookieDuration,
		extendedDuration: extendedDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// WithDestinationPaths overrides the destination to route table
func (a *RouteAuthenticator) WithDestinationPaths(paths DestinationPaths) *RouteAuthenticator {
	for destination, path := range paths {
		a.paths[destination] = path
	}
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Login authenticates the payload and establishes the session cookie
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedDuration
	}

	a.setCookieToken(ctx, token, duration)
	return nil
}

// Logout clears the session cookie unconditionally. Calling it without an
// authenticated session is a no-op that still succeeds.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// RedirectForRole resolves the post-login route for a role through the
// role policy. Unknown roles land on the student route.
func (a *RouteAuthenticator) RedirectForRole(role Role) string {
	destination := a.policy.DestinationFor(role)
	if path, ok := a.paths[destination]; ok {
		return path
	}
	return a.paths[DestinationStudentHome]
}

// ProtectedRoute guards a route behind a valid session token. Tokens are
// looked up in the session cookie first, then the Authorization header.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.protectedRoute(cfg, errorHandler, "", "")
}

// RequireRole guards a route behind a valid session token that carries the
// exact role. Authenticated users with a different role are rejected.
func (a *RouteAuthenticator) RequireRole(cfg Config, role Role, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.protectedRoute(cfg, errorHandler, role, "")
}

// RequireMinimumRole guards a route behind a role that meets or exceeds min
// in the hierarchy: student < teacher < admin.
func (a *RouteAuthenticator) RequireMinimumRole(cfg Config, min Role, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.protectedRoute(cfg, errorHandler, "", min)
}

func (a *RouteAuthenticator) protectedRoute(cfg Config, errorHandler func(router.Context, error) error, requiredRole, minimumRole Role) router.MiddlewareFunc {
	tokenService := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		a.Logger,
	)

	return jwtware.New(jwtware.Config{
		ErrorHandler: errorHandler,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     "cookie:" + cfg.GetContextKey() + ",header:Authorization",
		TokenValidator:  tokenValidatorAdapter{service: tokenService},
		RequiredRole:    string(requiredRole),
		MinimumRole:     string(minimumRole),
		ContextEnricher: ContextEnricherAdapter,
	})
}

// MakeClientRouteAuthErrorHandler builds a jwtware error handler. With
// optional set, failed authentication lets the request continue anonymously.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *goerrors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "Invalid authentication token").
				WithCode(goerrors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

// GetRedirect returns the route the user originally asked for, or def
func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

// SetRedirect remembers the route that rejected an unauthenticated user
func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "An unexpected authentication error").
			WithCode(goerrors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
	)

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
