package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// RequestInfo carries the host and transport security of the live request
// that triggered an account creation, so links in invite emails point at
// the domain the admin was actually using.
type RequestInfo struct {
	Host   string
	Secure bool
}

type requestInfoKey struct{}

// WithRequestInfo attaches request host information to the context.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom extracts request host information, if any.
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// InviteDispatcher listens for account creations and sends the set-password
// email for accounts that need one. The send is scheduled through OnCommit:
// if the creating transaction rolls back no email goes out, if it commits
// exactly one send is attempted.
type InviteDispatcher struct {
	repo   RepositoryManager
	mailer Mailer
	config Config
	logger Logger
}

// NewInviteDispatcher wires the dispatcher to a mail sender and the site
// configuration used to build links outside a request context.
func NewInviteDispatcher(repo RepositoryManager, mailer Mailer, config Config) *InviteDispatcher {
	return &InviteDispatcher{
		repo:   repo,
		mailer: mailer,
		config: config,
		logger: defLogger{},
	}
}

func (d *InviteDispatcher) WithLogger(logger Logger) *InviteDispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// UserCreated is the Created listener. Policy filter: superusers and staff
// never get invites, and neither do accounts created with a usable
// credential (self registration supplies its own password, a second
// set-password email would only confuse).
func (d *InviteDispatcher) UserCreated(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	if user.IsSuperuser {
		return
	}

	if user.IsStaff {
		return
	}

	if user.HasUsableCredential() {
		return
	}

	email := user.Email

	OnCommit(ctx, func(ctx context.Context) {
		if _, err := d.SendSetPassword(ctx, email); err != nil {
			// Mail dispatch is best effort: never propagate into the
			// creation flow, which already committed.
			d.logger.Error("invite dispatch failed", "email", email, "error", err)
		}
	})
}

// SendSetPassword creates a password-reset record for email and hands the
// link to the mailer. It returns true only when the address matched a real
// account at send time; the account may have been deleted between commit
// and send. Delivery failures are logged, not returned.
func (d *InviteDispatcher) SendSetPassword(ctx context.Context, email string) (bool, error) {
	user, err := d.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for invite")
	}

	reset := &PasswordReset{
		UserID: &user.ID,
		Email:  user.Email,
		Status: ResetRequestedStatus,
	}

	reset, err = d.repo.PasswordResets().Create(ctx, reset)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
	}

	domain, useHTTPS := d.resolveDomainAndScheme(ctx)

	msg := SetPasswordEmail{
		To:        user.Email,
		FromEmail: d.config.GetFromEmail(),
		Domain:    domain,
		UseHTTPS:  useHTTPS,
		ResetID:   reset.ID.String(),
	}

	if err := d.mailer.SendSetPassword(ctx, msg); err != nil {
		d.logger.Error("set-password email delivery failed", "email", user.Email, "error", err)
	}

	return true, nil
}

// resolveDomainAndScheme prefers the live request's host and security flag,
// else falls back to the configured site domain and scheme.
func (d *InviteDispatcher) resolveDomainAndScheme(ctx context.Context) (string, bool) {
	if info, ok := RequestInfoFrom(ctx); ok && info.Host != "" {
		return info.Host, info.Secure
	}

	domain := d.config.GetSiteDomain()
	if domain == "" {
		return "localhost", false
	}

	return domain, d.config.GetSiteUseHTTPS()
}
