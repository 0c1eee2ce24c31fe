package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// CreatedListener reacts to a successful user creation. Listeners run
// synchronously inside the creating transaction; anything externally
// observable must be deferred through OnCommit so it never happens for a
// transaction that later aborts.
type CreatedListener func(ctx context.Context, user *User)

// CreateUserInput describes a new account. An empty Password leaves the
// account without a usable credential.
type CreateUserInput struct {
	Email       string
	FirstName   string
	LastName    string
	Role        Role
	Password    string
	IsStaff     bool
	IsSuperuser bool
}

// Lifecycle owns the transitions an account moves through: created with or
// without a usable credential, credential set or reset, reactivated.
type Lifecycle struct {
	repo      RepositoryManager
	logger    Logger
	activity  ActivitySink
	listeners []CreatedListener
}

// NewLifecycle will create a new Lifecycle service
func NewLifecycle(repo RepositoryManager) *Lifecycle {
	return &Lifecycle{
		repo:     repo,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (l *Lifecycle) WithLogger(logger Logger) *Lifecycle {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithActivitySink attaches an audit sink for account transitions
func (l *Lifecycle) WithActivitySink(sink ActivitySink) *Lifecycle {
	l.activity = normalizeActivitySink(sink)
	return l
}

// OnCreated registers a listener for the Created event. Registration is
// explicit wiring done at construction time, not a global observer.
func (l *Lifecycle) OnCreated(listener CreatedListener) *Lifecycle {
	if listener != nil {
		l.listeners = append(l.listeners, listener)
	}
	return l
}

// Create provisions a new account. Email is normalized to lowercase before
// the uniqueness check and storage; an existing address fails with
// ErrDuplicateIdentity. With a password the account can authenticate right
// away, without one it must complete a set-password flow first.
func (l *Lifecycle) Create(ctx context.Context, input CreateUserInput) (*User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, goerrors.New("email is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	passwordHash := ""
	if input.Password != "" {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}
		passwordHash = hash
	}

	user := &User{
		Email:        email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         input.Role,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsStaff:      input.IsStaff,
		IsSuperuser:  input.IsSuperuser,
	}

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := l.repo.Users().GetByEmailTx(ctx, tx, email); err == nil {
			return duplicateIdentityError(email)
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		created, err := l.repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			if IsDuplicateIdentity(err) {
				return duplicateIdentityError(email)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		user = created
		l.notifyCreated(ctx, user)
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user creation transaction failed")
	}

	l.recordActivity(ctx, ActivityEventAccountCreated, user)

	return user, nil
}

// SetCredential establishes a usable credential regardless of prior state.
// Repeating the call with the same value is a no-op transition back to the
// same state, never an error.
func (l *Lifecycle) SetCredential(ctx context.Context, user *User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	if err := l.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set user credential")
	}

	user.PasswordHash = hash
	return nil
}

// Authenticate resolves the account for email and checks the candidate
// against the stored credential. Unknown address, inactive account, missing
// credential, and mismatch all collapse into ErrInvalidCredentials: an
// account without a usable credential fails for every candidate value,
// including the empty string.
func (l *Lifecycle) Authenticate(ctx context.Context, email, candidate string) (*User, error) {
	user, err := l.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during authentication")
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if !user.HasUsableCredential() {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(candidate, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Reactivate flips an account back to active so it can authenticate again,
// provided it holds a usable credential.
func (l *Lifecycle) Reactivate(ctx context.Context, user *User) error {
	if err := l.repo.Users().Reactivate(ctx, user.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reactivate user")
	}

	user.IsActive = true
	l.recordActivity(ctx, ActivityEventAccountReactivated, user)
	return nil
}

func (l *Lifecycle) notifyCreated(ctx context.Context, user *User) {
	for _, listener := range l.listeners {
		listener(ctx, user)
	}
}

func (l *Lifecycle) recordActivity(ctx context.Context, eventType ActivityEventType, user *User) {
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     user.ID.String(),
		Email:      user.Email,
		Role:       user.Role,
		OccurredAt: time.Now(),
	}

	if err := l.activity.Record(ctx, event); err != nil {
		l.logger.Error("Activity sink record error", "error", err)
	}
}
