package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ProvisionUserMessage is an admin-driven account creation. The subject is
// created without a usable credential and must complete the invite flow
// before it can authenticate; the acting admin is never logged in as the
// subject.
type ProvisionUserMessage struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
	Actor     Identity
	OnCreated func(user *User)
}

func (e ProvisionUserMessage) Type() string { return "user.provision" }

type ProvisionUserHandler struct {
	lifecycle *Lifecycle
}

func NewProvisionUserHandler(lifecycle *Lifecycle) *ProvisionUserHandler {
	return &ProvisionUserHandler{lifecycle: lifecycle}
}

func (h *ProvisionUserHandler) Execute(ctx context.Context, event ProvisionUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionUserHandler) execute(ctx context.Context, event ProvisionUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Actor == nil || event.Actor.Role() != RoleAdmin {
		return ErrForbidden
	}

	role := event.Role
	if role == "" {
		role = RoleStudent
	}

	// No password: the account lands without a usable credential, which is
	// what makes the invite flow safe.
	user, err := h.lifecycle.Create(ctx, CreateUserInput{
		Email:     event.Email,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Role:      role,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user provisioning failed")
	}

	if event.OnCreated != nil {
		event.OnCreated(user)
	}

	return nil
}
