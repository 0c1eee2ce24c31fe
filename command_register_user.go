package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage is a self-registration request: the registrant
// supplies their own password up front, so the account is authenticatable
// immediately and no invite email is needed.
type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Password  string `json:"password"`
	OnCreated func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserHandler struct {
	lifecycle *Lifecycle
}

func NewRegisterUserHandler(lifecycle *Lifecycle) *RegisterUserHandler {
	return &RegisterUserHandler{lifecycle: lifecycle}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password == "" {
		return goerrors.Wrap(ErrNoEmptyString, goerrors.CategoryValidation, "registration requires a password")
	}

	role := event.Role
	if role == "" {
		role = RoleStudent
	}

	user, err := h.lifecycle.Create(ctx, CreateUserInput{
		Email:     event.Email,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Role:      role,
		Password:  event.Password,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	if event.OnCreated != nil {
		event.OnCreated(user)
	}

	return nil
}
