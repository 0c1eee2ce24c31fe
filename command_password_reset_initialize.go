package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Stage      string `json:"stage"`
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Stage   string
	Success bool
}

// InitializePasswordResetHandler starts the reset flow: it always reports
// success and moves to the email-sent stage so callers cannot learn which
// addresses are registered. When the address matches an account the
// dispatcher creates the reset record and sends the link.
type InitializePasswordResetHandler struct {
	dispatcher *InviteDispatcher
	logger     Logger
}

func NewInitializePasswordResetHandler(dispatcher *InviteDispatcher) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		dispatcher: dispatcher,
		logger:     defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Stage != ResetInit {
		return goerrors.New("unknown or invalid stage for password reset initialization", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"stage": event.Stage})
	}

	sent, err := h.dispatcher.SendSetPassword(ctx, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if !sent {
		// Unknown address: report the same outcome as a real send.
		h.logger.Debug("password reset requested for unknown address", "email", event.Email)
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Stage:   AccountVerification,
			Success: true,
		})
	}

	return nil
}
