package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetHandler opens a recovery session and attempts code
// delivery. It never discloses whether the email matched an account, and it
// never discloses a delivery failure: both collapse into generic success.
type InitializePasswordResetHandler struct {
	repo    RepositoryManager
	machine *RecoveryMachine
	mailer  Mailer
	logger  Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, machine *RecoveryMachine, mailer Mailer) *InitializePasswordResetHandler {
	if mailer == nil {
		mailer = NoopMailer{}
	}
	return &InitializePasswordResetHandler{
		repo:    repo,
		machine: machine,
		mailer:  mailer,
		logger:  defLogger{},
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

	var user *User
	var code string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				// account existence must never be distinguishable from absence
				user = nil
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		code, err = h.machine.Begin(user)
		if err != nil {
			return err
		}

		if err := h.repo.Users().SaveRecoveryTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store recovery session")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if user == nil {
		return nil
	}

	// delivery failures are masked from the requester
	if err := h.mailer.SendPasswordResetEmail(ctx, user.Email, code); err != nil {
		h.logger.Warn("password reset email delivery failed", "error", err)
	}

	return nil
}
