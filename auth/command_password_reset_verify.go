package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerifyResetCodeMessage struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (e VerifyResetCodeMessage) Type() string { return "user.password_reset_verify" }

// VerifyResetCodeHandler validates the emailed code and rotates the session
// secret. The returned raw secret is the only time it exists outside its
// stored hash. Unknown emails, absent codes, mismatches, and lapsed codes all
// collapse into the same error.
type VerifyResetCodeHandler struct {
	repo    RepositoryManager
	machine *RecoveryMachine
}

func NewVerifyResetCodeHandler(repo RepositoryManager, machine *RecoveryMachine) *VerifyResetCodeHandler {
	return &VerifyResetCodeHandler{repo: repo, machine: machine}
}

func (h *VerifyResetCodeHandler) Execute(ctx context.Context, event VerifyResetCodeMessage) (string, error) {
	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset code verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyResetCodeHandler) execute(ctx context.Context, event VerifyResetCodeMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var secret string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrRecoveryCodeInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for code verification")
		}

		secret, err = h.machine.Verify(user, event.Code)
		if err != nil {
			return err
		}

		if err := h.repo.Users().SaveRecoveryTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate recovery session")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return "", richErr
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify reset code")
	}

	return secret, nil
}
