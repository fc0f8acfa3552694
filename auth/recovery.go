package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// ResetCodeTTL bounds the short-lived verification step
	ResetCodeTTL = 15 * time.Minute
	// ResetSessionTTL bounds the whole recovery session
	ResetSessionTTL = time.Hour

	resetCodeDigits   = 6
	resetSecretLength = 32
)

// HashRecoverySecret is the one-way transform applied to recovery secrets
// before storage. The raw secret exists outside this hash exactly once, on
// its way to the caller.
func HashRecoverySecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateResetCode mints a uniformly random 6-digit decimal code. Collisions
// across users are acceptable; lookup is always by email plus code.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	return fmt.Sprintf("%0*d", resetCodeDigits, n), nil
}

// GenerateResetSecret mints a high-entropy secret in hex form.
func GenerateResetSecret() (string, error) {
	b := make([]byte, resetSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset secret")
	}
	return hex.EncodeToString(b), nil
}

// RecoveryOption customizes machine construction.
type RecoveryOption func(*RecoveryMachine)

// WithRecoveryClock injects a custom clock (useful for tests).
func WithRecoveryClock(clock func() time.Time) RecoveryOption {
	return func(m *RecoveryMachine) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRecoveryLogger overrides the logger.
func WithRecoveryLogger(logger Logger) RecoveryOption {
	return func(m *RecoveryMachine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// RecoveryMachine drives the password recovery protocol over the tagged
// RecoveryState attached to a user: none -> code_issued -> verified -> none,
// or back to none implicitly when a deadline lapses.
type RecoveryMachine struct {
	now    func() time.Time
	logger Logger
}

// NewRecoveryMachine returns the default implementation.
func NewRecoveryMachine(opts ...RecoveryOption) *RecoveryMachine {
	m := &RecoveryMachine{
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// CurrentStage reports the user's effective recovery stage, honoring lazy
// expiry of the session deadline.
func (m *RecoveryMachine) CurrentStage(user *User) RecoveryStage {
	if user == nil {
		return RecoveryStageNone
	}
	return user.Recovery.CurrentStage(m.now())
}

// Begin opens a recovery session on the user: a fresh 6-digit code with a
// 15-minute deadline and a hashed session secret with a 1-hour deadline.
// Returns the code for delivery. An already-open session is replaced.
func (m *RecoveryMachine) Begin(user *User) (string, error) {
	code, err := GenerateResetCode()
	if err != nil {
		return "", err
	}

	secret, err := GenerateResetSecret()
	if err != nil {
		return "", err
	}

	now := m.now()
	codeDeadline := now.Add(ResetCodeTTL)
	sessionDeadline := now.Add(ResetSessionTTL)

	user.Recovery = RecoveryState{
		Stage:         RecoveryStageCodeIssued,
		TokenHash:     HashRecoverySecret(secret),
		ExpiresAt:     &sessionDeadline,
		Code:          code,
		CodeExpiresAt: &codeDeadline,
	}

	return code, nil
}

// Verify checks the presented code against the stored one and, on success,
// rotates the session secret and returns the new raw secret. The code is
// intentionally left in place: rotation of the secret is what gates the final
// step. The session deadline is not extended.
func (m *RecoveryMachine) Verify(user *User, code string) (string, error) {
	if user == nil || !user.Recovery.CodeUsable(m.now(), code) {
		return "", ErrRecoveryCodeInvalid
	}

	secret, err := GenerateResetSecret()
	if err != nil {
		return "", err
	}

	user.Recovery.Stage = RecoveryStageVerified
	user.Recovery.TokenHash = HashRecoverySecret(secret)

	return secret, nil
}

// Finalize applies the new password hash and clears the whole recovery
// session in one mutation, the only path back to stage none. The code
// deadline is irrelevant here; only the session deadline gates it.
func (m *RecoveryMachine) Finalize(user *User, tokenHash, passwordHash string) error {
	if user == nil || !user.Recovery.TokenUsable(m.now(), tokenHash) {
		return ErrRecoveryTokenInvalid
	}

	user.PasswordHash = passwordHash
	user.Recovery.Clear()

	return nil
}
