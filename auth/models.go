package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecoveryStage tags where a user sits in the password recovery protocol.
type RecoveryStage string

const (
	// RecoveryStageNone means no recovery session is open
	RecoveryStageNone RecoveryStage = "none"
	// RecoveryStageCodeIssued means a code was emailed and awaits verification
	RecoveryStageCodeIssued RecoveryStage = "code_issued"
	// RecoveryStageVerified means the code was verified and the rotated secret
	// may finalize the reset
	RecoveryStageVerified RecoveryStage = "verified"
)

// RecoveryState collapses the recovery columns into one tagged value attached
// to the user. The code and the session have independent deadlines; both are
// enforced lazily at the moment of use, never by a background sweep.
type RecoveryState struct {
	Stage         RecoveryStage `bun:"stage,nullzero" json:"-"`
	TokenHash     string        `bun:"token_hash,nullzero" json:"-"`
	ExpiresAt     *time.Time    `bun:"expires_at,nullzero" json:"-"`
	Code          string        `bun:"code,nullzero" json:"-"`
	CodeExpiresAt *time.Time    `bun:"code_expires_at,nullzero" json:"-"`
}

// CurrentStage derives the effective stage at a point in time. A session past
// its overall deadline reads as none even while the columns are still stored.
func (r RecoveryState) CurrentStage(now time.Time) RecoveryStage {
	if r.TokenHash == "" || r.Stage == "" || r.Stage == RecoveryStageNone {
		return RecoveryStageNone
	}
	if deadlinePassed(now, r.ExpiresAt) {
		return RecoveryStageNone
	}
	return r.Stage
}

// CodeUsable reports whether the stored code can still gate verification.
func (r RecoveryState) CodeUsable(now time.Time, code string) bool {
	if r.Code == "" || code == "" || r.Code != code {
		return false
	}
	return !deadlinePassed(now, r.CodeExpiresAt)
}

// TokenUsable reports whether the stored token hash can still gate the final
// reset step. The code deadline is irrelevant here.
func (r RecoveryState) TokenUsable(now time.Time, tokenHash string) bool {
	if r.TokenHash == "" || tokenHash == "" || r.TokenHash != tokenHash {
		return false
	}
	return !deadlinePassed(now, r.ExpiresAt)
}

// Clear resets every recovery field, the only path back to stage none.
func (r *RecoveryState) Clear() {
	*r = RecoveryState{Stage: RecoveryStageNone}
}

func deadlinePassed(now time.Time, deadline *time.Time) bool {
	return deadline == nil || now.After(*deadline)
}

// User is the user model. The password hash and recovery columns never appear
// in serialized output.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          UserRole      `bun:"role,notnull" json:"role,omitempty"`
	Username      string        `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string        `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName     string        `bun:"first_name" json:"first_name,omitempty"`
	LastName      string        `bun:"last_name" json:"last_name,omitempty"`
	Avatar        string        `bun:"avatar" json:"avatar,omitempty"`
	Bio           string        `bun:"bio" json:"bio,omitempty"`
	PasswordHash  string        `bun:"password_hash,notnull" json:"-"`
	Recovery      RecoveryState `bun:"embed:reset_" json:"-"`
	JoinDate      *time.Time    `bun:"join_date,nullzero,default:current_timestamp" json:"join_date,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"-"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"-"`
	DeletedAt     *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// EnsureRole backfills the default role for records created before roles
// were mandatory.
func (u *User) EnsureRole() {
	if u.Role == "" {
		u.Role = RoleUser
	}
}

// Identity adapts the record to the claims-facing Identity interface.
func (u *User) Identity() Identity {
	u.EnsureRole()
	return authIdentity{
		id:       u.ID.String(),
		username: u.Username,
		email:    u.Email,
		role:     string(u.Role),
	}
}

type authIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (a authIdentity) ID() string       { return a.id }
func (a authIdentity) Username() string { return a.username }
func (a authIdentity) Email() string    { return a.email }
func (a authIdentity) Role() string     { return a.role }

var _ Identity = authIdentity{}
