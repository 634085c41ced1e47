package membership

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/uptrace/bun"
)

const (
	// DefaultMaxInvalidAttempts locks an account after this many consecutive
	// credential mismatches inside the attempt window.
	DefaultMaxInvalidAttempts = 3
	// DefaultMinPasswordLength is the minimum accepted password length.
	DefaultMinPasswordLength = 6
	// DefaultTicketTimeout is how long a forgotten-password secret stays valid.
	DefaultTicketTimeout = 60 * time.Minute
)

// User is the membership user model.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Username    string `bun:"username,notnull" json:"username,omitempty"`
	Email       string `bun:"email" json:"email,omitempty"`
	Phone       string `bun:"phone_number" json:"phone_number,omitempty"`
	Namespace   string `bun:"namespace,notnull" json:"namespace,omitempty"`
	Avatar      string `bun:"avatar" json:"avatar,omitempty"`
	FullName    string `bun:"full_name" json:"full_name,omitempty"`
	Description string `bun:"description" json:"description,omitempty"`
	PrincipalID string `bun:"principal_id" json:"principal_id,omitempty"`

	Approved    bool       `bun:"approved" json:"approved,omitempty"`
	Suspended   bool       `bun:"suspended" json:"suspended,omitempty"`
	ApprovedAt  *time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	SuspendedAt *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`

	PasswordDigest        string     `bun:"password_digest" json:"-"`
	PasswordQuestions     []string   `bun:"password_questions,type:jsonb" json:"-"`
	PasswordAnswerDigests []string   `bun:"password_answer_digests,type:jsonb" json:"-"`
	InvalidAttempts       int        `bun:"invalid_attempts" json:"invalid_attempts,omitempty"`
	LastInvalidAttemptAt  *time.Time `bun:"last_invalid_attempt_at,nullzero" json:"last_invalid_attempt_at,omitempty"`

	ChangePasswordOnFirstLogin bool          `bun:"change_password_on_first_login" json:"change_password_on_first_login,omitempty"`
	MaxInvalidAttempts         int           `bun:"max_invalid_attempts" json:"max_invalid_attempts,omitempty"`
	MinPasswordLength          int           `bun:"min_password_length" json:"min_password_length,omitempty"`
	AttemptWindow              time.Duration `bun:"attempt_window" json:"attempt_window,omitempty"`
	PasswordExpiresAt          *time.Time    `bun:"password_expires_at,nullzero" json:"password_expires_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Validate checks the record is storable: a username is mandatory and the
// optional contact identities must be well formed.
func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&u.Email, is.Email),
		validation.Field(&u.Phone, validation.Length(5, 20), is.Digit),
	)
}

// EnsurePasswordDefaults backfills zero policy fields with package defaults.
func (u *User) EnsurePasswordDefaults() {
	if u.MaxInvalidAttempts <= 0 {
		u.MaxInvalidAttempts = DefaultMaxInvalidAttempts
	}
	if u.MinPasswordLength <= 0 {
		u.MinPasswordLength = DefaultMinPasswordLength
	}
}

// PasswordExpired reports whether the password is past its expiry at the
// given instant. A nil expiry never expires.
func (u *User) PasswordExpired(now time.Time) bool {
	return u.PasswordExpiresAt != nil && now.After(*u.PasswordExpiresAt)
}

// PasswordOptions mirrors the per-user password policy fields.
type PasswordOptions struct {
	ChangePasswordOnFirstLogin bool
	MaxInvalidAttempts         int
	MinPasswordLength          int
	AttemptWindow              time.Duration
	PasswordExpiresAt          *time.Time
}

// DefaultPasswordOptions returns the package-level policy defaults: three
// attempts, six character minimum, no attempt window, no expiry.
func DefaultPasswordOptions() PasswordOptions {
	return PasswordOptions{
		MaxInvalidAttempts: DefaultMaxInvalidAttempts,
		MinPasswordLength:  DefaultMinPasswordLength,
	}
}

// ResetTicket binds a forgotten-password secret digest to a user. At most
// one live ticket exists per user; reissuing supersedes the prior ticket.
type ResetTicket struct {
	UserID       int64
	SecretDigest string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the ticket is past its expiry.
func (t ResetTicket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
