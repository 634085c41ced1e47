package membership

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated caller.
type Identity interface {
	ID() string
	Username() string
	Namespace() string
}

// CredentialValidator decides whether an identity may perform the action
// identified by a schema/action pair.
type CredentialValidator interface {
	Validate(ctx context.Context, schemaID, actionID string, identity Identity) bool
}

// ValidatorFactory builds the validator instance a Policy memoizes.
type ValidatorFactory func() CredentialValidator

// UserStore is the external persistence collaborator. Implementations must
// provide per-record atomicity for Save and Update.
type UserStore interface {
	Find(ctx context.Context, id int64) (*User, error)
	FindByIdentity(ctx context.Context, identity, namespace string) (*User, error)
	Save(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, ids ...int64) (int, error)
	List(ctx context.Context, namespace string, paging Paging) ([]*User, error)
}

// Digester produces and verifies one-way digests of secrets. The algorithm
// and salt strategy belong to the implementation, not to this package.
type Digester interface {
	Digest(secret string) (string, error)
	Verify(digest, secret string) bool
}

// Paging bounds a List call. The zero value means first page, default size.
type Paging struct {
	Page int
	Size int
}

// DefaultPageSize is used when Paging.Size is zero or negative.
const DefaultPageSize = 20

func (p Paging) Limit() int {
	if p.Size <= 0 {
		return DefaultPageSize
	}
	return p.Size
}

func (p Paging) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MEMBERSHIP "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
