package membership

import (
	"fmt"
	"sync"
)

// AuthorizationMode describes how an action gates its callers.
type AuthorizationMode int

const (
	// AuthorizationIdentity admits any authenticated identity.
	AuthorizationIdentity AuthorizationMode = iota
	// AuthorizationDisabled skips the check entirely.
	AuthorizationDisabled
	// AuthorizationRequired demands a schema/action scoped permission check.
	AuthorizationRequired
)

func (m AuthorizationMode) String() string {
	switch m {
	case AuthorizationDisabled:
		return "disabled"
	case AuthorizationIdentity:
		return "identity"
	case AuthorizationRequired:
		return "required"
	default:
		return "unknown"
	}
}

// Policy is the declarative authorization descriptor attached to a protected
// action. It owns at most one CredentialValidator instance, built lazily on
// first access and kept for the descriptor's lifetime.
type Policy struct {
	mu        sync.Mutex
	mode      AuthorizationMode
	schemaID  string
	actionID  string
	factory   ValidatorFactory
	validator CredentialValidator
}

// NewPolicy returns a descriptor in Identity mode: any authenticated
// identity may pass, no schema/action check is performed.
func NewPolicy() *Policy {
	return &Policy{mode: AuthorizationIdentity}
}

// NewDisabledPolicy returns a Disabled descriptor when disabled is true,
// otherwise an Identity descriptor.
func NewDisabledPolicy(disabled bool) *Policy {
	mode := AuthorizationIdentity
	if disabled {
		mode = AuthorizationDisabled
	}
	return &Policy{mode: mode}
}

// NewRequiredPolicy returns a Required descriptor scoped to the given schema
// and optional action. An empty action performs a schema-level check only.
func NewRequiredPolicy(schemaID string, actionID ...string) *Policy {
	p := &Policy{
		mode:     AuthorizationRequired,
		schemaID: schemaID,
	}
	if len(actionID) > 0 {
		p.actionID = actionID[0]
	}
	return p
}

func (p *Policy) Mode() AuthorizationMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *Policy) SchemaID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schemaID
}

func (p *Policy) ActionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actionID
}

// SetMode overrides the descriptor's authorization mode.
func (p *Policy) SetMode(mode AuthorizationMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// SetValidatorType assigns the constructor used to build the policy's
// validator. It accepts a ValidatorFactory (or the equivalent raw func
// signature) or nil to clear; anything else fails with
// ErrInvalidValidatorType and leaves the previous assignment untouched.
// Assigning a new factory discards any cached validator so the next access
// rebuilds against the new type.
func (p *Policy) SetValidatorType(factory any) error {
	var f ValidatorFactory

	switch v := factory.(type) {
	case nil:
	case ValidatorFactory:
		f = v
	case func() CredentialValidator:
		f = v
	default:
		return ErrInvalidValidatorType.WithMetadata(map[string]any{
			"type": fmt.Sprintf("%T", factory),
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.factory = f
	p.validator = nil
	return nil
}

// Validator returns the memoized validator instance, constructing it exactly
// once per assigned factory. Concurrent first callers block on the policy
// mutex and observe the same instance. Returns nil when no factory is set.
func (p *Policy) Validator() CredentialValidator {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.validator != nil {
		return p.validator
	}
	if p.factory == nil {
		return nil
	}

	p.validator = p.factory()
	return p.validator
}
