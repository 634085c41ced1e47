package membership

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// PolicyRegistry maps action keys to authorization policies. Dispatchers
// register a policy per route/command at configuration time and consult it
// per request, replacing attribute-style metadata discovery with an explicit
// table.
type PolicyRegistry struct {
	policies *xsync.MapOf[string, *Policy]
}

func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		policies: xsync.NewMapOf[string, *Policy](),
	}
}

// Register binds a policy to an action key, replacing any prior binding.
func (r *PolicyRegistry) Register(actionKey string, policy *Policy) {
	if policy == nil {
		r.policies.Delete(actionKey)
		return
	}
	r.policies.Store(actionKey, policy)
}

// Lookup returns the policy bound to the action key, or nil.
func (r *PolicyRegistry) Lookup(actionKey string) *Policy {
	p, _ := r.policies.Load(actionKey)
	return p
}

// Deregister removes the binding for an action key.
func (r *PolicyRegistry) Deregister(actionKey string) {
	r.policies.Delete(actionKey)
}

// Authorize applies the policy bound to actionKey against the current
// identity. Unregistered actions default to the identity check.
func (r *PolicyRegistry) Authorize(ctx context.Context, identity Identity, actionKey string) error {
	return Authorize(ctx, identity, r.Lookup(actionKey))
}

// Authorize gates a call according to the policy's mode: Disabled allows
// everyone, Identity requires an authenticated identity, Required runs the
// policy's validator against its schema/action pair. A Required policy with
// no validator falls back to the identity check. A nil policy behaves like
// Identity mode.
func Authorize(ctx context.Context, identity Identity, policy *Policy) error {
	if policy == nil {
		if identity == nil {
			return ErrUnauthenticated
		}
		return nil
	}

	switch policy.Mode() {
	case AuthorizationDisabled:
		return nil
	case AuthorizationIdentity:
		if identity == nil {
			return ErrUnauthenticated
		}
		return nil
	}

	if identity == nil {
		return ErrUnauthenticated
	}

	validator := policy.Validator()
	if validator == nil {
		return nil
	}

	if !validator.Validate(ctx, policy.SchemaID(), policy.ActionID(), identity) {
		return ErrNotAuthorized.WithMetadata(map[string]any{
			"schema_id": policy.SchemaID(),
			"action_id": policy.ActionID(),
			"identity":  identity.ID(),
		})
	}

	return nil
}
