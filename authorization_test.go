package membership_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	membership "github.com/goliatone/go-membership"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyConstructors(t *testing.T) {
	t.Run("default policy is identity mode", func(t *testing.T) {
		p := membership.NewPolicy()
		assert.Equal(t, membership.AuthorizationIdentity, p.Mode())
		assert.Empty(t, p.SchemaID())
		assert.Empty(t, p.ActionID())
	})

	t.Run("disabled policy", func(t *testing.T) {
		assert.Equal(t, membership.AuthorizationDisabled, membership.NewDisabledPolicy(true).Mode())
		assert.Equal(t, membership.AuthorizationIdentity, membership.NewDisabledPolicy(false).Mode())
	})

	t.Run("required policy with schema only", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders")
		assert.Equal(t, membership.AuthorizationRequired, p.Mode())
		assert.Equal(t, "orders", p.SchemaID())
		assert.Empty(t, p.ActionID())
	})

	t.Run("required policy with schema and action", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders", "delete")
		assert.Equal(t, "orders", p.SchemaID())
		assert.Equal(t, "delete", p.ActionID())
	})
}

func TestPolicySetValidatorType(t *testing.T) {
	t.Run("no factory means no validator", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders", "delete")
		assert.Nil(t, p.Validator())
	})

	t.Run("rejects values that cannot produce a validator", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders", "delete")

		err := p.SetValidatorType("not-a-factory")
		require.ErrorIs(t, err, membership.ErrInvalidValidatorType)

		err = p.SetValidatorType(struct{}{})
		require.ErrorIs(t, err, membership.ErrInvalidValidatorType)

		assert.Nil(t, p.Validator())
	})

	t.Run("rejection leaves the previous factory in place", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders", "delete")
		validator := &stubValidator{allow: true}

		require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator {
			return validator
		}))
		require.Same(t, validator, p.Validator())

		require.Error(t, p.SetValidatorType(42))
		assert.Same(t, validator, p.Validator())
	})

	t.Run("reassignment clears the cached instance", func(t *testing.T) {
		p := membership.NewPolicy()
		first := &stubValidator{allow: true}
		second := &stubValidator{allow: false}

		require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator { return first }))
		require.Same(t, first, p.Validator())

		require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator { return second }))
		assert.Same(t, second, p.Validator())
	})

	t.Run("nil clears factory and cache", func(t *testing.T) {
		p := membership.NewPolicy()
		require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator {
			return &stubValidator{}
		}))
		require.NotNil(t, p.Validator())

		require.NoError(t, p.SetValidatorType(nil))
		assert.Nil(t, p.Validator())
	})
}

func TestPolicyValidatorMemoization(t *testing.T) {
	p := membership.NewRequiredPolicy("orders", "delete")

	var constructions int32
	require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator {
		atomic.AddInt32(&constructions, 1)
		return &stubValidator{allow: true}
	}))

	const callers = 32
	results := make([]membership.CredentialValidator, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)

	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i] = p.Validator()
		}(i)
	}

	start.Done()
	done.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&constructions))
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	identity := testIdentity{id: "42", username: "alice", namespace: "acme"}

	t.Run("disabled admits anonymous callers", func(t *testing.T) {
		p := membership.NewDisabledPolicy(true)
		assert.NoError(t, membership.Authorize(ctx, nil, p))
	})

	t.Run("identity mode requires an identity", func(t *testing.T) {
		p := membership.NewPolicy()
		assert.ErrorIs(t, membership.Authorize(ctx, nil, p), membership.ErrUnauthenticated)
		assert.NoError(t, membership.Authorize(ctx, identity, p))
	})

	t.Run("nil policy behaves like identity mode", func(t *testing.T) {
		assert.ErrorIs(t, membership.Authorize(ctx, nil, nil), membership.ErrUnauthenticated)
		assert.NoError(t, membership.Authorize(ctx, identity, nil))
	})

	t.Run("required runs the validator", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders", "delete")
		require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator {
			return &stubValidator{allow: false}
		}))

		assert.ErrorIs(t, membership.Authorize(ctx, identity, p), membership.ErrNotAuthorized)

		require.NoError(t, p.SetValidatorType(func() membership.CredentialValidator {
			return &stubValidator{allow: true}
		}))
		assert.NoError(t, membership.Authorize(ctx, identity, p))
	})

	t.Run("required without validator falls back to identity check", func(t *testing.T) {
		p := membership.NewRequiredPolicy("orders", "delete")
		assert.ErrorIs(t, membership.Authorize(ctx, nil, p), membership.ErrUnauthenticated)
		assert.NoError(t, membership.Authorize(ctx, identity, p))
	})
}

func TestPolicyRegistry(t *testing.T) {
	ctx := context.Background()
	identity := testIdentity{id: "42", username: "alice", namespace: "acme"}

	registry := membership.NewPolicyRegistry()
	registry.Register("orders.delete", membership.NewRequiredPolicy("orders", "delete"))
	registry.Register("status.ping", membership.NewDisabledPolicy(true))

	t.Run("lookup returns the bound policy", func(t *testing.T) {
		p := registry.Lookup("orders.delete")
		require.NotNil(t, p)
		assert.Equal(t, "orders", p.SchemaID())
		assert.Nil(t, registry.Lookup("unknown.action"))
	})

	t.Run("authorize consults the bound policy", func(t *testing.T) {
		assert.NoError(t, registry.Authorize(ctx, nil, "status.ping"))
		assert.ErrorIs(t, registry.Authorize(ctx, nil, "orders.delete"), membership.ErrUnauthenticated)
		assert.NoError(t, registry.Authorize(ctx, identity, "orders.delete"))
	})

	t.Run("unregistered actions default to identity check", func(t *testing.T) {
		assert.ErrorIs(t, registry.Authorize(ctx, nil, "unbound"), membership.ErrUnauthenticated)
		assert.NoError(t, registry.Authorize(ctx, identity, "unbound"))
	})

	t.Run("deregister removes the binding", func(t *testing.T) {
		registry.Deregister("status.ping")
		assert.Nil(t, registry.Lookup("status.ping"))
	})
}
