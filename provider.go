package membership

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// UserProvider is the credential lifecycle manager. It owns every password
// state transition for the users held by its UserStore and serializes
// mutations per user so concurrent attempts cannot lose updates.
type UserProvider struct {
	store    UserStore
	logger   Logger
	activity ActivitySink

	passwords Digester
	secrets   Digester
	tickets   *xsync.MapOf[int64, ResetTicket]
	locks     *userLocks

	now           func() time.Time
	ticketTimeout time.Duration
	autoUnlock    bool
	defaults      PasswordOptions
}

// ProviderOption customizes UserProvider construction.
type ProviderOption func(*UserProvider)

// WithLogger overrides the provider's logger.
func WithLogger(l Logger) ProviderOption {
	return func(p *UserProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithActivitySink sets the sink that receives lifecycle events.
func WithActivitySink(sink ActivitySink) ProviderOption {
	return func(p *UserProvider) {
		p.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ProviderOption {
	return func(p *UserProvider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithPasswordDigester overrides the digester used for passwords and
// security answers.
func WithPasswordDigester(d Digester) ProviderOption {
	return func(p *UserProvider) {
		if d != nil {
			p.passwords = d
		}
	}
}

// WithSecretDigester overrides the digester used for recovery secrets. It
// must be deterministic for the reset-by-digest flow to work.
func WithSecretDigester(d Digester) ProviderOption {
	return func(p *UserProvider) {
		if d != nil {
			p.secrets = d
		}
	}
}

// WithTicketTimeout overrides the default validity of reset tickets.
func WithTicketTimeout(timeout time.Duration) ProviderOption {
	return func(p *UserProvider) {
		if timeout > 0 {
			p.ticketTimeout = timeout
		}
	}
}

// WithAutoUnlock controls whether a lockout clears on its own once the
// attempt window has elapsed past the last failure. Enabled by default;
// disable it to require an explicit Suspend(false) from an administrator.
func WithAutoUnlock(enabled bool) ProviderOption {
	return func(p *UserProvider) {
		p.autoUnlock = enabled
	}
}

// WithPasswordOptions sets the policy defaults applied to new users.
func WithPasswordOptions(opts PasswordOptions) ProviderOption {
	return func(p *UserProvider) {
		p.defaults = opts
	}
}

// NewUserProvider builds a provider over the given store. Defaults: bcrypt
// password digests, HMAC-SHA256 secret digests with an empty key, 60 minute
// ticket timeout, auto-unlock enabled.
func NewUserProvider(store UserStore, opts ...ProviderOption) *UserProvider {
	p := &UserProvider{
		store:         store,
		logger:        defLogger{},
		activity:      noopActivitySink{},
		passwords:     BcryptDigester{},
		secrets:       HMACDigester{},
		tickets:       xsync.NewMapOf[int64, ResetTicket](),
		locks:         newUserLocks(),
		now:           time.Now,
		ticketTimeout: DefaultTicketTimeout,
		autoUnlock:    true,
		defaults:      DefaultPasswordOptions(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// GetUser returns the user with the given id, or nil when none exists.
func (p *UserProvider) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := p.store.Find(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}
	return user, nil
}

// GetUserByIdentity resolves a username, email address, or phone number
// within a namespace. A blank identity is an error; an unknown one is nil.
func (p *UserProvider) GetUserByIdentity(ctx context.Context, identity, namespace string) (*User, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrIdentityRequired
	}

	user, err := p.store.FindByIdentity(ctx, identity, namespace)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user by identity")
	}
	return user, nil
}

// Exists reports whether a user with the given id exists.
func (p *UserProvider) Exists(ctx context.Context, id int64) (bool, error) {
	user, err := p.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// ExistsIdentity reports whether the identity exists within the namespace.
func (p *UserProvider) ExistsIdentity(ctx context.Context, identity, namespace string) (bool, error) {
	user, err := p.GetUserByIdentity(ctx, identity, namespace)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// GetUsers lists the users in a namespace, delegating paging to the store.
func (p *UserProvider) GetUsers(ctx context.Context, namespace string, paging Paging) ([]*User, error) {
	return p.store.List(ctx, namespace, paging)
}

// CreateUser validates and persists a new user, digesting the given
// password. An empty password leaves the account without a credential until
// a reset flow establishes one.
func (p *UserProvider) CreateUser(ctx context.Context, user *User, password string) error {
	if user == nil {
		return goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	if err := user.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user record")
	}

	p.applyPolicyDefaults(user)

	if password != "" {
		digest, err := p.passwords.Digest(password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to digest password")
		}
		user.PasswordDigest = digest
	}

	if err := p.store.Save(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return nil
}

// CreateUsers persists each record independently and returns the number that
// succeeded. The batch is best-effort, not transactional.
func (p *UserProvider) CreateUsers(ctx context.Context, users []*User) int {
	count := 0
	for _, user := range users {
		if err := p.CreateUser(ctx, user, ""); err != nil {
			p.logger.Warn("create user failed: %v", err)
			continue
		}
		count++
	}
	return count
}

// UpdateUsers updates each record independently and returns the number that
// succeeded.
func (p *UserProvider) UpdateUsers(ctx context.Context, users ...*User) int {
	count := 0
	for _, user := range users {
		if user == nil {
			continue
		}
		if err := p.updateUser(ctx, user); err != nil {
			p.logger.Warn("update user %d failed: %v", user.ID, err)
			continue
		}
		count++
	}
	return count
}

func (p *UserProvider) updateUser(ctx context.Context, user *User) error {
	unlock := p.locks.lock(user.ID)
	defer unlock()
	return p.store.Update(ctx, user)
}

// DeleteUsers removes the given users and returns the number deleted.
func (p *UserProvider) DeleteUsers(ctx context.Context, ids ...int64) int {
	if len(ids) == 0 {
		return 0
	}

	count, err := p.store.Delete(ctx, ids...)
	if err != nil {
		p.logger.Warn("delete users failed: %v", err)
	}

	for _, id := range ids {
		p.tickets.Delete(id)
	}

	return count
}

// SetAvatar updates the user's avatar reference.
func (p *UserProvider) SetAvatar(ctx context.Context, id int64, avatar string) (bool, error) {
	return p.mutate(ctx, id, func(u *User) { u.Avatar = avatar })
}

// SetEmail updates the user's email address.
func (p *UserProvider) SetEmail(ctx context.Context, id int64, email string) (bool, error) {
	return p.mutate(ctx, id, func(u *User) { u.Email = email })
}

// SetPhone updates the user's phone number.
func (p *UserProvider) SetPhone(ctx context.Context, id int64, phone string) (bool, error) {
	return p.mutate(ctx, id, func(u *User) { u.Phone = phone })
}

// SetFullName updates the user's display name.
func (p *UserProvider) SetFullName(ctx context.Context, id int64, fullName string) (bool, error) {
	return p.mutate(ctx, id, func(u *User) { u.FullName = fullName })
}

// SetDescription updates the user's description.
func (p *UserProvider) SetDescription(ctx context.Context, id int64, description string) (bool, error) {
	return p.mutate(ctx, id, func(u *User) { u.Description = description })
}

// SetPrincipalID updates the external principal mapped to the user.
func (p *UserProvider) SetPrincipalID(ctx context.Context, id int64, principalID string) (bool, error) {
	return p.mutate(ctx, id, func(u *User) { u.PrincipalID = principalID })
}

// Approve flips the approval flag. Re-approving an approved account is a
// no-op success.
func (p *UserProvider) Approve(ctx context.Context, id int64, approved bool) (bool, error) {
	changed := false
	ok, err := p.mutate(ctx, id, func(u *User) {
		if u.Approved == approved {
			return
		}
		changed = true
		u.Approved = approved
		if approved {
			now := p.now()
			u.ApprovedAt = &now
		} else {
			u.ApprovedAt = nil
		}
	})
	if err != nil || !ok {
		return ok, err
	}

	if changed && approved {
		p.record(ctx, ActivityEvent{EventType: ActivityEventUserApproved, UserID: id})
	}
	return true, nil
}

// Suspend flips the suspension flag. Suspending a suspended account is a
// no-op success. Unsuspending clears the lockout counters.
func (p *UserProvider) Suspend(ctx context.Context, id int64, suspended bool) (bool, error) {
	changed := false
	ok, err := p.mutate(ctx, id, func(u *User) {
		if u.Suspended == suspended {
			return
		}
		changed = true
		u.Suspended = suspended
		if suspended {
			now := p.now()
			u.SuspendedAt = &now
		} else {
			u.SuspendedAt = nil
			u.InvalidAttempts = 0
			u.LastInvalidAttemptAt = nil
		}
	})
	if err != nil || !ok {
		return ok, err
	}

	if changed {
		event := ActivityEventUserReinstated
		if suspended {
			event = ActivityEventUserSuspended
		}
		p.record(ctx, ActivityEvent{EventType: event, UserID: id})
	}
	return true, nil
}

// mutate loads the user under its lock, applies fn, and persists the result.
// Returns false when the user does not exist.
func (p *UserProvider) mutate(ctx context.Context, id int64, fn func(*User)) (bool, error) {
	unlock := p.locks.lock(id)
	defer unlock()

	user, err := p.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	fn(user)

	if err := p.store.Update(ctx, user); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}
	return true, nil
}

func (p *UserProvider) applyPolicyDefaults(user *User) {
	if user.MaxInvalidAttempts <= 0 {
		user.MaxInvalidAttempts = p.defaults.MaxInvalidAttempts
	}
	if user.MinPasswordLength <= 0 {
		user.MinPasswordLength = p.defaults.MinPasswordLength
	}
	if user.AttemptWindow == 0 {
		user.AttemptWindow = p.defaults.AttemptWindow
	}
	if user.PasswordExpiresAt == nil {
		user.PasswordExpiresAt = p.defaults.PasswordExpiresAt
	}
	if !user.ChangePasswordOnFirstLogin {
		user.ChangePasswordOnFirstLogin = p.defaults.ChangePasswordOnFirstLogin
	}
	user.EnsurePasswordDefaults()
}

func (p *UserProvider) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}

	if err := p.activity.Record(ctx, event); err != nil {
		p.logger.Warn("activity sink error: %v", err)
	}
}
