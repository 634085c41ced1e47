package membership

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UserNotFound is the sentinel ForgetPassword returns for unknown
// identities, mirroring the "not found is not an error" contract of the
// recovery flow.
const UserNotFound int64 = -1

// VerifyPassword is the login-path credential check. Suspended accounts fail
// with ErrAccountSuspended regardless of password correctness; a correct but
// expired password fails with ErrPasswordExpired so the caller can force a
// change flow; a plain mismatch is (false, nil) and feeds the lockout
// counter.
func (p *UserProvider) VerifyPassword(ctx context.Context, id int64, password string) (bool, error) {
	unlock := p.locks.lock(id)
	defer unlock()

	user, err := p.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	if err := p.ensureActive(ctx, user); err != nil {
		p.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			UserID:    user.ID,
			Namespace: user.Namespace,
			Metadata:  map[string]any{"reason": "suspended"},
		})
		return false, err
	}

	if !p.passwords.Verify(user.PasswordDigest, password) {
		p.registerFailure(ctx, user)
		return false, nil
	}

	p.clearFailures(ctx, user)

	if user.PasswordExpired(p.now()) {
		return false, ErrPasswordExpired
	}

	return true, nil
}

// ChangePassword replaces the user's password after verifying the current
// one. A wrong current password returns (false, nil) without touching the
// stored digest; a correct one enforces the minimum length, stores the new
// digest, clears the first-login flag and the expiry, and zeroes the lockout
// counters. ChangePassword is the recovery path for an expired password, so
// expiry is not checked here.
func (p *UserProvider) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) (bool, error) {
	unlock := p.locks.lock(id)
	defer unlock()

	user, err := p.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	if err := p.ensureActive(ctx, user); err != nil {
		return false, err
	}

	if !p.passwords.Verify(user.PasswordDigest, oldPassword) {
		p.registerFailure(ctx, user)
		return false, nil
	}

	user.EnsurePasswordDefaults()
	if len(newPassword) < user.MinPasswordLength {
		p.clearFailures(ctx, user)
		return false, ErrPasswordTooShort.WithMetadata(map[string]any{
			"min_length": user.MinPasswordLength,
		})
	}

	digest, err := p.passwords.Digest(newPassword)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to digest password")
	}

	user.PasswordDigest = digest
	user.ChangePasswordOnFirstLogin = false
	user.PasswordExpiresAt = nil
	user.InvalidAttempts = 0
	user.LastInvalidAttemptAt = nil

	if err := p.store.Update(ctx, user); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password change")
	}

	p.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    user.ID,
		Namespace: user.Namespace,
	})

	return true, nil
}

// ForgetPassword starts the two-phase recovery flow: it binds the digest of
// the given secret to the user behind identity/namespace and returns the
// user id, or UserNotFound (-1) when the identity is unknown. Reissuing
// supersedes any live ticket for the user. The optional timeout overrides
// the provider default of 60 minutes.
func (p *UserProvider) ForgetPassword(ctx context.Context, identity, namespace, secret string, timeout ...time.Duration) (int64, error) {
	if strings.TrimSpace(secret) == "" {
		return UserNotFound, ErrSecretRequired
	}

	user, err := p.GetUserByIdentity(ctx, identity, namespace)
	if err != nil {
		return UserNotFound, err
	}
	if user == nil {
		return UserNotFound, nil
	}

	digest, err := p.secrets.Digest(secret)
	if err != nil {
		return UserNotFound, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to digest recovery secret")
	}

	ttl := p.ticketTimeout
	if len(timeout) > 0 && timeout[0] > 0 {
		ttl = timeout[0]
	}

	now := p.now()
	p.tickets.Store(user.ID, ResetTicket{
		UserID:       user.ID,
		SecretDigest: digest,
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
	})

	p.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordForgot,
		UserID:    user.ID,
		Namespace: user.Namespace,
	})

	return user.ID, nil
}

// ResetPasswordByDigest validates a precomputed secret digest (typically
// carried in a recovery URL) against the user's live ticket. An empty
// newPassword performs verification only and mutates nothing; otherwise a
// match overwrites the password, consumes the ticket, and clears the lockout
// counters. A missing, expired, or mismatched ticket is (false, nil).
func (p *UserProvider) ResetPasswordByDigest(ctx context.Context, id int64, secretDigest, newPassword string) (bool, error) {
	unlock := p.locks.lock(id)
	defer unlock()

	user, err := p.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	if err := p.ensureActive(ctx, user); err != nil {
		return false, err
	}

	ticket, ok := p.liveTicket(user.ID)
	if !ok {
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(ticket.SecretDigest), []byte(secretDigest)) != 1 {
		return false, nil
	}

	return p.finalizeReset(ctx, user, newPassword)
}

// ResetPassword validates a plaintext recovery secret for the user behind
// identity/namespace. Contract matches ResetPasswordByDigest.
func (p *UserProvider) ResetPassword(ctx context.Context, identity, namespace, secret, newPassword string) (bool, error) {
	user, err := p.GetUserByIdentity(ctx, identity, namespace)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	unlock := p.locks.lock(user.ID)
	defer unlock()

	// reload under the lock so the check sees the latest committed state
	user, err = p.GetUser(ctx, user.ID)
	if err != nil || user == nil {
		return false, err
	}

	if err := p.ensureActive(ctx, user); err != nil {
		return false, err
	}

	ticket, ok := p.liveTicket(user.ID)
	if !ok {
		return false, nil
	}

	if !p.secrets.Verify(ticket.SecretDigest, secret) {
		return false, nil
	}

	return p.finalizeReset(ctx, user, newPassword)
}

// ResetPasswordByAnswers validates a full set of security-question answers,
// position-for-position against the stored answer digests. All answers must
// match; a user without configured questions always fails. Contract
// otherwise matches ResetPasswordByDigest.
func (p *UserProvider) ResetPasswordByAnswers(ctx context.Context, identity, namespace string, answers []string, newPassword string) (bool, error) {
	user, err := p.GetUserByIdentity(ctx, identity, namespace)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	unlock := p.locks.lock(user.ID)
	defer unlock()

	user, err = p.GetUser(ctx, user.ID)
	if err != nil || user == nil {
		return false, err
	}

	if err := p.ensureActive(ctx, user); err != nil {
		return false, err
	}

	if len(user.PasswordAnswerDigests) == 0 || len(answers) != len(user.PasswordAnswerDigests) {
		return false, nil
	}

	for i, digest := range user.PasswordAnswerDigests {
		if !p.passwords.Verify(digest, answers[i]) {
			return false, nil
		}
	}

	return p.finalizeReset(ctx, user, newPassword)
}

// GetPasswordQuestions returns the user's security question prompts, never
// the answer digests. Nil when the user does not exist.
func (p *UserProvider) GetPasswordQuestions(ctx context.Context, id int64) ([]string, error) {
	user, err := p.GetUser(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}
	return append([]string(nil), user.PasswordQuestions...), nil
}

// GetPasswordQuestionsByIdentity is GetPasswordQuestions keyed by
// identity/namespace.
func (p *UserProvider) GetPasswordQuestionsByIdentity(ctx context.Context, identity, namespace string) ([]string, error) {
	user, err := p.GetUserByIdentity(ctx, identity, namespace)
	if err != nil || user == nil {
		return nil, err
	}
	return append([]string(nil), user.PasswordQuestions...), nil
}

// SetPasswordQuestionsAndAnswers overwrites both ordered sequences together
// after verifying the current password. Mismatched lengths fail with
// ErrQuestionAnswerMismatch before anything is checked or stored; a wrong
// password is (false, nil) and feeds the lockout counter.
func (p *UserProvider) SetPasswordQuestionsAndAnswers(ctx context.Context, id int64, password string, questions, answers []string) (bool, error) {
	if len(questions) != len(answers) {
		return false, ErrQuestionAnswerMismatch.WithMetadata(map[string]any{
			"questions": len(questions),
			"answers":   len(answers),
		})
	}

	unlock := p.locks.lock(id)
	defer unlock()

	user, err := p.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	if err := p.ensureActive(ctx, user); err != nil {
		return false, err
	}

	if !p.passwords.Verify(user.PasswordDigest, password) {
		p.registerFailure(ctx, user)
		return false, nil
	}

	digests := make([]string, len(answers))
	for i, answer := range answers {
		digest, err := p.passwords.Digest(answer)
		if err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to digest security answer")
		}
		digests[i] = digest
	}

	user.PasswordQuestions = append([]string(nil), questions...)
	user.PasswordAnswerDigests = digests
	user.InvalidAttempts = 0
	user.LastInvalidAttemptAt = nil

	if err := p.store.Update(ctx, user); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist security questions")
	}

	return true, nil
}

// SetPasswordOptions overwrites the user's password policy fields. It does
// not retroactively enforce compliance on the current password or session.
func (p *UserProvider) SetPasswordOptions(ctx context.Context, id int64, opts PasswordOptions) (bool, error) {
	return p.mutate(ctx, id, func(u *User) {
		u.ChangePasswordOnFirstLogin = opts.ChangePasswordOnFirstLogin
		u.MaxInvalidAttempts = opts.MaxInvalidAttempts
		u.MinPasswordLength = opts.MinPasswordLength
		u.AttemptWindow = opts.AttemptWindow
		u.PasswordExpiresAt = opts.PasswordExpiresAt
		u.EnsurePasswordDefaults()
	})
}

// finalizeReset completes a reset whose credential already matched. The
// caller holds the user's lock.
func (p *UserProvider) finalizeReset(ctx context.Context, user *User, newPassword string) (bool, error) {
	if newPassword == "" {
		// verification only, nothing is consumed or mutated
		return true, nil
	}

	user.EnsurePasswordDefaults()
	if len(newPassword) < user.MinPasswordLength {
		return false, ErrPasswordTooShort.WithMetadata(map[string]any{
			"min_length": user.MinPasswordLength,
		})
	}

	digest, err := p.passwords.Digest(newPassword)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to digest password")
	}

	user.PasswordDigest = digest
	user.InvalidAttempts = 0
	user.LastInvalidAttemptAt = nil

	if err := p.store.Update(ctx, user); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password reset")
	}

	p.tickets.Delete(user.ID)

	p.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		UserID:    user.ID,
		Namespace: user.Namespace,
	})

	return true, nil
}

// liveTicket returns the user's reset ticket when one exists and has not
// expired. Expired tickets are evicted on access.
func (p *UserProvider) liveTicket(id int64) (ResetTicket, bool) {
	ticket, ok := p.tickets.Load(id)
	if !ok {
		return ResetTicket{}, false
	}
	if ticket.Expired(p.now()) {
		p.tickets.Delete(id)
		return ResetTicket{}, false
	}
	return ticket, true
}

// ensureActive enforces the suspended-accounts-fail-everything rule. When
// auto-unlock is enabled and the suspension came from the lockout algorithm,
// an elapsed attempt window clears the suspension in place and persists it.
// The caller holds the user's lock.
func (p *UserProvider) ensureActive(ctx context.Context, user *User) error {
	user.EnsurePasswordDefaults()

	if !user.Suspended {
		return nil
	}

	lockedOut := user.InvalidAttempts >= user.MaxInvalidAttempts && user.LastInvalidAttemptAt != nil
	if p.autoUnlock && lockedOut && user.AttemptWindow > 0 &&
		p.now().Sub(*user.LastInvalidAttemptAt) > user.AttemptWindow {
		user.Suspended = false
		user.SuspendedAt = nil
		user.InvalidAttempts = 0
		user.LastInvalidAttemptAt = nil

		if err := p.store.Update(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist lockout expiry")
		}

		p.record(ctx, ActivityEvent{
			EventType: ActivityEventUserReinstated,
			UserID:    user.ID,
			Namespace: user.Namespace,
			Metadata:  map[string]any{"reason": "attempt_window_elapsed"},
		})
		return nil
	}

	return ErrAccountSuspended
}

// registerFailure records a credential mismatch: it bumps the counter,
// stamps the attempt time, and suspends the account once the counter reaches
// the user's threshold. A counter whose window already elapsed restarts from
// zero. The caller holds the user's lock.
func (p *UserProvider) registerFailure(ctx context.Context, user *User) {
	now := p.now()
	user.EnsurePasswordDefaults()

	if user.AttemptWindow > 0 && user.LastInvalidAttemptAt != nil &&
		now.Sub(*user.LastInvalidAttemptAt) > user.AttemptWindow {
		user.InvalidAttempts = 0
	}

	user.InvalidAttempts++
	user.LastInvalidAttemptAt = &now

	locked := user.InvalidAttempts >= user.MaxInvalidAttempts && !user.Suspended
	if locked {
		user.Suspended = true
		user.SuspendedAt = &now
	}

	if err := p.store.Update(ctx, user); err != nil {
		p.logger.Error("failed to persist invalid attempt for user %d: %v", user.ID, err)
		return
	}

	p.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    user.ID,
		Namespace: user.Namespace,
		Metadata:  map[string]any{"attempts": user.InvalidAttempts},
	})

	if locked {
		p.record(ctx, ActivityEvent{
			EventType: ActivityEventUserLocked,
			UserID:    user.ID,
			Namespace: user.Namespace,
			Metadata:  map[string]any{"attempts": user.InvalidAttempts},
		})
	}
}

// clearFailures resets the lockout counters after a successful credential
// match. The caller holds the user's lock.
func (p *UserProvider) clearFailures(ctx context.Context, user *User) {
	if user.InvalidAttempts == 0 && user.LastInvalidAttemptAt == nil {
		return
	}

	user.InvalidAttempts = 0
	user.LastInvalidAttemptAt = nil

	if err := p.store.Update(ctx, user); err != nil {
		p.logger.Error("failed to reset invalid attempts for user %d: %v", user.ID, err)
	}
}
