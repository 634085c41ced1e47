// Package membership provides the credential and authorization core of a
// user-membership service: declarative authorization policies with lazily
// resolved credential validators, and a UserProvider that owns the password
// lifecycle (change, forgotten-password recovery, security questions,
// lockout, expiry) over an external UserStore.
//
// Authorization policies:
//   - A Policy describes whether an action is open, requires any
//     authenticated identity, or requires a schema/action scoped check.
//     Policies resolve their CredentialValidator lazily and memoize a single
//     instance for their lifetime; a PolicyRegistry maps action keys to
//     policies so dispatchers can gate commands without reflection.
//
// Credential lifecycle:
//   - UserProvider serializes all mutations to a single user record, so
//     concurrent login attempts cannot lose lockout-counter updates. Wrong
//     credentials are reported as boolean results, never as errors, while
//     suspended accounts and expired passwords surface as distinct error
//     values so callers can branch into the right recovery flow.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter describing approvals,
//     suspensions, lockouts, and password events. Sink errors are logged and
//     never block the operation that produced them.
package membership
