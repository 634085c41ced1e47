package membership

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidValidatorType = "INVALID_VALIDATOR_TYPE"
	textCodeIdentityRequired     = "IDENTITY_REQUIRED"
	textCodeSecretRequired       = "SECRET_REQUIRED"
	textCodeAccountSuspended     = "ACCOUNT_SUSPENDED"
	textCodePasswordExpired      = "PASSWORD_EXPIRED"
	textCodePasswordTooShort     = "PASSWORD_TOO_SHORT"
	textCodeQuestionMismatch     = "QUESTION_ANSWER_MISMATCH"
	textCodeUnauthenticated      = "UNAUTHENTICATED"
	textCodeNotAuthorized        = "NOT_AUTHORIZED"
)

// ErrInvalidValidatorType is returned by Policy.SetValidatorType when the
// supplied value cannot produce a CredentialValidator.
var ErrInvalidValidatorType = goerrors.New("validator type does not implement CredentialValidator", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidValidatorType).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityRequired is returned when an identity argument is empty or all
// whitespace.
var ErrIdentityRequired = goerrors.New("identity must not be empty", goerrors.CategoryBadInput).
	WithTextCode(textCodeIdentityRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrSecretRequired is returned by ForgetPassword when the recovery secret is
// empty or all whitespace.
var ErrSecretRequired = goerrors.New("secret must not be empty", goerrors.CategoryBadInput).
	WithTextCode(textCodeSecretRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountSuspended signals that a credential check was refused because the
// account is suspended, regardless of whether the credential was correct.
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountSuspended).
	WithCode(goerrors.CodeForbidden)

// ErrPasswordExpired signals that the password matched but is past its
// expiry; callers should force a change-password flow.
var ErrPasswordExpired = goerrors.New("password has expired", goerrors.CategoryAuth).
	WithTextCode(textCodePasswordExpired).
	WithCode(goerrors.CodeForbidden)

// ErrPasswordTooShort is returned when a new password violates the user's
// minimum length policy.
var ErrPasswordTooShort = goerrors.New("password is shorter than the minimum required length", goerrors.CategoryValidation).
	WithTextCode(textCodePasswordTooShort).
	WithCode(goerrors.CodeBadRequest)

// ErrQuestionAnswerMismatch is returned when the question and answer
// sequences passed to SetPasswordQuestionsAndAnswers differ in length.
var ErrQuestionAnswerMismatch = goerrors.New("questions and answers must have the same length", goerrors.CategoryBadInput).
	WithTextCode(textCodeQuestionMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthenticated is returned by Authorize when a policy demands an
// authenticated identity and none is present.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(textCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthorized is returned by Authorize when the policy's validator
// denies the schema/action pair for the current identity.
var ErrNotAuthorized = goerrors.New("identity is not authorized for this action", goerrors.CategoryAuthz).
	WithTextCode(textCodeNotAuthorized).
	WithCode(goerrors.CodeForbidden)
