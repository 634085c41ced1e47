package membership

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString rejects empty secrets before they reach a digester.
var ErrNoEmptyString = errors.New("secret must not be an empty string")

// BcryptDigester digests passwords and security answers with bcrypt. The
// produced digests are salted and non-deterministic, so they can only be
// checked through Verify.
type BcryptDigester struct {
	Cost int
}

func (d BcryptDigester) cost() int {
	if d.Cost <= 0 {
		return bcrypt.DefaultCost
	}
	return d.Cost
}

func (d BcryptDigester) Digest(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), d.cost())
	return string(h), err
}

func (d BcryptDigester) Verify(digest, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// HMACDigester digests recovery secrets with HMAC-SHA256. Unlike bcrypt the
// output is deterministic, which the reset-by-digest flow relies on: the web
// layer computes the digest of the secret it received and the provider
// compares it against the stored ticket digest.
type HMACDigester struct {
	Key []byte
}

func (d HMACDigester) Digest(secret string) (string, error) {
	if secret == "" {
		return "", ErrNoEmptyString
	}

	mac := hmac.New(sha256.New, d.Key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (d HMACDigester) Verify(digest, secret string) bool {
	computed, err := d.Digest(secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// DigestSecret is a helper for web callers that build reset-by-digest URLs
// out of band; it must use the same key the provider was configured with.
func DigestSecret(key []byte, secret string) (string, error) {
	return HMACDigester{Key: key}.Digest(secret)
}

var (
	_ Digester = BcryptDigester{}
	_ Digester = HMACDigester{}
)
