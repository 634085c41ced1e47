package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sethvargo/go-envconfig"
)

// PasswordConfig carries the environment-tunable policy defaults applied to
// new users plus the reset-ticket validity.
type PasswordConfig struct {
	ChangePasswordOnFirstLogin bool          `env:"MEMBERSHIP_CHANGE_PASSWORD_ON_FIRST_LOGIN,default=false"`
	MaxInvalidAttempts         int           `env:"MEMBERSHIP_MAX_INVALID_ATTEMPTS,default=3"`
	MinPasswordLength          int           `env:"MEMBERSHIP_MIN_PASSWORD_LENGTH,default=6"`
	AttemptWindow              time.Duration `env:"MEMBERSHIP_ATTEMPT_WINDOW,default=0"`
	TicketTimeout              time.Duration `env:"MEMBERSHIP_TICKET_TIMEOUT,default=1h"`
}

// Options maps the config onto the PasswordOptions applied to new users.
func (c PasswordConfig) Options() PasswordOptions {
	return PasswordOptions{
		ChangePasswordOnFirstLogin: c.ChangePasswordOnFirstLogin,
		MaxInvalidAttempts:         c.MaxInvalidAttempts,
		MinPasswordLength:          c.MinPasswordLength,
		AttemptWindow:              c.AttemptWindow,
	}
}

// PasswordConfigFromEnv loads PasswordConfig from the process environment.
func PasswordConfigFromEnv(ctx context.Context) (PasswordConfig, error) {
	return passwordConfig(ctx, envconfig.OsLookuper())
}

// PasswordConfigFrom loads PasswordConfig from an explicit lookuper, which
// tests use with envconfig.MapLookuper.
func PasswordConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (PasswordConfig, error) {
	return passwordConfig(ctx, lookuper)
}

func passwordConfig(ctx context.Context, lookuper envconfig.Lookuper) (PasswordConfig, error) {
	var cfg PasswordConfig
	if err := envconfig.ProcessWith(ctx, &cfg, lookuper); err != nil {
		return PasswordConfig{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse membership env vars")
	}
	return cfg, nil
}
