package graph

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAlreadyPopulated is returned when the canary user already exists.
	ErrAlreadyPopulated = errors.New("graph: store already populated")
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("graph: invalid config")
)

// CanaryUser is checked before population. Its presence means a previous
// run has already written users.
const CanaryUser = "user1"

const (
	DefaultBalanceDivisor = 3
	DefaultPostWindow     = 7 * 24 * time.Hour
)

// Config controls the size and shape of the generated data.
type Config struct {
	// Users is the number of generated users (U).
	Users int
	// Watches is the target number of users each user watches (W).
	Watches int
	// MutualPercent is the target share of mutual relationships (P), 0-100.
	// Zero also disables the self-balance adjustment.
	MutualPercent int
	// Posts is the number of initial posts per user.
	Posts int
	// PostWindow is how far back initial post timestamps may go.
	PostWindow time.Duration
	// BalanceDivisor scales the maximum self-balance adjustment.
	BalanceDivisor int
	// PasswordCost is the bcrypt cost used for generated passwords.
	PasswordCost int
}

func (c Config) withDefaults() Config {
	if c.PostWindow <= 0 {
		c.PostWindow = DefaultPostWindow
	}
	if c.BalanceDivisor <= 0 {
		c.BalanceDivisor = DefaultBalanceDivisor
	}
	if c.PasswordCost == 0 {
		c.PasswordCost = bcrypt.MinCost
	}
	return c
}

// Validate checks U > W >= 0, 0 <= P <= 100 and Posts >= 0.
func (c Config) Validate() error {
	switch {
	case c.Watches < 0:
		return fmt.Errorf("%w: watches must not be negative, got %d", ErrInvalidConfig, c.Watches)
	case c.Users <= c.Watches:
		return fmt.Errorf("%w: users (%d) must exceed watches (%d)", ErrInvalidConfig, c.Users, c.Watches)
	case c.MutualPercent < 0 || c.MutualPercent > 100:
		return fmt.Errorf("%w: mutual percent must be within 0-100, got %d", ErrInvalidConfig, c.MutualPercent)
	case c.Posts < 0:
		return fmt.Errorf("%w: posts must not be negative, got %d", ErrInvalidConfig, c.Posts)
	case c.PasswordCost != 0 && (c.PasswordCost < bcrypt.MinCost || c.PasswordCost > bcrypt.MaxCost):
		return fmt.Errorf("%w: password cost must be within %d-%d, got %d", ErrInvalidConfig, bcrypt.MinCost, bcrypt.MaxCost, c.PasswordCost)
	}
	cfg := c.withDefaults()
	if int64(c.Posts) > cfg.PostWindow.Milliseconds() {
		return fmt.Errorf("%w: post window %s is too short for %d posts", ErrInvalidConfig, cfg.PostWindow, c.Posts)
	}
	return nil
}

// SelfBalance returns how much the out-degree target of the i-th user
// (1-based) is lowered. Early users get the largest reduction because later
// users still add mutual watches to them; the reduction falls to zero as i
// approaches Users.
func SelfBalance(i int, c Config) int {
	if c.MutualPercent == 0 {
		return 0
	}
	divisor := c.BalanceDivisor
	if divisor <= 0 {
		divisor = DefaultBalanceDivisor
	}
	maxBalance := c.Watches * c.MutualPercent / divisor / 100
	return maxBalance - int(int64(i)*int64(maxBalance+1)/int64(c.Users+1))
}
