package delegation

import "time"

// Delegation is a bounded slice of a user's permission handed to an
// executor. At most one delegation is active per (user, executor) pair;
// issuing a new one overwrites the old.
type Delegation struct {
	User       string     `yaml:"user" json:"user"`
	Executor   string     `yaml:"executor" json:"executor"`
	DailyLimit int64      `yaml:"daily_limit" json:"dailyLimit"`
	Active     bool       `yaml:"active" json:"active"`
	CreatedAt  time.Time  `yaml:"created_at" json:"createdAt"`
	RevokedAt  *time.Time `yaml:"revoked_at,omitempty" json:"revokedAt,omitempty"`
}

// Slice computes a ratio of a parent daily limit in basis points.
// The demo flow hands 60% (6000 bps) of the daily limit to the
// execution agent, but the ratio is caller-configurable.
func Slice(parentDailyLimit, ratioBps int64) int64 {
	return parentDailyLimit * ratioBps / 10000
}
