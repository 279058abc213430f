package permission

import "time"

// Permission is a user's top-level spending authorization: how much of
// the quote token an agent may spend per UTC day and in total, for how
// long, and at what price dip purchases are allowed. One permission per
// user; a new grant replaces the old one.
type Permission struct {
	User         string     `yaml:"user" json:"user"`
	Token        string     `yaml:"token" json:"token"`
	DailyLimit   int64      `yaml:"daily_limit" json:"dailyLimit"`
	TotalLimit   int64      `yaml:"total_limit" json:"totalLimit"`
	StartTime    time.Time  `yaml:"start_time" json:"startTime"`
	DurationDays int64      `yaml:"duration_days" json:"durationDays"`
	TargetDipBps int64      `yaml:"target_dip_bps" json:"targetDipBps"`
	Active       bool       `yaml:"active" json:"active"`
	TotalSpent   int64      `yaml:"total_spent" json:"totalSpent"`
	CreatedAt    time.Time  `yaml:"created_at" json:"createdAt"`
	RevokedAt    *time.Time `yaml:"revoked_at,omitempty" json:"revokedAt,omitempty"`
}

// ExpiresAt returns the instant the permission lapses on its own.
func (p *Permission) ExpiresAt() time.Time {
	return p.StartTime.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
}

// ActiveAt reports whether the permission is usable at now: the stored
// flag must be set and the duration must not have elapsed. Expiry is
// evaluated lazily; it is never written back.
func (p *Permission) ActiveAt(now time.Time) bool {
	return p.Active && now.Before(p.ExpiresAt())
}
