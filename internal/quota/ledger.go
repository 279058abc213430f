// Package quota tracks rolling daily and lifetime spend against the
// limits of a user's permission. It is pure bookkeeping: the ledger
// never initiates a spend, it only admits or rejects one.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PermissionSource exposes the two things the ledger needs from the
// permission registry: the current limits and a way to move the
// lifetime counter forward. Keeping this an interface avoids a hard
// dependency in either direction.
type PermissionSource interface {
	SpendLimits(ctx context.Context, user string) (daily, total, spent int64, err error)
	AddSpent(ctx context.Context, user string, amount int64) error
}

// ExceededError reports a spend that would breach the daily or
// lifetime bound. It is a business-rule rejection, not a system fault.
type ExceededError struct {
	Requested int64
	Available int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: requested %d, available %d", e.Requested, e.Available)
}

type dayKey struct {
	user string
	date string // UTC calendar day, yyyy-mm-dd
}

// DayRecord accumulates one user's spend for one UTC calendar day.
// Records are created lazily on first spend; the absence of a record
// means zero spent, so no daily reset job exists.
type DayRecord struct {
	User  string
	Date  string
	Spent int64
}

// Ledger enforces daily and lifetime spend limits. The daily records
// live here; the lifetime counter lives on the permission and is moved
// through the PermissionSource.
type Ledger struct {
	mu    sync.Mutex
	perms PermissionSource
	days  map[dayKey]*DayRecord
}

func NewLedger(perms PermissionSource) *Ledger {
	return &Ledger{
		perms: perms,
		days:  make(map[dayKey]*DayRecord),
	}
}

// DateKey returns the UTC calendar day for a timestamp.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// DailySpent returns the amount spent by user during the UTC day of
// now.
func (l *Ledger) DailySpent(user string, now time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.days[dayKey{user, DateKey(now)}]; ok {
		return rec.Spent
	}
	return 0
}

// AvailableToday returns how much of the daily limit remains for the
// UTC day of now, clamped to zero.
func (l *Ledger) AvailableToday(ctx context.Context, user string, now time.Time) (int64, error) {
	daily, _, _, err := l.perms.SpendLimits(ctx, user)
	if err != nil {
		return 0, err
	}
	return clamp(daily - l.DailySpent(user, now)), nil
}

// AvailableTotal returns how much of the lifetime limit remains,
// clamped to zero.
func (l *Ledger) AvailableTotal(ctx context.Context, user string) (int64, error) {
	_, total, spent, err := l.perms.SpendLimits(ctx, user)
	if err != nil {
		return 0, err
	}
	return clamp(total - spent), nil
}

// ReserveAndCommit admits a spend against both bounds and commits it in
// one indivisible step: the day record and the lifetime counter move
// together or not at all.
func (l *Ledger) ReserveAndCommit(ctx context.Context, user string, amount int64, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	daily, total, spent, err := l.perms.SpendLimits(ctx, user)
	if err != nil {
		return err
	}

	key := dayKey{user, DateKey(now)}
	var daySpent int64
	if rec, ok := l.days[key]; ok {
		daySpent = rec.Spent
	}

	availToday := clamp(daily - daySpent)
	availTotal := clamp(total - spent)
	available := availToday
	if availTotal < available {
		available = availTotal
	}
	if amount > available {
		return &ExceededError{Requested: amount, Available: available}
	}

	if err := l.perms.AddSpent(ctx, user, amount); err != nil {
		return err
	}
	rec, ok := l.days[key]
	if !ok {
		rec = &DayRecord{User: user, Date: key.date}
		l.days[key] = rec
	}
	rec.Spent += amount
	return nil
}

// Restore seeds a day record during startup replay of the execution
// record log. It performs no limit checks; the log is already the
// committed truth.
func (l *Ledger) Restore(user string, ts time.Time, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := dayKey{user, DateKey(ts)}
	rec, ok := l.days[key]
	if !ok {
		rec = &DayRecord{User: user, Date: key.date}
		l.days[key] = rec
	}
	rec.Spent += amount
}
