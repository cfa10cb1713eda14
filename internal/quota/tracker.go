package quota

import (
	"sync"
	"time"
)

type record struct {
	day    time.Time // local midnight
	tokens int
}

// Tracker counts per-user daily token consumption against a fixed
// limit. Records roll over lazily: any read or write that touches a
// stale record resets its counter first. There is no background sweep.
type Tracker struct {
	mu      sync.Mutex
	limit   int
	now     func() time.Time
	records map[int64]record
}

func NewTracker(dailyLimit int) *Tracker {
	return &Tracker{
		limit:   dailyLimit,
		now:     time.Now,
		records: make(map[int64]record),
	}
}

// Limit returns the configured daily token limit.
func (t *Tracker) Limit() int { return t.limit }

func (t *Tracker) today() time.Time {
	y, m, d := t.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// HasRemaining reports whether the user may make another request
// today. A user with no record has the full quota available.
func (t *Tracker) HasRemaining(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[userID]
	if !ok {
		return true
	}
	today := t.today()
	if r.day.Before(today) {
		t.records[userID] = record{day: today}
		return true
	}
	return r.tokens < t.limit
}

// Remaining returns how many tokens the user may still spend today.
func (t *Tracker) Remaining(userID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[userID]
	if !ok {
		return t.limit
	}
	today := t.today()
	if r.day.Before(today) {
		t.records[userID] = record{day: today}
		return t.limit
	}
	if r.tokens >= t.limit {
		return 0
	}
	return t.limit - r.tokens
}

// AddConsumed records tokens spent by the user today. It never
// decrements.
func (t *Tracker) AddConsumed(userID int64, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.today()
	r, ok := t.records[userID]
	if !ok || r.day.Before(today) {
		t.records[userID] = record{day: today, tokens: tokens}
		return
	}
	r.tokens += tokens
	t.records[userID] = r
}
