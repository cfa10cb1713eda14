package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFullQuotaWithoutRecord(t *testing.T) {
	tr := NewTracker(100)

	assert.True(t, tr.HasRemaining(1))
	assert.Equal(t, 100, tr.Remaining(1))
}

func TestConsumptionAccumulates(t *testing.T) {
	tr := NewTracker(100)
	tr.now = fixed(time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local))

	tr.AddConsumed(1, 30)
	tr.AddConsumed(1, 30)
	assert.Equal(t, 40, tr.Remaining(1))
	assert.True(t, tr.HasRemaining(1))

	tr.AddConsumed(1, 50)
	assert.Equal(t, 0, tr.Remaining(1))
	assert.False(t, tr.HasRemaining(1))
}

func TestDayRolloverResetsCounter(t *testing.T) {
	tr := NewTracker(100)
	day := time.Date(2024, 3, 15, 23, 0, 0, 0, time.Local)
	tr.now = fixed(day)

	tr.AddConsumed(1, 100)
	assert.False(t, tr.HasRemaining(1))

	tr.now = fixed(day.AddDate(0, 0, 1))
	assert.True(t, tr.HasRemaining(1))
	assert.Equal(t, 100, tr.Remaining(1))

	// Consumption after rollover starts from zero.
	tr.AddConsumed(1, 10)
	assert.Equal(t, 90, tr.Remaining(1))
}

func TestRolloverOnWrite(t *testing.T) {
	tr := NewTracker(100)
	day := time.Date(2024, 3, 15, 12, 0, 0, 0, time.Local)
	tr.now = fixed(day)
	tr.AddConsumed(1, 80)

	tr.now = fixed(day.AddDate(0, 0, 2))
	tr.AddConsumed(1, 5)
	assert.Equal(t, 95, tr.Remaining(1))
}

func TestUsersTrackedIndependently(t *testing.T) {
	tr := NewTracker(50)
	tr.now = fixed(time.Date(2024, 3, 15, 12, 0, 0, 0, time.Local))

	tr.AddConsumed(1, 50)
	assert.False(t, tr.HasRemaining(1))
	assert.True(t, tr.HasRemaining(2))
	assert.Equal(t, 50, tr.Remaining(2))
}
