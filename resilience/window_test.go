package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollingWindow_CountsAndFailureRate(t *testing.T) {
	w := NewRollingWindow(time.Hour)
	w.Record(true)
	w.Record(false)
	w.Record(false)
	w.Record(true)

	total, failures := w.Counts()
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, failures)
	assert.Equal(t, 0.5, w.FailureRate())
}

func TestRollingWindow_ConsecutiveFailureTail(t *testing.T) {
	w := NewRollingWindow(time.Hour)
	w.Record(true)
	w.Record(false)
	w.Record(false)
	w.Record(false)

	assert.Equal(t, 3, w.ConsecutiveFailureTail())

	w.Record(true)
	assert.Equal(t, 0, w.ConsecutiveFailureTail())
}

func TestRollingWindow_PurgesOutsideWindow(t *testing.T) {
	w := NewRollingWindow(5 * time.Millisecond)
	w.Record(false)
	w.Record(false)

	total, _ := w.Counts()
	assert.Equal(t, 2, total)

	time.Sleep(15 * time.Millisecond)

	total, failures := w.Counts()
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 0.0, w.FailureRate())
}

func TestRollingWindow_ZeroWindowNeverPurges(t *testing.T) {
	w := NewRollingWindow(0)
	for i := 0; i < 5; i++ {
		w.Record(false)
	}
	time.Sleep(5 * time.Millisecond)
	total, failures := w.Counts()
	assert.Equal(t, 5, total)
	assert.Equal(t, 5, failures)
}

func TestRollingWindow_Clear(t *testing.T) {
	w := NewRollingWindow(time.Hour)
	w.Record(true)
	w.Record(false)
	w.Clear()

	total, failures := w.Counts()
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 0, w.ConsecutiveFailureTail())
}

func TestRollingWindow_FailureRateEmptyWindowIsZero(t *testing.T) {
	w := NewRollingWindow(time.Hour)
	assert.Equal(t, 0.0, w.FailureRate())
}
