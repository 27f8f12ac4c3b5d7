package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fired(ch <-chan time.Time) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestFakeTimer(t *testing.T) {
	c := Fake(start)
	tm := c.NewTimer(10 * time.Second)

	c.Advance(9 * time.Second)
	assert.False(t, fired(tm.C))

	c.Advance(time.Second)
	assert.True(t, fired(tm.C))
	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, start.Add(10*time.Second), c.Now())
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(start)
	tm := c.NewTimer(time.Second)

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired(tm.C))
}

func TestFakeTimerNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(start)
	assert.True(t, fired(c.After(0)))
}

func TestFakeTicker(t *testing.T) {
	c := Fake(start)
	tk := c.NewTicker(5 * time.Second)
	defer tk.Stop()

	c.Advance(5 * time.Second)
	assert.True(t, fired(tk.C))
	assert.False(t, fired(tk.C))

	c.Advance(5 * time.Second)
	assert.True(t, fired(tk.C))
	assert.Equal(t, 1, c.PendingCount())

	tk.Stop()
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeTickerPanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { Fake(start).NewTicker(0) })
}

func TestWaitForTimers(t *testing.T) {
	c := Fake(start)
	done := make(chan struct{})
	go func() {
		c.WaitForTimers(2)
		close(done)
	}()

	c.NewTimer(time.Second)
	c.NewTicker(time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForTimers did not return")
	}
}
