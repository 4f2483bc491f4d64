package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := New(time.Unix(0, 0))
	var order []int
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })

	c.Advance(2500 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeStopPreventsFiring(t *testing.T) {
	c := New(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	require.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop reports already stopped")

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeNowInsideCallbackIsDeadline(t *testing.T) {
	start := time.Unix(100, 0)
	c := New(start)
	var seen time.Time
	c.AfterFunc(time.Second, func() { seen = c.Now() })

	c.Advance(5 * time.Second)
	assert.Equal(t, start.Add(time.Second), seen)
	assert.Equal(t, start.Add(5*time.Second), c.Now())
}

func TestFakeRearmFromCallback(t *testing.T) {
	c := New(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3 * time.Second)
	assert.Equal(t, 3, count)
}

func TestFakeAfterDelivers(t *testing.T) {
	c := New(time.Unix(0, 0))
	ch := c.After(time.Second)
	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, time.Unix(1, 0), got)
	default:
		t.Fatal("After channel did not fire")
	}
}
