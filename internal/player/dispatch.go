// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "github.com/ManuGH/liveplay/internal/bus"

// emit queues a notification. Must hold c.mu.
func emit[T any](c *Controller, t bus.Topic[T], v T) {
	events := c.events
	c.outbox = append(c.outbox, func() { bus.Publish(events, t, v) })
}

// unlockAndDispatch releases c.mu and publishes queued notifications. Only
// one goroutine dispatches at a time; events queued by a listener (or by
// another goroutine meanwhile) are delivered by the active dispatcher in
// queue order.
func (c *Controller) unlockAndDispatch() {
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.outbox) > 0 {
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

// unlockAndHandOff releases c.mu and leaves queued notifications to the
// dispatch goroutine. Backend goroutines use it: a listener that stops the
// session waits for those goroutines to exit.
func (c *Controller) unlockAndHandOff() {
	pending := len(c.outbox) > 0
	c.mu.Unlock()
	if !pending {
		return
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// dispatchLoop publishes handed-off notifications until Destroy. Destroy
// does not wait for it since a listener running here may call Destroy.
func (c *Controller) dispatchLoop() {
	for {
		select {
		case <-c.kick:
			c.mu.Lock()
			c.unlockAndDispatch()
		case <-c.done:
			return
		}
	}
}
