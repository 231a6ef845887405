package otp

import (
	"sync"
	"time"
)

// countdown drives Controller.OnTick on a fixed interval until the tick
// reports done or the countdown is cancelled. Every countdown has an owner;
// cancellation is deterministic so no ticker outlives its flow.
type countdown struct {
	stop sync.Once
	done chan struct{}
}

func startCountdown(interval time.Duration, tick func() bool) *countdown {
	c := &countdown{done: make(chan struct{})}
	go c.run(interval, tick)
	return c
}

func (c *countdown) run(interval time.Duration, tick func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if tick() {
				return
			}
		}
	}
}

func (c *countdown) cancel() {
	c.stop.Do(func() { close(c.done) })
}
