// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// =============================================================================
// ACTIVITY SOURCES
// =============================================================================

// ActivitySource delivers user-activity timestamps to subscribers.
// Implementations must invoke handlers without holding internal locks.
type ActivitySource interface {
	Subscribe(handler func(time.Time)) (cancel func())
}

// ActivityFeed is an ActivitySource fed by the presentation layer.
type ActivityFeed struct {
	mu       sync.Mutex
	handlers map[int]func(time.Time)
	nextID   int
}

// NewActivityFeed creates an empty feed.
func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{handlers: make(map[int]func(time.Time))}
}

// Subscribe implements ActivitySource.
func (f *ActivityFeed) Subscribe(handler func(time.Time)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.handlers[id] = handler
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

// Publish reports activity at now to every subscriber.
func (f *ActivityFeed) Publish(now time.Time) {
	f.mu.Lock()
	handlers := make([]func(time.Time), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(now)
	}
}

// Subscribers returns the number of registered handlers.
func (f *ActivityFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// =============================================================================
// DRIVER
// =============================================================================

// Driver runs the periodic evaluation for a Controller. The ticker goroutine
// and the activity subscription exist only while a session does: they start
// on EventSessionEstablished and stop on EventSessionExpired or
// EventLoggedOut.
type Driver struct {
	ctrl     *Controller
	clock    Clock
	interval time.Duration
	activity ActivitySource

	mu          sync.Mutex
	started     bool
	closed      bool
	stop        chan struct{}
	cancelFeed  func()
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewDriver creates a driver. A zero interval uses the controller's
// TickInterval; activity may be nil.
func NewDriver(ctrl *Controller, interval time.Duration, clock Clock, activity ActivitySource) *Driver {
	if interval <= 0 {
		interval = ctrl.Config().TickInterval
	}
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Driver{
		ctrl:     ctrl,
		clock:    clock,
		interval: interval,
		activity: activity,
	}
}

// Start attaches the driver to the controller. If a session already exists
// the loop starts right away.
func (d *Driver) Start() {
	d.mu.Lock()
	if d.started || d.closed {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	unsub := d.ctrl.Subscribe(d.onEvent)
	d.mu.Lock()
	d.unsubscribe = unsub
	d.mu.Unlock()
	if d.ctrl.State() != StateNoSession {
		d.startLoop()
	}
}

// Close detaches the driver and waits for the ticker goroutine to exit.
// Close must not be called from a controller listener.
func (d *Driver) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	unsub := d.unsubscribe
	d.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	d.stopLoop()
	d.wg.Wait()
}

// Running reports whether the ticker goroutine is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

func (d *Driver) onEvent(ev Event) {
	switch {
	case ev.Kind == EventSessionEstablished:
		d.startLoop()
	case ev.Kind.Ends():
		d.stopLoop()
	}
}

func (d *Driver) startLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.stop != nil {
		return
	}
	stop := make(chan struct{})
	d.stop = stop
	if d.activity != nil {
		d.cancelFeed = d.activity.Subscribe(d.ctrl.RecordActivity)
	}
	d.wg.Add(1)
	go d.loop(stop)
}

// stopLoop signals the goroutine without waiting for it, because it may be
// called from that goroutine's own Evaluate.
func (d *Driver) stopLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return
	}
	close(d.stop)
	d.stop = nil
	if d.cancelFeed != nil {
		d.cancelFeed()
		d.cancelFeed = nil
	}
}

func (d *Driver) loop(stop <-chan struct{}) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			d.ctrl.Evaluate(d.clock.Now())
		}
	}
}
