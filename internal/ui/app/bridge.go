// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neontrader/neon-tui/internal/session"
)

// DefaultBridgeBuffer is the event buffer used when none is given.
const DefaultBridgeBuffer = 64

// EventMsg wraps a controller event for the bubbletea loop.
type EventMsg struct {
	Event session.Event
}

// Bridge moves controller events onto the bubbletea loop. Listeners run on
// whichever goroutine caused the transition (the driver's ticker, a login
// command), so events are queued on a channel and read back by a command.
//
// Warning ticks are dropped when the buffer is full since the next tick
// carries a fresher countdown. Every other event is delivered.
type Bridge struct {
	ch    chan session.Event
	done  chan struct{}
	once  sync.Once
	unsub func()
}

// NewBridge subscribes to ctrl. A buffer of zero or less uses
// DefaultBridgeBuffer.
func NewBridge(ctrl *session.Controller, buffer int) *Bridge {
	if buffer <= 0 {
		buffer = DefaultBridgeBuffer
	}
	b := &Bridge{
		ch:   make(chan session.Event, buffer),
		done: make(chan struct{}),
	}
	b.unsub = ctrl.Subscribe(b.deliver)
	return b
}

func (b *Bridge) deliver(ev session.Event) {
	if ev.Kind == session.EventWarningTick {
		select {
		case b.ch <- ev:
		default:
		}
		return
	}
	select {
	case b.ch <- ev:
	case <-b.done:
	}
}

// Next returns a command that waits for the next event. The model issues a
// new one after handling each EventMsg. It yields nil once the bridge is
// closed.
func (b *Bridge) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-b.ch:
			return EventMsg{Event: ev}
		case <-b.done:
			return nil
		}
	}
}

// Close stops delivery and unsubscribes. Blocked listeners are released.
func (b *Bridge) Close() {
	b.once.Do(func() {
		close(b.done)
		b.unsub()
	})
}
