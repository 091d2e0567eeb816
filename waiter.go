package codelet

import (
	"strings"
	"sync"
)

// DefaultInterruptKey is the key a KeyWaiter treats as an interrupt
// request when none is configured.
const DefaultInterruptKey = "esc"

// Waiter supplies the external interrupt signal the prompt loop selects
// on alongside the backend stream. A receive from Ready means the user
// or host asked to interrupt the current stream.
type Waiter interface {
	Ready() <-chan struct{}
}

// HostWaiter is the wait substrate for embedding hosts: the host calls
// Wake from any goroutine to interrupt the session even while it is
// blocked on network I/O. Signals coalesce; waking an already-woken
// waiter is a no-op.
type HostWaiter struct {
	ch chan struct{}
}

// NewHostWaiter creates a HostWaiter.
func NewHostWaiter() *HostWaiter {
	return &HostWaiter{ch: make(chan struct{}, 1)}
}

// Wake signals an interrupt request. Never blocks.
func (w *HostWaiter) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Ready implements Waiter.
func (w *HostWaiter) Ready() <-chan struct{} {
	return w.ch
}

// KeyEvent is a single key press fed to a KeyWaiter by an interactive
// front-end.
type KeyEvent struct {
	Key string
}

// KeyWaiter is the interactive wait substrate: it consumes a stream of
// key events and signals whenever the configured interrupt key arrives.
// Other keys are ignored; the front-end handles them itself.
type KeyWaiter struct {
	interruptKey string
	ready        chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
}

// NewKeyWaiter starts consuming keys. An empty interruptKey selects
// DefaultInterruptKey. The waiter stops when keys is closed or Close is
// called.
func NewKeyWaiter(keys <-chan KeyEvent, interruptKey string) *KeyWaiter {
	if interruptKey == "" {
		interruptKey = DefaultInterruptKey
	}
	w := &KeyWaiter{
		interruptKey: interruptKey,
		ready:        make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go w.consume(keys)
	return w
}

func (w *KeyWaiter) consume(keys <-chan KeyEvent) {
	for {
		select {
		case ev, ok := <-keys:
			if !ok {
				return
			}
			if strings.EqualFold(ev.Key, w.interruptKey) {
				select {
				case w.ready <- struct{}{}:
				default:
				}
			}
		case <-w.done:
			return
		}
	}
}

// Ready implements Waiter.
func (w *KeyWaiter) Ready() <-chan struct{} {
	return w.ready
}

// Close stops the consuming goroutine. Safe to call more than once.
func (w *KeyWaiter) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
