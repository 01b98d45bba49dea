package transport

import "sync"

// State is the lifecycle state of a transport. A datagram transport moves
// StateUnbound, StateConnecting, StateBound while binding, returns to
// StateUnbound if the bind fails, and goes StateClosing then StateClosed on
// Close. A read error moves it to StateFailed.
type State uint8

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
	StateFailed
)

// StateUnbound and StateBound name the datagram states.
const (
	StateUnbound = StateUnconnected
	StateBound   = StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// terminal reports whether no further transition is possible.
func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}

// lifecycle holds a transport's state and its failure reporting.
type lifecycle struct {
	mu      sync.RWMutex
	state   State
	err     error
	onError ErrorHandler
	once    sync.Once
}

func (l *lifecycle) get() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// set moves to next unless the current state is terminal.
func (l *lifecycle) set(next State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.terminal() {
		return false
	}
	l.state = next
	return true
}

// transition moves from an expected state to next.
func (l *lifecycle) transition(from, next State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != from {
		return false
	}
	l.state = next
	return true
}

func (l *lifecycle) setErrorHandler(h ErrorHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = h
}

// fail records err, moves to StateFailed and runs the error handler exactly
// once. Failures observed while closing are not reported.
func (l *lifecycle) fail(err error) {
	l.once.Do(func() {
		l.mu.Lock()
		if l.state == StateClosing || l.state == StateClosed {
			l.mu.Unlock()
			return
		}
		l.state = StateFailed
		l.err = err
		h := l.onError
		l.mu.Unlock()

		if h != nil {
			h(err)
		}
	})
}

// failure returns the error recorded by fail, if any.
func (l *lifecycle) failure() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}
