package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/stellarlinkco/prompt-mini/internal/provider"
)

// State names one stage of a tuning interaction's lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateInFlight  State = "in_flight"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Attempt records one vendor call made on behalf of a handle.
type Attempt struct {
	Num        int
	Kind       provider.ErrorKind
	Diagnostic string

	// Backoff slept before this attempt; zero for the first.
	Backoff time.Duration
}

// Handle is an opaque reference to one tuning interaction. All failures
// surface as terminal state here, never as a fault past the gateway
// boundary. Observation is by polling, the Done channel, or the callback
// given at submit time.
type Handle struct {
	mu       sync.Mutex
	state    State
	result   *provider.TuneResult
	kind     provider.ErrorKind
	attempts []Attempt
	done     chan struct{}
	cancel   context.CancelFunc
	onDone   func(*Handle)
}

func newHandle(cancel context.CancelFunc, onDone func(*Handle)) *Handle {
	return &Handle{
		state:  StateIdle,
		done:   make(chan struct{}),
		cancel: cancel,
		onDone: onDone,
	}
}

// State returns the handle's current lifecycle stage.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed when the handle reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the normalized outcome once the handle is terminal.
func (h *Handle) Result() (*provider.TuneResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Terminal() {
		return nil, false
	}
	return h.result, true
}

// Kind returns the error classification of a Failed handle.
func (h *Handle) Kind() provider.ErrorKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kind
}

// Attempts returns a copy of the per-attempt records so far.
func (h *Handle) Attempts() []Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Attempt, len(h.attempts))
	copy(out, h.attempts)
	return out
}

// Cancel aborts an in-flight interaction: the underlying call is signalled
// to stop and any pending retry timer is torn down. It is a no-op unless
// the handle is InFlight; it reports whether the cancellation took effect.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	if h.state != StateInFlight {
		h.mu.Unlock()
		return false
	}
	h.state = StateCancelled
	h.result = nil
	callback := h.onDone
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	close(h.done)
	if callback != nil {
		callback(h)
	}
	return true
}

// Wait blocks until the handle is terminal or ctx expires.
func (h *Handle) Wait(ctx context.Context) (*provider.TuneResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		res, _ := h.Result()
		return res, nil
	}
}

func (h *Handle) markInFlight() {
	h.mu.Lock()
	h.state = StateInFlight
	h.mu.Unlock()
}

func (h *Handle) recordAttempt(a Attempt) {
	h.mu.Lock()
	h.attempts = append(h.attempts, a)
	h.mu.Unlock()
}

// finish moves the handle to a terminal state. It loses the race against
// Cancel silently: the first terminal transition wins.
func (h *Handle) finish(state State, result *provider.TuneResult, kind provider.ErrorKind) {
	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		return
	}
	h.state = state
	h.result = result
	h.kind = kind
	callback := h.onDone
	h.mu.Unlock()

	close(h.done)
	if callback != nil {
		callback(h)
	}
}
