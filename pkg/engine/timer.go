package engine

import (
	"sync"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
)

// MaxTimerToken bounds the number of outstanding timer registrations, the
// MAX_TIMER_TOKEN limit spec section 5 requires the timer wheel to enforce.
const MaxTimerToken = 1000

// DefaultMaxRetries is the type-specific retry cap a timer callback applies
// before it gives up and reports a timeout upward.
const DefaultMaxRetries = 3

// DefaultInitialBackoff is the first retry delay; each subsequent retry
// doubles it.
const DefaultInitialBackoff = 3 * time.Second

// TimerFired is the event the timer wheel posts into the loop's event
// channel when a scheduled token expires. Handlers never run on the timer
// goroutine itself; they run back on the single consumer like every other
// event, preserving the loop's no-concurrent-mutation invariant.
type TimerFired struct {
	Token   int
	Payload any
}

type timerEntry struct {
	timer *time.Timer
}

// TimerWheel schedules one-shot callbacks that post TimerFired events back
// into a loop's event channel rather than invoking a callback directly,
// the same handoff the teacher's send/receive threads use to keep all
// state mutation on one goroutine.
type TimerWheel struct {
	mu      sync.Mutex
	entries map[int]*timerEntry
	next    int
	out     chan<- any
	stop    <-chan struct{}
}

// NewTimerWheel constructs a timer wheel that posts fired tokens into out,
// stopping early if stop is closed.
func NewTimerWheel(out chan<- any, stop <-chan struct{}) *TimerWheel {
	return &TimerWheel{
		entries: make(map[int]*timerEntry),
		out:     out,
		stop:    stop,
	}
}

// Schedule arms a one-shot timer after d that posts TimerFired{token,
// payload} into the wheel's output channel. It returns errs.ResourceExhausted
// once MaxTimerToken tokens are outstanding.
func (tw *TimerWheel) Schedule(d time.Duration, payload any) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if len(tw.entries) >= MaxTimerToken {
		return 0, errs.ResourceExhausted("engine.TimerWheel.Schedule", nil)
	}
	tw.next++
	token := tw.next
	entry := &timerEntry{}
	entry.timer = time.AfterFunc(d, func() { tw.fire(token, payload) })
	tw.entries[token] = entry
	return token, nil
}

// Cancel disarms a previously scheduled token. It is a no-op if the token
// already fired or was never registered.
func (tw *TimerWheel) Cancel(token int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if e, ok := tw.entries[token]; ok {
		e.timer.Stop()
		delete(tw.entries, token)
	}
}

// Pending reports the number of outstanding (unfired, uncancelled) tokens.
func (tw *TimerWheel) Pending() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return len(tw.entries)
}

func (tw *TimerWheel) fire(token int, payload any) {
	tw.mu.Lock()
	_, ok := tw.entries[token]
	delete(tw.entries, token)
	tw.mu.Unlock()
	if !ok {
		return
	}
	select {
	case tw.out <- TimerFired{Token: token, Payload: payload}:
	case <-tw.stop:
	}
}

// RetryState tracks the outstanding-retry count for one pending exchange
// (a TopologyQuery awaiting its TopologyResponse, a WSC M1 awaiting M2).
// Callers bump Attempt each time they re-arm the timer and check
// Exhausted before scheduling another retry.
type RetryState struct {
	Attempt int
}

// NextBackoff returns the exponential backoff delay for the state's
// current attempt count, doubling DefaultInitialBackoff each retry.
func (r *RetryState) NextBackoff() time.Duration {
	d := DefaultInitialBackoff
	for i := 0; i < r.Attempt; i++ {
		d *= 2
	}
	return d
}

// Exhausted reports whether the default retry cap has been reached.
func (r *RetryState) Exhausted() bool {
	return r.Attempt >= DefaultMaxRetries
}
