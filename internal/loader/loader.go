package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/notify"
)

// State is the lifecycle of the singleton model load.
type State int

const (
	// StateIdle means no load has been attempted yet.
	StateIdle State = iota
	// StateLoading means exactly one goroutine is running PerformLoad.
	StateLoading
	// StateDone means the engine is installed and ready.
	StateDone
	// StateFailed means the last attempt failed; the next EnsureLoaded
	// retries from scratch.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrLoadFailed is returned to waiters when the load they waited on
	// resolved with a failure.
	ErrLoadFailed = errors.New("loader: model failed to load")

	// ErrWaitTimeout is returned to a waiter that exceeded the bounded wait
	// for another goroutine's in-flight load.
	ErrWaitTimeout = errors.New("loader: timed out waiting for model load")
)

// DefaultWaitTimeout bounds how long a waiter blocks on someone else's load.
const DefaultWaitTimeout = 120 * time.Second

// PerformLoad stages assets and constructs the engine. It runs outside the
// coordination lock, on the goroutine that claimed the load. It may emit
// progress statuses ("Checking assets...", "Loading model...") through the
// notifier but must NOT emit "Ready" or "Error: ..." — the coordinator owns
// terminal notifications so each notifier sees exactly one outcome.
type PerformLoad func(ctx context.Context, n notify.Notifier) (engine.Engine, error)

// episode represents one in-flight load. done is closed after err and the
// handle are finalized, releasing every waiter of this episode together.
type episode struct {
	done chan struct{}
	err  error
}

// Coordinator guarantees the costly model load runs at most once
// concurrently while arbitrarily many callers wait or race to trigger it,
// with retry on failure. Construct one per process (or per test) and pass
// it to every entry point; there is no package-level instance.
type Coordinator struct {
	mu          sync.Mutex
	state       State
	failReason  string
	current     *episode
	handle      *engine.Handle
	waitTimeout time.Duration
}

// NewCoordinator creates a coordinator installing into handle. A
// non-positive waitTimeout falls back to DefaultWaitTimeout.
func NewCoordinator(handle *engine.Handle, waitTimeout time.Duration) *Coordinator {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &Coordinator{
		handle:      handle,
		waitTimeout: waitTimeout,
	}
}

// Handle returns the engine handle the coordinator installs into.
func (c *Coordinator) Handle() *engine.Handle {
	return c.handle
}

// State returns the current load state and, for StateFailed, the reason.
func (c *Coordinator) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.failReason
}

// EnsureLoaded makes sure the engine is loaded, whatever it takes:
//
//   - already loaded: returns immediately, notifies "Ready";
//   - someone else is loading: blocks (bounded by the wait timeout) until
//     that episode resolves, then shares its outcome;
//   - idle or previously failed: claims the load, runs perform outside the
//     lock, installs on success, records the failure otherwise.
//
// Every failure path ends in exactly one "Error: ..." status on n.
func (c *Coordinator) EnsureLoaded(ctx context.Context, perform PerformLoad, n notify.Notifier) error {
	// Unsynchronized fast path; re-verified under the lock below because
	// the state may change between this check and lock acquisition.
	if c.handle.Loaded() {
		n.Status("Ready")
		return nil
	}

	c.mu.Lock()
	if c.handle.Loaded() {
		c.mu.Unlock()
		n.Status("Ready")
		return nil
	}

	switch c.state {
	case StateDone:
		c.mu.Unlock()
		n.Status("Ready")
		return nil

	case StateLoading:
		ep := c.current
		c.mu.Unlock()
		return c.wait(ctx, ep, n)

	default: // StateIdle, StateFailed: this goroutine claims the load.
		ep := &episode{done: make(chan struct{})}
		c.state = StateLoading
		c.current = ep
		c.mu.Unlock()
		return c.load(ctx, ep, perform, n)
	}
}

// wait blocks until ep resolves, the wait timeout fires, or ctx is
// canceled. All waiters parked on the same episode are released together
// when it resolves.
func (c *Coordinator) wait(ctx context.Context, ep *episode, n notify.Notifier) error {
	n.Status("Waiting for model...")

	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case <-ep.done:
		if ep.err == nil && c.handle.Loaded() {
			n.Status("Ready")
			return nil
		}
		n.Status("Error: model failed to load")
		return ErrLoadFailed

	case <-timer.C:
		n.Status(fmt.Sprintf("Error: timed out after %s waiting for model", c.waitTimeout))
		return ErrWaitTimeout

	case <-ctx.Done():
		n.Status(fmt.Sprintf("Error: %v", ctx.Err()))
		return ctx.Err()
	}
}

// load runs perform on the claiming goroutine and resolves ep. perform runs
// outside the coordination lock so waiters and new callers are never blocked
// on load bookkeeping.
func (c *Coordinator) load(ctx context.Context, ep *episode, perform PerformLoad, n notify.Notifier) error {
	eng, err := perform(ctx, n)

	c.mu.Lock()
	if err == nil {
		c.handle.Install(eng)
		c.state = StateDone
		c.failReason = ""
	} else {
		// Failed, not Idle: the error stays observable to later callers.
		c.state = StateFailed
		c.failReason = err.Error()
	}
	c.current = nil
	ep.err = err
	c.mu.Unlock()

	// Handle and state are finalized; release all waiters of this episode.
	close(ep.done)

	if err != nil {
		log.Error().Err(err).Msg("model load failed")
		n.Status(fmt.Sprintf("Error: %v", err))
		return fmt.Errorf("loader: %w", err)
	}

	log.Info().Msg("model load complete")
	n.Status("Ready")
	return nil
}
