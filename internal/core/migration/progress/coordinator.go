// Package progress runs diffs as cancellable background tasks that callers poll.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// DefaultPollInterval is used when a caller does not choose one.
const DefaultPollInterval = 2 * time.Second

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s != StateRunning
}

// Reporter publishes progress from inside a task. Percentages that would move backwards are ignored.
type Reporter func(phase string, percent int)

// Task is the work of one run.
type Task func(ctx context.Context, report Reporter) (*domain.ChangeSet, error)

// Status is one poll response. Success, Data and ErrorMessage are only meaningful once Terminal.
type Status struct {
	SessionID       string            `json:"sessionId"`
	State           State             `json:"state"`
	Phase           string            `json:"phase"`
	PercentComplete int               `json:"percentComplete"`
	Terminal        bool              `json:"terminal"`
	Success         bool              `json:"success"`
	Data            *domain.ChangeSet `json:"data,omitempty"`
	ErrorMessage    string            `json:"errorMessage,omitempty"`
	Err             error             `json:"-"`
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Coordinator enforces one in-flight run per session.
type Coordinator struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{runs: make(map[string]*Run)}
}

// Start launches task in the background for sessionID. It fails with ErrDiffInFlight while an
// earlier run of the same session has not reached a terminal state.
func (c *Coordinator) Start(ctx context.Context, sessionID string, task Task) (*Run, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	c.mu.Lock()
	if existing, ok := c.runs[sessionID]; ok && !existing.Poll().Terminal {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrDiffInFlight, sessionID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		id:      sessionID,
		cancel:  cancel,
		state:   StateRunning,
		phase:   "starting",
		done:    make(chan struct{}),
		started: time.Now(),
	}
	c.runs[sessionID] = run
	c.mu.Unlock()

	go func() {
		defer cancel()
		cs, err := task(runCtx, run.report)
		if err != nil {
			run.finish(StateFailed, nil, err)
			return
		}
		run.finish(StateSucceeded, cs, nil)
	}()

	debug.Debug("diff run started", "session", sessionID)
	return run, nil
}

// Lookup returns the latest run of a session.
func (c *Coordinator) Lookup(sessionID string) (*Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.runs[sessionID]
	return run, ok
}

// Run is one background diff.
type Run struct {
	id      string
	cancel  context.CancelFunc
	started time.Time

	mu      sync.Mutex
	state   State
	phase   string
	percent int
	result  *domain.ChangeSet
	err     error

	once sync.Once
	done chan struct{}
}

// ID returns the session identifier.
func (r *Run) ID() string {
	return r.id
}

// Done is closed once the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) report(phase string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < r.percent {
		return
	}
	r.percent = percent
	if phase != "" {
		r.phase = phase
	}
}

func (r *Run) finish(state State, cs *domain.ChangeSet, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.state = state
		switch state {
		case StateSucceeded:
			r.result = cs
			r.percent = 100
			r.phase = "done"
		case StateFailed:
			r.err = err
		}
		r.mu.Unlock()
		close(r.done)
		debug.Debug("diff run finished", "session", r.id, "state", state, "elapsed", time.Since(r.started))
	})
}

// Cancel withdraws interest in the run. The task's context is cancelled but queries already
// issued may still complete; their outcome is discarded.
func (r *Run) Cancel() {
	r.finish(StateCancelled, nil, context.Canceled)
	r.cancel()
}

// Poll returns the current status without blocking.
func (r *Run) Poll() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		SessionID:       r.id,
		State:           r.state,
		Phase:           r.phase,
		PercentComplete: r.percent,
		Terminal:        r.state.Terminal(),
	}
	switch r.state {
	case StateSucceeded:
		st.Success = true
		st.Data = r.result
	case StateFailed:
		st.Err = r.err
		st.ErrorMessage = r.err.Error()
	case StateCancelled:
		st.Err = context.Canceled
		st.ErrorMessage = "diff cancelled"
	}
	return st
}

// Wait polls every interval, handing each non-terminal status to onPoll, until the run is
// terminal. Cancelling ctx cancels the run.
func (r *Run) Wait(ctx context.Context, interval time.Duration, onPoll func(Status)) Status {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return r.Poll()
		case <-ctx.Done():
			r.Cancel()
			return r.Poll()
		case <-ticker.C:
			if st := r.Poll(); !st.Terminal && onPoll != nil {
				onPoll(st)
			}
		}
	}
}

// Result converts a terminal status into the change set or the error it carries.
func (s Status) Result() (*domain.ChangeSet, error) {
	switch {
	case !s.Terminal:
		return nil, errors.New("diff still running")
	case s.Success:
		return s.Data, nil
	default:
		return nil, s.Err
	}
}
