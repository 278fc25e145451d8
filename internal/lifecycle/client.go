// Package lifecycle drives one survey-processing job per session: it submits the
// request, polls the backend until the job is terminal, and hands out the result.
//
// A Client is the whole session state. Create one per session and share the
// pointer; there are no package-level globals.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gaia-magnetics/magclient/internal/backend"
	"github.com/gaia-magnetics/magclient/internal/jobrequest"
	"github.com/gaia-magnetics/magclient/pkg/models"
)

// DefaultPollInterval matches the status refresh rate of the web client.
const DefaultPollInterval = 2 * time.Second

// DefaultDegradedAfter is the number of consecutive failed status calls after
// which polling is reported as degraded.
const DefaultDegradedAfter = 5

// State is the client-side view of the session.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateQueued     State = "queued"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

func stateFor(s models.JobStatus) State {
	switch s {
	case models.JobStatusRunning:
		return StateRunning
	case models.JobStatusCompleted:
		return StateCompleted
	case models.JobStatusFailed:
		return StateFailed
	default:
		return StateQueued
	}
}

// Backend is the subset of the job service the lifecycle client needs.
type Backend interface {
	CreateJob(ctx context.Context, req *jobrequest.JobRequest) (string, error)
	JobStatus(ctx context.Context, jobID string) (models.JobStatus, error)
	JobResult(ctx context.Context, jobID string) ([]models.ResultRow, error)
	DownloadURL(jobID string) string
}

// ResultCache stores decoded results by job id. Implementations must be safe for
// concurrent use.
type ResultCache interface {
	GetResult(ctx context.Context, jobID string) ([]models.ResultRow, bool, error)
	PutResult(ctx context.Context, jobID string, rows []models.ResultRow) error
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	State    State            `json:"state"`
	JobID    string           `json:"job_id,omitempty"`
	Status   models.JobStatus `json:"status,omitempty"`
	Degraded bool             `json:"degraded"`
	// PollFailures counts consecutive failed status calls for the live job.
	PollFailures int    `json:"poll_failures"`
	LastError    string `json:"last_error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

func WithScheduler(s Scheduler) Option {
	return func(c *Client) { c.sched = s }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDegradedAfter sets the consecutive-failure threshold. Zero disables it.
func WithDegradedAfter(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.degradedAfter = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithListener(l Listener) Option {
	return func(c *Client) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

func WithResultCache(rc ResultCache) Option {
	return func(c *Client) { c.cache = rc }
}

// Client owns the single live Job of a session.
type Client struct {
	backend       Backend
	sched         Scheduler
	interval      time.Duration
	degradedAfter int
	logger        *slog.Logger
	listeners     []Listener
	cache         ResultCache

	// emitMu serializes listener dispatch. It is taken before mu, never after.
	emitMu sync.Mutex

	mu       sync.Mutex
	state    State
	job      *models.Job
	gen      uint64
	poll     Handle
	done     chan struct{}
	failures int
	degraded bool
	lastErr  error
}

// New creates an idle Client.
func New(b Backend, opts ...Option) *Client {
	c := &Client{
		backend:       b,
		sched:         TickerScheduler{},
		interval:      DefaultPollInterval,
		degradedAfter: DefaultDegradedAfter,
		logger:        slog.Default(),
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit creates a job from req and starts polling it. Any poll loop for a
// previous job is stopped before the request is sent. On failure the client
// returns to idle and the previous Job record is kept.
func (c *Client) Submit(ctx context.Context, req *jobrequest.JobRequest) (string, error) {
	if req == nil {
		return "", errors.New("nil job request")
	}

	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return "", ErrSubmitInProgress
	}
	c.stopPollLocked()
	gen := c.gen
	events := []Event{c.setStateLocked(StateSubmitting, "", nil)}
	c.mu.Unlock()
	c.emit(gen, events)

	id, err := c.backend.CreateJob(ctx, req)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Warn("job submission superseded", "job_id", id)
		return "", ErrSubmissionCancelled
	}

	if err != nil {
		err = submitError(err)
		c.lastErr = err
		events = []Event{c.setStateLocked(StateIdle, "", err)}
		c.mu.Unlock()
		c.emit(gen, events)
		c.logger.Warn("job submission failed", "error", err)
		return "", err
	}

	c.job = &models.Job{ID: id, Status: models.JobStatusQueued}
	c.failures = 0
	c.degraded = false
	c.lastErr = nil
	c.done = make(chan struct{})
	events = []Event{c.setStateLocked(StateQueued, id, nil)}
	c.poll = c.sched.Every(c.interval, func(ctx context.Context) {
		c.tick(ctx, gen, id)
	})
	c.mu.Unlock()
	c.emit(gen, events)

	c.logger.Info("job submitted",
		"job_id", id,
		"scenario", req.Scenario(),
		"poll_interval", c.interval.String(),
	)
	return id, nil
}

func submitError(err error) error {
	var se *backend.StatusError
	if errors.As(err, &se) {
		return &RejectedError{StatusCode: se.StatusCode, Body: se.Body, Err: err}
	}
	return &SubmissionError{Err: err}
}

// tick performs one status call for jobID. Responses for a superseded or
// already-terminal job are dropped.
func (c *Client) tick(ctx context.Context, gen uint64, jobID string) {
	status, err := c.backend.JobStatus(ctx, jobID)

	c.mu.Lock()
	if gen != c.gen || c.job == nil || c.job.ID != jobID || c.job.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	if err != nil {
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.failures++
		events := []Event{{Type: EventPollError, JobID: jobID, Err: err}}
		if c.degradedAfter > 0 && c.failures == c.degradedAfter {
			c.degraded = true
			derr := &PollingDegradedError{JobID: jobID, Failures: c.failures, Last: err}
			c.lastErr = derr
			events = append(events, Event{Type: EventDegraded, JobID: jobID, Err: derr})
		}
		failures := c.failures
		c.mu.Unlock()

		c.logger.Warn("job status poll failed", "job_id", jobID, "failures", failures, "error", err)
		c.emit(gen, events)
		return
	}

	c.failures = 0
	if c.degraded {
		c.degraded = false
		c.lastErr = nil
	}
	events := []Event{{Type: EventPolled, JobID: jobID, Status: status}}

	// Waiters are released only after listeners have seen the terminal event.
	var finished chan struct{}
	if status != c.job.Status {
		c.job.Status = status
		var terr error
		if status == models.JobStatusFailed {
			terr = &JobFailedError{JobID: jobID}
			c.lastErr = terr
		}
		events = append(events, c.setStateLocked(stateFor(status), jobID, terr))

		if status.Terminal() {
			if c.poll != nil {
				c.poll.Stop()
				c.poll = nil
			}
			finished, c.done = c.done, nil
		}
	}
	c.mu.Unlock()

	if status.Terminal() {
		c.logger.Info("job finished", "job_id", jobID, "status", status)
	}
	c.emit(gen, events)
	if finished != nil {
		close(finished)
	}
}

// Cancel stops polling for the live job. The backend is not told; the job keeps
// running server-side.
func (c *Client) Cancel() {
	c.mu.Lock()
	c.stopPollLocked()
	gen := c.gen
	var events []Event
	switch c.state {
	case StateSubmitting, StateQueued, StateRunning:
		events = append(events, c.setStateLocked(StateIdle, c.jobIDLocked(), nil))
	}
	c.mu.Unlock()
	c.emit(gen, events)
}

// Wait blocks until the live job reaches a terminal status, polling stops, or
// ctx ends. A failed job returns a *JobFailedError. While a submission is in
// flight there is no live job and Wait returns ErrNoActiveJob.
func (c *Client) Wait(ctx context.Context) (models.JobStatus, error) {
	c.mu.Lock()
	if c.job == nil || c.state == StateSubmitting {
		c.mu.Unlock()
		return "", ErrNoActiveJob
	}
	id := c.job.ID
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-done:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil || c.job.ID != id {
		return "", ErrPollingStopped
	}
	switch c.job.Status {
	case models.JobStatusCompleted:
		return c.job.Status, nil
	case models.JobStatusFailed:
		return c.job.Status, &JobFailedError{JobID: id}
	default:
		return c.job.Status, ErrPollingStopped
	}
}

// FetchResult returns the decoded result rows of a completed job. It fails with
// ErrResultUnavailable, without any network call, while the job is not completed.
func (c *Client) FetchResult(ctx context.Context) ([]models.ResultRow, error) {
	c.mu.Lock()
	if c.job == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrResultUnavailable, ErrNoActiveJob)
	}
	if c.job.Status != models.JobStatusCompleted {
		status := c.job.Status
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: job is %s", ErrResultUnavailable, status)
	}
	if c.job.Result != nil {
		rows := copyRows(c.job.Result)
		c.mu.Unlock()
		return rows, nil
	}
	id := c.job.ID
	c.mu.Unlock()

	rows, err := c.loadResult(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResultUnavailable, err)
	}

	c.mu.Lock()
	if c.job != nil && c.job.ID == id {
		c.job.Result = copyRows(rows)
	}
	c.mu.Unlock()
	return rows, nil
}

func (c *Client) loadResult(ctx context.Context, id string) ([]models.ResultRow, error) {
	if c.cache != nil {
		rows, ok, err := c.cache.GetResult(ctx, id)
		if err != nil {
			c.logger.Warn("result cache read failed", "job_id", id, "error", err)
		} else if ok {
			return rows, nil
		}
	}

	rows, err := c.backend.JobResult(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.PutResult(ctx, id, rows); err != nil {
			c.logger.Warn("result cache write failed", "job_id", id, "error", err)
		}
	}
	return rows, nil
}

// DownloadURL returns the URL of the raw result artifact for the current job.
func (c *Client) DownloadURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return "", ErrNoActiveJob
	}
	return c.backend.DownloadURL(c.job.ID), nil
}

// Snapshot returns a copy of the session state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		Degraded:     c.degraded,
		PollFailures: c.failures,
	}
	if c.job != nil {
		s.JobID = c.job.ID
		s.Status = c.job.Status
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// stopPollLocked stops the poll loop and invalidates every in-flight response.
func (c *Client) stopPollLocked() {
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
	c.gen++
	c.closeDoneLocked()
}

func (c *Client) closeDoneLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

func (c *Client) jobIDLocked() string {
	if c.job == nil {
		return ""
	}
	return c.job.ID
}

func (c *Client) setStateLocked(to State, jobID string, err error) Event {
	from := c.state
	c.state = to
	return Event{Type: EventTransition, JobID: jobID, From: from, To: to, Err: err}
}

// emit delivers events produced under generation gen. Events are dropped once a
// later Submit or Cancel has moved the client to a newer generation, so nothing
// about a superseded job reaches listeners after the new submission began.
func (c *Client) emit(gen uint64, events []Event) {
	if len(events) == 0 || len(c.listeners) == 0 {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for _, e := range events {
		if !c.current(gen) {
			return
		}
		for _, l := range c.listeners {
			l.HandleEvent(e)
		}
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func copyRows(rows []models.ResultRow) []models.ResultRow {
	return append(make([]models.ResultRow, 0, len(rows)), rows...)
}
