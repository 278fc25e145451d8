package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaia-magnetics/magclient/internal/backend"
	"github.com/gaia-magnetics/magclient/internal/jobrequest"
	"github.com/gaia-magnetics/magclient/pkg/models"
)

// --- manual scheduler ---

type manualLoop struct {
	interval time.Duration
	task     func(ctx context.Context)
	stopped  atomic.Bool
}

func (l *manualLoop) Stop() { l.stopped.Store(true) }

// fire runs the task even when stopped, standing in for a response that was
// already in flight when the loop was stopped.
func (l *manualLoop) fire() { l.task(context.Background()) }

type manualScheduler struct {
	mu    sync.Mutex
	loops []*manualLoop
}

func (s *manualScheduler) Every(interval time.Duration, task func(ctx context.Context)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &manualLoop{interval: interval, task: task}
	s.loops = append(s.loops, l)
	return l
}

// Tick runs every live loop once and returns how many ran.
func (s *manualScheduler) Tick() int {
	s.mu.Lock()
	var live []*manualLoop
	for _, l := range s.loops {
		if !l.stopped.Load() {
			live = append(live, l)
		}
	}
	s.mu.Unlock()

	for _, l := range live {
		l.task(context.Background())
	}
	return len(live)
}

func (s *manualScheduler) loop(i int) *manualLoop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[i]
}

// --- stub backend ---

type statusReply struct {
	status models.JobStatus
	err    error
}

type stubBackend struct {
	mu          sync.Mutex
	ids         []string
	createErr   error
	createGate  chan struct{}
	statuses    map[string][]statusReply
	statusCalls map[string]int
	result      []models.ResultRow
	resultErr   error
	resultCalls int
}

func newStubBackend(ids ...string) *stubBackend {
	return &stubBackend{
		ids:         ids,
		statuses:    map[string][]statusReply{},
		statusCalls: map[string]int{},
	}
}

func (b *stubBackend) script(jobID string, replies ...statusReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[jobID] = append(b.statuses[jobID], replies...)
}

func (b *stubBackend) CreateJob(ctx context.Context, _ *jobrequest.JobRequest) (string, error) {
	if b.createGate != nil {
		select {
		case <-b.createGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return "", b.createErr
	}
	id := b.ids[0]
	b.ids = b.ids[1:]
	return id, nil
}

func (b *stubBackend) JobStatus(_ context.Context, jobID string) (models.JobStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls[jobID]++
	replies := b.statuses[jobID]
	if len(replies) == 0 {
		return "", backend.ErrBackendUnreachable
	}
	r := replies[0]
	b.statuses[jobID] = replies[1:]
	return r.status, r.err
}

func (b *stubBackend) JobResult(_ context.Context, _ string) ([]models.ResultRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resultCalls++
	return b.result, b.resultErr
}

func (b *stubBackend) DownloadURL(jobID string) string {
	return "http://gaia.test/jobs/" + jobID + "/result.csv"
}

func (b *stubBackend) calls(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[jobID]
}

// --- event recorder ---

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) HandleEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) transitions() []State {
	var out []State
	for _, e := range r.all() {
		if e.Type == EventTransition {
			out = append(out, e.To)
		}
	}
	return out
}

func ok(s models.JobStatus) statusReply { return statusReply{status: s} }

func fail(err error) statusReply { return statusReply{err: err} }
