package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultMaxAttempts  = 300
	cancelTimeout       = 10 * time.Second
)

// Client is the status side of an external job service.
type Client interface {
	Status(ctx context.Context, id string) (Remote, error)
	Cancel(ctx context.Context, id string) error
}

// Submitter starts the external job and returns its id.
type Submitter func(ctx context.Context) (string, error)

type Config struct {
	Kind         Kind
	Client       Client
	Cache        StatusCache
	PollInterval time.Duration
	MaxAttempts  int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Tracker runs at most one job of its kind. Starting a new job supersedes the
// previous one; results that arrive for a superseded job are discarded.
type Tracker struct {
	kind        Kind
	client      Client
	cache       StatusCache
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	gen       uint64
	job       Job
	stop      context.CancelFunc
	done      chan struct{}
	listeners []func(Job)
}

func NewTracker(cfg Config) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	return &Tracker{
		kind:        cfg.Kind,
		client:      cfg.Client,
		cache:       cfg.Cache,
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger.With("job_kind", string(cfg.Kind)),
		now:         cfg.Now,
		job:         Job{Kind: cfg.Kind, State: StateIdle},
	}
}

// OnUpdate registers a callback run after every accepted transition.
func (t *Tracker) OnUpdate(fn func(Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Current returns the latest job snapshot.
func (t *Tracker) Current() Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job
}

// Lookup returns a job by id from the tracker or the status cache.
func (t *Tracker) Lookup(ctx context.Context, id string) (Job, bool, error) {
	if cur := t.Current(); cur.ID == id && id != "" {
		return cur, true, nil
	}
	return t.cache.Get(ctx, id)
}

// Start submits a new job and begins polling it in the background. The
// submission itself is synchronous; a transport failure leaves the tracker in
// StateFailed and is returned.
func (t *Tracker) Start(ctx context.Context, project string, submit Submitter) (Job, error) {
	t.mu.Lock()
	if t.stop != nil {
		t.stop()
	}
	t.gen++
	gen := t.gen
	now := t.now()
	t.job = Job{Kind: t.kind, Project: project, State: StateSubmitted, CreatedAt: now, UpdatedAt: now}
	done := make(chan struct{})
	t.done = done
	t.stop = nil
	t.mu.Unlock()

	id, err := submit(ctx)
	if err != nil {
		t.update(gen, func(j *Job) {
			j.State = StateFailed
			j.Message = err.Error()
		})
		close(done)
		return t.Current(), fmt.Errorf("submit %s job: %w", t.kind, err)
	}

	pollCtx, stop := context.WithCancel(context.Background())
	accepted := t.update(gen, func(j *Job) {
		j.ID = id
		j.State = StatePolling
	})
	if !accepted {
		stop()
		close(done)
		t.mu.Lock()
		cancelled := gen == t.gen && t.job.State == StateCancelled
		t.mu.Unlock()
		if cancelled {
			t.cancelRemote(id)
			return t.Current(), ErrCancelled
		}
		return Job{}, fmt.Errorf("%s job %s superseded before polling started", t.kind, id)
	}
	t.mu.Lock()
	t.stop = stop
	t.mu.Unlock()

	t.logger.Info("job submitted", "job_id", id, "project", project)
	go t.poll(pollCtx, gen, id, done)
	return t.Current(), nil
}

// Cancel marks the current job cancelled immediately and asks the service to
// cancel it without waiting for confirmation.
func (t *Tracker) Cancel() (Job, error) {
	t.mu.Lock()
	if t.job.State.Terminal() || t.job.State == StateIdle {
		t.mu.Unlock()
		return t.Current(), ErrNoJob
	}
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	id := t.job.ID
	gen := t.gen
	t.mu.Unlock()

	t.update(gen, func(j *Job) {
		j.State = StateCancelled
		j.Message = "cancelled by user"
	})

	if id != "" {
		t.cancelRemote(id)
	}
	return t.Current(), nil
}

func (t *Tracker) cancelRemote(id string) {
	if t.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		if err := t.client.Cancel(ctx, id); err != nil {
			t.logger.Warn("remote cancel failed", "job_id", id, "error", err)
		}
	}()
}

// Wait blocks until the current job reaches a terminal state or ctx ends.
func (t *Tracker) Wait(ctx context.Context) (Job, error) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return t.Current(), ErrNoJob
	}
	select {
	case <-done:
	case <-ctx.Done():
		return t.Current(), ctx.Err()
	}
	j := t.Current()
	switch j.State {
	case StateCompleted:
		return j, nil
	case StateTimedOut:
		return j, ErrTimedOut
	case StateCancelled:
		return j, ErrCancelled
	case StateFailed:
		return j, fmt.Errorf("%w: %s", ErrFailed, j.Message)
	}
	return j, nil
}

func (t *Tracker) poll(ctx context.Context, gen uint64, id string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		remote, err := t.client.Status(ctx, id)
		if ctx.Err() != nil {
			return
		}
		finished := false
		accepted := t.update(gen, func(j *Job) {
			j.Attempts = attempt
			if err != nil {
				t.logger.Debug("status poll failed", "job_id", id, "attempt", attempt, "error", err)
				j.Message = err.Error()
			} else {
				finished = applyRemote(j, remote)
			}
			if !finished && attempt >= t.maxAttempts {
				j.State = StateTimedOut
				j.Message = ErrTimedOut.Error()
				finished = true
			}
		})
		if !accepted {
			t.logger.Debug("discarding status for superseded job", "job_id", id)
			return
		}
		if finished {
			j := t.Current()
			t.logger.Info("job finished", "job_id", id, "state", j.State, "attempts", attempt)
			return
		}
	}
}

// applyRemote folds a status observation into j and reports whether the job
// reached a terminal state.
func applyRemote(j *Job, r Remote) bool {
	if r.Progress > j.Progress {
		j.Progress = min(r.Progress, 100)
	}
	if r.Message != "" {
		j.Message = r.Message
	}
	switch r.State {
	case RemoteCompleted:
		j.State = StateCompleted
		j.Progress = 100
		j.URL = r.URL
		return true
	case RemoteFailed:
		j.State = StateFailed
		if j.Message == "" {
			j.Message = "job failed"
		}
		return true
	case RemoteCancelled:
		j.State = StateCancelled
		return true
	case RemoteNotFound:
		j.State = StateFailed
		j.Message = ErrJobLost.Error()
		return true
	}
	j.State = StatePolling
	return false
}

// update applies fn to the job if gen is still current and the job is not
// already terminal. It reports whether the update was accepted.
func (t *Tracker) update(gen uint64, fn func(*Job)) bool {
	t.mu.Lock()
	if gen != t.gen || t.job.State.Terminal() {
		t.mu.Unlock()
		return false
	}
	fn(&t.job)
	t.job.UpdatedAt = t.now()
	j := t.job
	ls := append([]func(Job){}, t.listeners...)
	t.mu.Unlock()

	if j.ID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := t.cache.Put(ctx, j); err != nil {
			t.logger.Warn("job status cache write failed", "job_id", j.ID, "error", err)
		}
		cancel()
	}
	for _, fn := range ls {
		fn(j)
	}
	return true
}
