// Package scheduler admits download requests and hands accepted jobs to the
// extraction runner, bounding how many run at once.
package scheduler

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/mediagrab/orchestrator/internal/job"
)

// ErrCapacityExceeded is returned under the reject policy when every slot is
// busy. No job record is created for a rejected request.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// Policy decides what happens to submissions arriving at capacity.
type Policy string

const (
	// PolicyQueue holds excess submissions in FIFO order until a slot frees.
	PolicyQueue Policy = "queue"
	// PolicyReject refuses excess submissions outright.
	PolicyReject Policy = "reject"
)

// Runner executes one accepted job to a terminal state. Exactly one Run call
// is made per job id.
type Runner interface {
	Run(ctx context.Context, jobID string)
}

type Scheduler struct {
	store   job.JobStore
	runner  Runner
	allowed []*regexp.Regexp
	max     int
	policy  Policy

	ctx context.Context
	wg  sync.WaitGroup

	mu      sync.Mutex
	running int
	queue   []string // FIFO of admitted but not yet dispatched job ids
}

type Options struct {
	MaxConcurrent int
	Policy        Policy
	URLPatterns   []*regexp.Regexp
}

func New(ctx context.Context, store job.JobStore, runner Runner, opts Options) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.Policy == "" {
		opts.Policy = PolicyQueue
	}
	allowed := opts.URLPatterns
	if len(allowed) == 0 {
		allowed = job.DefaultURLPatterns()
	}
	return &Scheduler{
		store:   store,
		runner:  runner,
		allowed: allowed,
		max:     opts.MaxConcurrent,
		policy:  opts.Policy,
		ctx:     ctx,
	}
}

// Submit validates the request, creates a pending job, and either dispatches
// it immediately or queues it, depending on capacity. It returns without
// waiting for the extraction to start.
func (s *Scheduler) Submit(req job.Request) (job.Job, error) {
	if err := req.Validate(s.allowed); err != nil {
		return job.Job{}, err
	}

	s.mu.Lock()
	if s.running >= s.max && s.policy == PolicyReject {
		s.mu.Unlock()
		return job.Job{}, ErrCapacityExceeded
	}

	j := job.New(req)
	if err := s.store.Add(j); err != nil {
		s.mu.Unlock()
		return job.Job{}, err
	}

	if s.running < s.max {
		s.running++
		s.dispatchLocked(j.ID)
	} else {
		s.queue = append(s.queue, j.ID)
	}
	s.mu.Unlock()

	return *j, nil
}

// dispatchLocked launches the runner for one job id. Caller holds s.mu and
// has already accounted for the slot.
func (s *Scheduler) dispatchLocked(id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		s.runner.Run(s.ctx, id)
	}()
}

// release frees a slot and dispatches the next queued job, if any.
func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--
	if len(s.queue) > 0 && s.running < s.max {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.running++
		s.dispatchLocked(id)
	}
}

// Running reports how many extractions are currently dispatched.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// QueueLength reports how many admitted jobs are waiting for a slot.
func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Wait blocks until all dispatched runners have returned. Used on shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
