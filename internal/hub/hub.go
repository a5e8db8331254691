// Package hub fans job state changes out to websocket subscribers.
// Polling clients read the store directly; both paths observe the same
// canonical record, so they can never disagree.
package hub

import (
	"sync"

	"github.com/mediagrab/orchestrator/internal/job"
)

const defaultQueueSize = 16

// Hub maps job ids to their subscriber sets. Publishing never blocks: each
// subscriber has a bounded queue and the oldest update is dropped on
// overflow. Progress is a monotonic percentage, so the latest value always
// supersedes older ones.
type Hub struct {
	mu        sync.Mutex
	subs      map[string]map[*Subscription]struct{}
	queueSize int
}

// Subscription is one observer of a single job's updates.
type Subscription struct {
	hub   *Hub
	jobID string
	ch    chan job.Job
}

func New() *Hub {
	return NewWithQueueSize(defaultQueueSize)
}

func NewWithQueueSize(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		subs:      make(map[string]map[*Subscription]struct{}),
		queueSize: queueSize,
	}
}

func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		hub:   h,
		jobID: jobID,
		ch:    make(chan job.Job, h.queueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Updates returns the subscriber's queue. The channel is closed after the
// terminal state has been delivered, or when the subscription is closed.
func (s *Subscription) Updates() <-chan job.Job {
	return s.ch
}

// Close detaches the subscription. It only affects this observer; the
// underlying job keeps running. Safe to call more than once and after the
// hub has already closed the subscription on terminal delivery.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}

// Publish delivers a snapshot to every subscriber of the job. A terminal
// snapshot is the last message each subscriber receives; their channels are
// closed afterwards and the job's subscriber set is dropped.
func (h *Hub) Publish(snap job.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[snap.ID]
	if !ok {
		return
	}

	for sub := range set {
		select {
		case sub.ch <- snap:
		default:
			// Queue full: drop the oldest update, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}

	if snap.Status.Terminal() {
		for sub := range set {
			h.removeLocked(sub)
		}
	}
}

// SubscriberCount reports how many observers a job currently has.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

func (h *Hub) removeLocked(sub *Subscription) {
	set, ok := h.subs[sub.jobID]
	if !ok {
		return
	}
	if _, member := set[sub]; !member {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sub.jobID)
	}
}
