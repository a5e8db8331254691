package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransition enforces the one-directional job state machine.
// downloading may complete directly when no conversion step runs.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusDownloading || to == StatusCompleted || to == StatusFailed
	case StatusDownloading:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

type Job struct {
	ID          string     `json:"id"`
	SourceURL   string     `json:"source_url"`
	MediaKind   MediaKind  `json:"media_kind"`
	Format      string     `json:"format"`
	Quality     string     `json:"quality"`
	Status      Status     `json:"status"`
	Progress    float64    `json:"progress"`
	Title       string     `json:"title,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func New(req Request) *Job {
	return &Job{
		ID:        uuid.NewString(),
		SourceURL: req.SourceURL,
		MediaKind: req.MediaKind,
		Format:    req.Format,
		Quality:   req.Quality,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // FIFO order
}

func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*Job),
		order: make([]string, 0),
	}
}

func (s *Store) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.ID] = &cp
	s.order = append(s.order, j.ID)
	return nil
}

// Get returns a snapshot copy; callers never see the canonical record.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *Store) List(limit, offset int, status string) ([]Job, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Job
	for _, id := range s.order {
		j := s.jobs[id]
		if status == "" || string(j.Status) == status {
			filtered = append(filtered, *j)
		}
	}

	total := len(filtered)
	if offset >= total {
		return []Job{}, total
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return filtered[offset:end], total
}

// SetTitle records the media title reported by the extractor.
// Ignored once the job is terminal.
func (s *Store) SetTitle(id, title string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if !j.Status.Terminal() {
		j.Title = title
	}
	return *j, nil
}

// SetProgress applies a downloading-phase progress update. The first update
// moves pending to downloading. Lower or repeated values, and any update
// against a terminal job, are ignored; changed reports whether the record
// actually moved.
func (s *Store) SetProgress(id string, pct float64) (snap Job, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false, ErrNotFound
	}
	if j.Status.Terminal() {
		return *j, false, nil
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if j.Status == StatusPending {
		j.Status = StatusDownloading
		changed = true
	}
	if pct > j.Progress {
		j.Progress = pct
		changed = true
	}
	return *j, changed, nil
}

// MarkProcessing transitions the job into the post-download conversion phase.
func (s *Store) MarkProcessing(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	// A postprocessor line can arrive before any percent line.
	if j.Status == StatusPending {
		j.Status = StatusDownloading
	}
	if !validTransition(j.Status, StatusProcessing) {
		return *j, nil
	}
	j.Status = StatusProcessing
	return *j, nil
}

// Complete records the result file and finalizes the job.
func (s *Store) Complete(id, filename string, size int64, downloadURL string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if j.Status.Terminal() {
		return *j, nil
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.Filename = filename
	j.FileSize = size
	j.DownloadURL = downloadURL
	j.Error = ""
	now := time.Now().UTC()
	j.CompletedAt = &now
	return *j, nil
}

// Fail finalizes the job with a failure reason. Result fields stay unset.
func (s *Store) Fail(id, errMsg string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if j.Status.Terminal() {
		return *j, nil
	}
	j.Status = StatusFailed
	j.Error = errMsg
	now := time.Now().UTC()
	j.CompletedAt = &now
	return *j, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Stats() (pending, active, completed, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		switch j.Status {
		case StatusPending:
			pending++
		case StatusDownloading, StatusProcessing:
			active++
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return
}
