package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "jobs/"

// PersistentStore keeps job records in badger so history survives restarts.
// Mutations are serialized by a mutex; badger transactions alone would not
// give us the read-modify-write atomicity the progress updates need.
type PersistentStore struct {
	mu sync.Mutex
	db *badger.DB
}

func NewPersistentStore(dataDir string) (*PersistentStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &PersistentStore{db: db}, nil
}

func (s *PersistentStore) Close() error {
	return s.db.Close()
}

func (s *PersistentStore) put(j *Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+j.ID), data)
	})
}

func (s *PersistentStore) get(id string) (*Job, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &j, nil
}

func (s *PersistentStore) all() []*Job {
	var jobs []*Job
	s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var j Job
				if err := json.Unmarshal(val, &j); err != nil {
					return nil // skip unreadable records
				}
				jobs = append(jobs, &j)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	// FIFO order, matching the in-memory store
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

func (s *PersistentStore) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(j)
}

func (s *PersistentStore) Get(id string) (Job, bool) {
	j, err := s.get(id)
	if err != nil {
		return Job{}, false
	}
	return *j, true
}

func (s *PersistentStore) List(limit, offset int, status string) ([]Job, int) {
	var filtered []Job
	for _, j := range s.all() {
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

func (s *PersistentStore) SetTitle(id, title string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return Job{}, err
	}
	if !j.Status.Terminal() {
		j.Title = title
		if err := s.put(j); err != nil {
			return Job{}, err
		}
	}
	return *j, nil
}

func (s *PersistentStore) SetProgress(id string, pct float64) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return Job{}, false, err
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
	changed := false
	if j.Status == StatusPending {
		j.Status = StatusDownloading
		changed = true
	}
	if pct > j.Progress {
		j.Progress = pct
		changed = true
	}
	if changed {
		if err := s.put(j); err != nil {
			return Job{}, false, err
		}
	}
	return *j, changed, nil
}

func (s *PersistentStore) MarkProcessing(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return Job{}, err
	}
	if j.Status == StatusPending {
		j.Status = StatusDownloading
	}
	if !validTransition(j.Status, StatusProcessing) {
		return *j, nil
	}
	j.Status = StatusProcessing
	if err := s.put(j); err != nil {
		return Job{}, err
	}
	return *j, nil
}

func (s *PersistentStore) Complete(id, filename string, size int64, downloadURL string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return Job{}, err
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
	if err := s.put(j); err != nil {
		return Job{}, err
	}
	return *j, nil
}

func (s *PersistentStore) Fail(id, errMsg string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return Job{}, err
	}
	if j.Status.Terminal() {
		return *j, nil
	}
	j.Status = StatusFailed
	j.Error = errMsg
	now := time.Now().UTC()
	j.CompletedAt = &now
	if err := s.put(j); err != nil {
		return Job{}, err
	}
	return *j, nil
}

func (s *PersistentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

func (s *PersistentStore) Stats() (pending, active, completed, failed int) {
	for _, j := range s.all() {
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
