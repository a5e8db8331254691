// Package storage owns the on-disk layout of extraction results: one
// directory per job under a base dir.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) jobDir(jobID string) (string, error) {
	// Job ids are uuids, but guard against traversal anyway.
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("invalid job id: %s", jobID)
	}
	return filepath.Join(s.baseDir, jobID), nil
}

// CreateJobDir makes the output directory the extractor writes into.
func (s *Store) CreateJobDir(jobID string) (string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	return dir, nil
}

// ResultFile returns the downloaded artifact for a job. The extractor leaves
// exactly one media file behind; if several exist (leftover fragments), the
// largest wins.
func (s *Store) ResultFile(jobID string) (path string, size int64, err error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read job dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// yt-dlp leaves .part files behind on interrupted downloads
		if strings.HasSuffix(entry.Name(), ".part") || strings.HasSuffix(entry.Name(), ".ytdl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > size || path == "" {
			path = filepath.Join(dir, entry.Name())
			size = info.Size()
		}
	}

	if path == "" {
		return "", 0, fmt.Errorf("no result file found for job %s", jobID)
	}
	return path, size, nil
}

// FilePath resolves a stored filename inside a job's directory, rejecting
// anything that would escape it.
func (s *Store) FilePath(jobID, filename string) (string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", err
	}
	if filename == "" || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid filename: %s", filename)
	}
	full := filepath.Join(dir, filename)
	if !strings.HasPrefix(full, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", filename)
	}
	return full, nil
}

// Remove deletes a job's directory and everything in it.
func (s *Store) Remove(jobID string) error {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
