// Package extract runs the external media tool for one job at a time and
// translates its streaming output into job state updates.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediagrab/orchestrator/internal/job"
	"github.com/mediagrab/orchestrator/internal/storage"
)

// Publisher receives every job state change for fan-out to subscribers.
type Publisher interface {
	Publish(job.Job)
}

type Runner struct {
	store   job.JobStore
	pub     Publisher
	files   *storage.Store
	binPath string
	timeout time.Duration
}

type Options struct {
	BinPath string        // extractor binary, defaults to yt-dlp on PATH
	Timeout time.Duration // wall-clock cap per job
}

func NewRunner(store job.JobStore, pub Publisher, files *storage.Store, opts Options) *Runner {
	if opts.BinPath == "" {
		opts.BinPath = "yt-dlp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	return &Runner{
		store:   store,
		pub:     pub,
		files:   files,
		binPath: opts.BinPath,
		timeout: opts.Timeout,
	}
}

// Run drives one job to a terminal state. Every failure path records the
// reason on the job; nothing is thrown back to the submitter.
func (r *Runner) Run(ctx context.Context, jobID string) {
	snap, ok := r.store.Get(jobID)
	if !ok {
		log.Printf("extract: unknown job %s", jobID)
		return
	}

	outDir, err := r.files.CreateJobDir(jobID)
	if err != nil {
		r.fail(jobID, fmt.Sprintf("prepare output directory: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binPath, buildArgs(snap, outDir)...)
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.fail(jobID, fmt.Sprintf("attach to extractor output: %v", err))
		return
	}

	if err := cmd.Start(); err != nil {
		r.fail(jobID, fmt.Sprintf("start extractor: %v", err))
		return
	}

	r.consume(jobID, stdout)

	// Wait reaps the subprocess on every path; CommandContext kills it on
	// timeout or cancellation.
	if err := cmd.Wait(); err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			r.fail(jobID, fmt.Sprintf("timed out after %s", r.timeout))
		case ctx.Err() == context.Canceled:
			r.fail(jobID, "cancelled during shutdown")
		default:
			r.fail(jobID, fmt.Sprintf("extractor failed: %v: %s", err, stderrTail(&stderr)))
		}
		return
	}

	path, size, err := r.files.ResultFile(jobID)
	if err != nil {
		r.fail(jobID, fmt.Sprintf("extractor finished but no file was produced: %v", err))
		return
	}

	filename := filepath.Base(path)
	snap, err = r.store.Complete(jobID, filename, size, "/api/downloads/"+jobID+"/file")
	if err != nil {
		log.Printf("extract: complete job %s: %v", jobID, err)
		return
	}
	r.pub.Publish(snap)
	log.Printf("extract: job %s completed (%s, %d bytes)", jobID, filename, size)
}

// consume scans the tool's output line by line and applies state updates.
// Malformed lines are skipped; a garbled progress report must not abort the
// download.
func (r *Runner) consume(jobID string, out io.Reader) {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for scanner.Scan() {
		switch ev := parseLine(scanner.Text()); ev.kind {
		case eventProgress:
			snap, changed, err := r.store.SetProgress(jobID, ev.percent)
			if err == nil && changed {
				r.pub.Publish(snap)
			}
		case eventPhase:
			snap, err := r.store.MarkProcessing(jobID)
			if err == nil && snap.Status == job.StatusProcessing {
				r.pub.Publish(snap)
			}
		case eventDestination:
			if ev.title != "" {
				r.store.SetTitle(jobID, ev.title)
			}
		}
	}
}

func (r *Runner) fail(jobID, msg string) {
	snap, err := r.store.Fail(jobID, msg)
	if err != nil {
		log.Printf("extract: fail job %s: %v", jobID, err)
		return
	}
	r.pub.Publish(snap)
	log.Printf("extract: job %s failed: %s", jobID, msg)
}

// stderrTail keeps failure messages short; the tool can be chatty.
func stderrTail(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	tail := lines[len(lines)-1]
	if len(tail) > 300 {
		tail = tail[:300]
	}
	return tail
}
