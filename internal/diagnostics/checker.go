// Package diagnostics backs the health endpoint: is the extractor binary
// present, and is the upstream media source reachable.
package diagnostics

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"
)

type ItemStatus string

const (
	StatusPass ItemStatus = "pass"
	StatusFail ItemStatus = "fail"
)

type Item struct {
	Name    string     `json:"name"`
	Status  ItemStatus `json:"status"`
	Message string     `json:"message"`
}

type Report struct {
	Status      string    `json:"status"` // healthy or degraded
	GeneratedAt time.Time `json:"generated_at"`
	Items       []Item    `json:"items"`
}

// Checker validates the external extractor and upstream reachability.
type Checker struct {
	binName  string
	probeURL string
	lookPath func(string) (string, error)
	client   *http.Client
}

func NewChecker(binName, probeURL string) *Checker {
	return &Checker{
		binName:  binName,
		probeURL: probeURL,
		lookPath: exec.LookPath,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context) Report {
	items := []Item{
		c.checkExtractor(),
		c.checkUpstream(ctx),
	}

	status := "healthy"
	for _, item := range items {
		if item.Status == StatusFail {
			status = "degraded"
			break
		}
	}

	return Report{
		Status:      status,
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
}

func (c *Checker) checkExtractor() Item {
	path, err := c.lookPath(c.binName)
	if err != nil {
		return Item{
			Name:    "extractor",
			Status:  StatusFail,
			Message: fmt.Sprintf("%s not found in PATH", c.binName),
		}
	}
	return Item{
		Name:    "extractor",
		Status:  StatusPass,
		Message: fmt.Sprintf("found at %s", path),
	}
}

func (c *Checker) checkUpstream(ctx context.Context) Item {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		return Item{Name: "upstream", Status: StatusFail, Message: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Item{
			Name:    "upstream",
			Status:  StatusFail,
			Message: fmt.Sprintf("unreachable: %v", err),
		}
	}
	resp.Body.Close()

	return Item{
		Name:    "upstream",
		Status:  StatusPass,
		Message: fmt.Sprintf("reachable (%d)", resp.StatusCode),
	}
}
