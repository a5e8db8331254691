package diagnostics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRun_Healthy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c := NewChecker("yt-dlp", upstream.URL)
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	report := c.Run(context.Background())

	if report.Status != "healthy" {
		t.Errorf("expected healthy, got %s: %+v", report.Status, report.Items)
	}
	if len(report.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(report.Items))
	}
	for _, item := range report.Items {
		if item.Status != StatusPass {
			t.Errorf("item %s failed: %s", item.Name, item.Message)
		}
	}
}

func TestRun_MissingExtractor(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	c := NewChecker("yt-dlp", upstream.URL)
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	report := c.Run(context.Background())

	if report.Status != "degraded" {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	var found bool
	for _, item := range report.Items {
		if item.Name == "extractor" && item.Status == StatusFail {
			found = true
		}
	}
	if !found {
		t.Error("expected extractor failure item")
	}
}

func TestRun_UnreachableUpstream(t *testing.T) {
	// A closed server gives a connection refused without touching the network.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	c := NewChecker("yt-dlp", upstream.URL)
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	report := c.Run(context.Background())

	if report.Status != "degraded" {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	for _, item := range report.Items {
		if item.Name == "upstream" && item.Status != StatusFail {
			t.Error("expected upstream failure")
		}
	}
}
