package job

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned for lookups against an unknown job id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidRequest marks synchronous validation failures; no job record
	// is created for these.
	ErrInvalidRequest = errors.New("invalid request")
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Request is a download submission before admission.
type Request struct {
	SourceURL string    `json:"url"`
	MediaKind MediaKind `json:"type"`
	Format    string    `json:"format"`
	Quality   string    `json:"quality"`
}

// Kind-specific enumerated sets. Audio qualities are bitrate labels in kbps,
// video qualities are resolution labels.
var (
	audioFormats   = []string{"mp3", "m4a", "wav"}
	audioQualities = []string{"96", "128", "192", "320"}
	videoFormats   = []string{"mp4", "webm", "mkv"}
	videoQualities = []string{"360p", "480p", "720p", "1080p"}
)

// DefaultURLPatterns matches the upstream sources the service accepts.
func DefaultURLPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^https://(www\.|m\.)?youtube\.com/`),
		regexp.MustCompile(`^https://youtu\.be/`),
	}
}

// CompilePatterns builds an allow-list from configured pattern strings.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return DefaultURLPatterns(), nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("url pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Validate checks the request against the URL allow-list and the
// kind-specific format/quality sets.
func (r Request) Validate(allowed []*regexp.Regexp) error {
	url := strings.TrimSpace(r.SourceURL)
	if url == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}

	matched := false
	for _, re := range allowed {
		if re.MatchString(url) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: url not supported: %s", ErrInvalidRequest, url)
	}

	var formats, qualities []string
	switch r.MediaKind {
	case KindAudio:
		formats, qualities = audioFormats, audioQualities
	case KindVideo:
		formats, qualities = videoFormats, videoQualities
	default:
		return fmt.Errorf("%w: type must be audio or video, got %q", ErrInvalidRequest, r.MediaKind)
	}

	if !contains(formats, r.Format) {
		return fmt.Errorf("%w: format %q not valid for %s (allowed: %s)",
			ErrInvalidRequest, r.Format, r.MediaKind, strings.Join(formats, ", "))
	}
	if !contains(qualities, r.Quality) {
		return fmt.Errorf("%w: quality %q not valid for %s (allowed: %s)",
			ErrInvalidRequest, r.Quality, r.MediaKind, strings.Join(qualities, ", "))
	}

	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
