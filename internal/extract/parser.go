package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// eventKind classifies one parsed line of extractor output.
type eventKind int

const (
	eventNone eventKind = iota
	eventProgress
	eventPhase
	eventDestination
)

type event struct {
	kind    eventKind
	percent float64
	title   string
}

var (
	// "[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:05"
	progressRe = regexp.MustCompile(`^\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)

	// "[download] Destination: /tmp/jobs/abc/Some Title.webm"
	destinationRe = regexp.MustCompile(`^\[download\]\s+Destination:\s+(.+)$`)

	// Post-processing steps reported by the tool; any of these means the raw
	// fetch is done and conversion has started.
	phaseRe = regexp.MustCompile(`^\[(ExtractAudio|VideoConvertor|VideoRemuxer|Merger|Fixup\w*)\]`)
)

// parseLine interprets one line of extractor output. Parsing is total:
// anything unrecognized (including garbled progress lines) yields eventNone
// and must never abort the job.
func parseLine(line string) event {
	line = strings.TrimSpace(line)
	if line == "" {
		return event{kind: eventNone}
	}

	if m := destinationRe.FindStringSubmatch(line); m != nil {
		return event{kind: eventDestination, title: titleFromPath(m[1])}
	}

	if m := progressRe.FindStringSubmatch(line); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil || pct < 0 || pct > 100 {
			return event{kind: eventNone}
		}
		return event{kind: eventProgress, percent: pct}
	}

	if phaseRe.MatchString(line) {
		return event{kind: eventPhase}
	}

	return event{kind: eventNone}
}

// titleFromPath derives the media title from the tool's output filename.
func titleFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
