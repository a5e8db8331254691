package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mediagrab/orchestrator/internal/job"
)

// buildArgs assembles the yt-dlp invocation for one job. --newline forces
// one progress report per line so the output can be scanned as a stream.
func buildArgs(j job.Job, outDir string) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(outDir, "%(title)s.%(ext)s"),
	}

	switch j.MediaKind {
	case job.KindAudio:
		args = append(args,
			"-f", "bestaudio/best",
			"-x",
			"--audio-format", j.Format,
			"--audio-quality", j.Quality+"K",
		)
	case job.KindVideo:
		height := strings.TrimSuffix(j.Quality, "p")
		args = append(args,
			"-f", fmt.Sprintf("best[height<=%s][ext=%s]/best[height<=%s]/best", height, j.Format, height),
			"--remux-video", j.Format,
		)
	}

	args = append(args, j.SourceURL)
	return args
}
