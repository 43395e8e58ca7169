package core

import (
	"time"

	"github.com/oxhq/scopeq/highlight"
)

// FileScope defines which files to process in filesystem operations
type FileScope struct {
	Path           string   `json:"path"`                // Root directory or single file
	Include        []string `json:"include,omitempty"`   // File patterns to include (*.go, **/*.ts)
	Exclude        []string `json:"exclude,omitempty"`   // File patterns to exclude
	MaxDepth       int      `json:"max_depth,omitempty"` // Max directory depth (0 = unlimited)
	MaxFiles       int      `json:"max_files,omitempty"` // Max files to process (0 = unlimited)
	FollowSymlinks bool     `json:"follow_symlinks"`     // Follow symbolic links
	Language       string   `json:"language,omitempty"`  // Auto-detect by extension if empty
}

// Document is one version of a source text to highlight.
type Document struct {
	URI      string `json:"uri"`
	Language string `json:"language"`
	Version  int64  `json:"version"`
	Source   []byte `json:"-"`
}

// DocumentResult is the outcome of highlighting one document version.
// Result is nil when Err is set or the version was superseded.
type DocumentResult struct {
	URI        string            `json:"uri"`
	Language   string            `json:"language"`
	Version    int64             `json:"version"`
	Source     []byte            `json:"-"`
	Result     *highlight.Result `json:"result,omitempty"`
	Err        error             `json:"-"`
	Cached     bool              `json:"cached"`
	Superseded bool              `json:"superseded"`
	Duration   time.Duration     `json:"duration"`
}

// OK reports whether the document produced a result.
func (r DocumentResult) OK() bool {
	return r.Err == nil && !r.Superseded && r.Result != nil
}

// BatchStats summarises a pipeline run.
type BatchStats struct {
	Documents   int           `json:"documents"`
	Highlighted int           `json:"highlighted"`
	Cached      int           `json:"cached"`
	Superseded  int           `json:"superseded"`
	Failed      int           `json:"failed"`
	Spans       int           `json:"spans"`
	Duration    time.Duration `json:"duration"`
}

// Summarize tallies a batch of results.
func Summarize(results []DocumentResult, elapsed time.Duration) BatchStats {
	stats := BatchStats{Documents: len(results), Duration: elapsed}
	for _, r := range results {
		switch {
		case r.Superseded:
			stats.Superseded++
		case r.Err != nil:
			stats.Failed++
		case r.Cached:
			stats.Cached++
			stats.Spans += len(r.Result.Spans)
		case r.Result != nil:
			stats.Highlighted++
			stats.Spans += len(r.Result.Spans)
		}
	}
	return stats
}
