package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/oxhq/scopeq/providers/catalog"
)

// unknownLanguage is the Stats bucket for files no grammar claims.
const unknownLanguage = "unknown"

// FileWalker discovers the files of a FileScope. Discovery runs on a single
// goroutine; stat and language detection fan out over a fixed worker set.
type FileWalker struct {
	workers int
	buffer  int
}

// NewFileWalker creates a walker sized for I/O bound work.
func NewFileWalker() *FileWalker {
	return &FileWalker{
		workers: runtime.NumCPU() * 2,
		buffer:  1000,
	}
}

// WalkResult represents a discovered file. Language is empty when no
// registered grammar claims the file's extension.
type WalkResult struct {
	Path     string
	Info     fs.FileInfo
	Language string
	Error    error
}

// Walk streams the files of scope. A scope whose path names a regular file
// yields that file alone. The channel is closed once discovery ends or ctx
// is cancelled.
func (fw *FileWalker) Walk(ctx context.Context, scope FileScope) (<-chan WalkResult, error) {
	root, err := statScope(scope)
	if err != nil {
		return nil, err
	}
	language := scope.Language
	if id, ok := catalog.Normalize(language); ok {
		language = id
	}

	paths := make(chan string, fw.buffer)
	out := make(chan WalkResult, fw.buffer)

	go func() {
		defer close(paths)
		if !root.IsDir() {
			send(ctx, paths, scope.Path)
			return
		}
		d := &discovery{scope: scope, out: paths}
		if scope.FollowSymlinks {
			d.seen = map[string]struct{}{realPath(scope.Path): {}}
		}
		d.dir(ctx, scope.Path, 0)
	}()

	var g errgroup.Group
	for i := 0; i < fw.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case path, ok := <-paths:
					if !ok || !send(ctx, out, describe(path, language)) {
						return nil
					}
				}
			}
		})
	}
	go func() {
		_ = g.Wait()
		close(out)
	}()

	return out, nil
}

// LanguageStats tallies the files under a scope.
type LanguageStats struct {
	Files      int            `json:"files"`
	Unreadable int            `json:"unreadable,omitempty"`
	ByLanguage map[string]int `json:"languages"`
}

// Stats walks scope and counts files per detected language. Files no grammar
// claims are counted as "unknown".
func (fw *FileWalker) Stats(ctx context.Context, scope FileScope) (LanguageStats, error) {
	stats := LanguageStats{ByLanguage: make(map[string]int)}
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return stats, err
	}
	for r := range results {
		if r.Error != nil {
			stats.Unreadable++
			continue
		}
		stats.Files++
		if r.Language == "" {
			stats.ByLanguage[unknownLanguage]++
		} else {
			stats.ByLanguage[r.Language]++
		}
	}
	return stats, ctx.Err()
}

// discovery is the state of one directory traversal.
type discovery struct {
	scope FileScope
	out   chan<- string
	sent  int
	seen  map[string]struct{} // resolved directories; nil unless following links
}

func (d *discovery) full() bool {
	return d.scope.MaxFiles > 0 && d.sent >= d.scope.MaxFiles
}

// dir emits the matching files below path. It reports false once the walk
// must stop.
func (d *discovery) dir(ctx context.Context, path string, depth int) bool {
	if d.scope.MaxDepth > 0 && depth > d.scope.MaxDepth {
		return true
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return true // unreadable directories are skipped
	}

	for _, entry := range entries {
		if ctx.Err() != nil || d.full() {
			return false
		}
		child := filepath.Join(path, entry.Name())
		if matchAny(child, d.scope.Exclude) {
			continue
		}

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 && d.scope.FollowSymlinks {
			info, err := os.Stat(child)
			if err != nil {
				continue // dangling
			}
			isDir = info.IsDir()
		}

		if isDir {
			if !d.enter(child) {
				continue
			}
			if !d.dir(ctx, child, depth+1) {
				return false
			}
			continue
		}

		if len(d.scope.Include) > 0 && !matchAny(child, d.scope.Include) {
			continue
		}
		if !send(ctx, d.out, child) {
			return false
		}
		d.sent++
	}
	return true
}

// enter records a directory visit and reports whether it is the first.
func (d *discovery) enter(path string) bool {
	if d.seen == nil {
		return true
	}
	resolved := realPath(path)
	if _, ok := d.seen[resolved]; ok {
		return false
	}
	d.seen[resolved] = struct{}{}
	return true
}

func describe(path, language string) WalkResult {
	info, err := os.Stat(path)
	if err != nil {
		return WalkResult{Path: path, Error: err}
	}
	if language == "" {
		language = languageOf(path)
	}
	return WalkResult{Path: path, Info: info, Language: language}
}

// languageOf maps a file extension to a registered language id.
func languageOf(path string) string {
	if info, ok := catalog.LookupByPath(path); ok {
		return info.ID
	}
	return ""
}

func matchAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchGlob(path, pattern) {
			return true
		}
	}
	return false
}

// matchGlob matches path against a doublestar pattern. Patterns without a
// separator are also tried against the base name.
func matchGlob(path, pattern string) bool {
	path = filepath.ToSlash(path)
	if ok, err := doublestar.Match(pattern, path); err == nil && ok {
		return true
	}
	if strings.Contains(pattern, "/") {
		return false
	}
	ok, err := doublestar.Match(pattern, filepath.Base(path))
	return err == nil && ok
}

func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil && resolved != "" {
		return resolved
	}
	return path
}

func statScope(scope FileScope) (fs.FileInfo, error) {
	if scope.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	info, err := os.Stat(scope.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot access path %s: %w", scope.Path, err)
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %s is neither a directory nor a regular file", scope.Path)
	}
	return info, nil
}

func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}
