// Package batch drives the conversion pipeline over a root directory holding
// one object per subdirectory. Objects are independent (no shared state, no
// locking), so they run across a bounded worker pool; one object's failure is
// recorded and never aborts its siblings.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"articulate/internal/logging"
	"articulate/internal/pipeline"
)

// ObjectResult is one object's outcome. Err is nil on success; Kind is the
// stable failure classification for the summary.
type ObjectResult struct {
	Index  int
	Name   string
	Dir    string
	Result *pipeline.Result
	Err    error
	Kind   string
}

// Summary aggregates a whole run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Results   []ObjectResult
}

// kinder is implemented by every classified error in the tree: structural,
// reference, asset and converter failures all carry a stable kind.
type kinder interface {
	Kind() string
}

// Classify maps an object failure to its summary kind. Errors without a
// declared kind (I/O, malformed descriptions) fall back to "error";
// cancellation is its own kind.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "error"
}

// Run converts every object subdirectory of root. The returned error is only
// non-nil for environment failures (root unreadable); per-object failures
// live in the Summary. Cancellation is cooperative at object boundaries:
// in-flight objects finish, queued ones are marked cancelled.
func Run(ctx context.Context, root string, cfg Config) (*Summary, error) {
	log := logging.New("batch")

	dirs, err := objectDirs(root)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no object directories under %s", root)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log.Info("batch starting", "objects", len(dirs), "workers", workers)

	start := time.Now()
	opts := cfg.PipelineOptions()
	results := make([]ObjectResult, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, dir := range dirs {
		g.Go(func() error {
			or := ObjectResult{Index: i, Name: filepath.Base(dir), Dir: dir}
			// Object boundary: work already running finishes, work not yet
			// started is cancelled.
			if err := gctx.Err(); err != nil {
				or.Err = err
				or.Kind = Classify(err)
				results[i] = or
				return nil
			}
			res, err := pipeline.Run(gctx, dir, opts)
			or.Result = res
			if res != nil && res.Object != "" {
				or.Name = res.Object
			}
			if err != nil {
				or.Err = err
				or.Kind = Classify(err)
				log.Error("object failed", "object", or.Name, "kind", or.Kind, "error", err)
			}
			results[i] = or
			return nil
		})
	}
	_ = g.Wait() // errors captured in ObjectResult.Err

	s := &Summary{Total: len(results), Elapsed: time.Since(start), Results: results}
	for _, r := range results {
		if r.Err == nil {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	log.Info("batch finished", "total", s.Total, "succeeded", s.Succeeded, "failed", s.Failed)
	return s, nil
}

// objectDirs lists the object subdirectories of root, sorted by name. Hidden
// directories are skipped.
func objectDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read batch root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}
