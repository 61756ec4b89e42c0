// Package export renders batches of edited images to disk in parallel.
// Jobs run on a worker pool; one bad image fails its own job and nothing
// else. Progress is reported over a channel so a UI or CLI can show a
// live count, and the final summary carries one outcome per job so every
// failure stays attributable to its source file.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/decode"
	"github.com/divanvisagie/Photograph/encode"
)

// Task is one image to export with its edit state.
type Task struct {
	SourcePath string
	State      photograph.EditState
}

// Job is a scheduled task with its resolved output path.
type Job struct {
	ID         uuid.UUID
	SourcePath string
	State      photograph.EditState
	OutputPath string
}

// Options controls a batch export.
type Options struct {
	OutputDir string
	Format    encode.Format
	Quality   int            // JPEG quality; 0 means the profile default
	Profile   encode.Profile // speed/size tradeoff for the encoders
	MaxEdge   int            // downscale longer edge to this, 0 keeps full size
	Workers   int            // 0 means GOMAXPROCS
}

// Event is a progress snapshot, sent after every completed job.
type Event struct {
	Done    int
	Total   int
	OK      int
	Failed  int
	Current string // source path of the job that just finished
}

// Result is the outcome of one job: exactly one per submitted task, with
// the error when it failed.
type Result struct {
	JobID      uuid.UUID
	SourcePath string
	OutputPath string
	Err        error // nil on success
}

// Summary is the final result of a batch. Results holds one entry per
// submitted job, in job order, so every failure stays attributable to
// its source file.
type Summary struct {
	Total      int
	OK         int
	Failed     int
	OutputDir  string
	Elapsed    time.Duration
	FirstError error
	Results    []Result
}

// Orchestrator renders export batches through a backend executor.
type Orchestrator struct {
	exec *backend.Executor
}

func New(exec *backend.Executor) *Orchestrator {
	return &Orchestrator{exec: exec}
}

// BuildJobs assigns every task a unique output path under outputDir.
// Name collisions, whether with files already on disk or between tasks
// in the same batch, resolve to stem-2, stem-3 and so on.
func BuildJobs(tasks []Task, outputDir string, format encode.Format) []Job {
	reserved := make(map[string]bool)
	jobs := make([]Job, 0, len(tasks))
	for _, task := range tasks {
		jobs = append(jobs, Job{
			ID:         uuid.New(),
			SourcePath: task.SourcePath,
			State:      task.State,
			OutputPath: buildOutputPath(task.SourcePath, outputDir, format, reserved),
		})
	}
	return jobs
}

func buildOutputPath(sourcePath, outputDir string, format encode.Format, reserved map[string]bool) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	if stem == "" {
		stem = "image"
	}
	base := filepath.Join(outputDir, stem+format.Ext())
	if pathAvailable(base, reserved) {
		reserved[base] = true
		return base
	}
	for n := 2; n < 10000; n++ {
		candidate := filepath.Join(outputDir, fmt.Sprintf("%s-%d%s", stem, n, format.Ext()))
		if pathAvailable(candidate, reserved) {
			reserved[candidate] = true
			return candidate
		}
	}
	fallback := filepath.Join(outputDir, stem+"-final"+format.Ext())
	reserved[fallback] = true
	return fallback
}

func pathAvailable(path string, reserved map[string]bool) bool {
	if reserved[path] {
		return false
	}
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// Run exports all tasks and blocks until the batch finishes. Progress
// events go to events if non-nil; sends never block, a slow consumer
// just misses intermediate snapshots. Cancelling ctx fails the jobs that
// have not started yet.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task, opts Options, events chan<- Event) Summary {
	log := photograph.Logger()
	started := time.Now()
	jobs := BuildJobs(tasks, opts.OutputDir, opts.Format)
	total := len(jobs)

	var done, ok, failed atomic.Int64
	var firstErrMu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		firstErrMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		firstErrMu.Unlock()
	}

	pool := newWorkerPool(opts.Workers)
	defer pool.close()

	// One slot per job, written only by that job's worker.
	results := make([]Result, total)

	work := make([]func(), 0, total)
	for i := range jobs {
		i, job := i, jobs[i]
		work = append(work, func() {
			err := ctx.Err()
			if err == nil {
				err = o.renderOne(job, opts)
			}
			results[i] = Result{
				JobID:      job.ID,
				SourcePath: job.SourcePath,
				OutputPath: job.OutputPath,
				Err:        err,
			}
			if err != nil {
				failed.Add(1)
				recordErr(fmt.Errorf("%s: %w", job.SourcePath, err))
				log.Error("export job failed",
					"job", job.ID, "source", job.SourcePath, "error", err)
			} else {
				ok.Add(1)
				log.Debug("export job finished",
					"job", job.ID, "output", job.OutputPath)
			}
			d := done.Add(1)
			if events != nil {
				ev := Event{
					Done: int(d), Total: total,
					OK: int(ok.Load()), Failed: int(failed.Load()),
					Current: job.SourcePath,
				}
				select {
				case events <- ev:
				default:
				}
			}
		})
	}
	pool.executeAll(work)

	return Summary{
		Total:      total,
		OK:         int(ok.Load()),
		Failed:     int(failed.Load()),
		OutputDir:  opts.OutputDir,
		Elapsed:    time.Since(started),
		FirstError: firstErr,
		Results:    results,
	}
}

func (o *Orchestrator) renderOne(job Job, opts Options) error {
	src, err := decode.Open(job.SourcePath)
	if err != nil {
		return err
	}
	rendered, err := o.exec.Render(src, job.State)
	if err != nil {
		return err
	}
	return encode.Write(job.OutputPath, rendered, encode.Options{
		Format:  opts.Format,
		Quality: opts.Quality,
		Profile: opts.Profile,
		MaxEdge: opts.MaxEdge,
	})
}
