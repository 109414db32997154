// Package syncer drives one reconciliation pass: it streams the to-process
// set through the reconciler, feeds the resulting download tasks to a fixed
// pool of workers, and aggregates a final summary. The reconciler runs
// single-threaded ahead of the pool, so plans are streamed rather than
// materialized.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go-photosync/internal/downloader"
	"go-photosync/internal/models"
	"go-photosync/internal/photos"
	"go-photosync/internal/prober"
	"go-photosync/internal/reconciler"
	"go-photosync/internal/store"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
)

// Error classes reported for failed tasks.
const (
	ClassTransient     = "transient-io"
	ClassSizeMismatch  = "size-mismatch"
	ClassDataIntegrity = "data-integrity"
	ClassLocalStorage  = "local-storage"
	ClassConflict      = "conflict"
	ClassHTTP          = "http-error"
	ClassUnknown       = "unknown"
)

// FailedTask records one download that did not commit.
type FailedTask struct {
	AssetID string
	Kind    models.VersionKind
	Class   string
	Err     string
}

// SkippedAsset records one asset the run could not plan for.
type SkippedAsset struct {
	AssetID string
	Reason  string
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	AssetsProcessed int
	TasksPlanned    int
	Committed       int
	Skipped         []SkippedAsset
	Failed          []FailedTask
}

func (s Summary) String() string {
	return fmt.Sprintf("%d asset(s) processed, %d version(s) downloaded, %d skipped, %d failed",
		s.AssetsProcessed, s.Committed, len(s.Skipped), len(s.Failed))
}

// Orchestrator wires the reconciler, the download pipeline and the store
// into a run loop.
type Orchestrator struct {
	store       *store.Store
	prober      *prober.Prober
	rec         *reconciler.Reconciler
	dl          *downloader.Downloader
	concurrency int
	writer      *uilive.Writer // optional progress output
}

// New creates an orchestrator with the given worker count (minimum 1).
// writer may be nil to disable progress output.
func New(s *store.Store, p *prober.Prober, rec *reconciler.Reconciler, dl *downloader.Downloader, concurrency int, writer *uilive.Writer) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		store:       s,
		prober:      p,
		rec:         rec,
		dl:          dl,
		concurrency: concurrency,
		writer:      writer,
	}
}

type eventKind int

const (
	evProcessed eventKind = iota
	evSkipped
	evCommitted
	evFailed
)

type event struct {
	kind    eventKind
	assetID string
	version models.VersionKind
	planned int
	class   string
	err     error
	fatal   bool
}

// Run executes one sync pass over the source. Per-asset and per-version
// failures are isolated; only local storage errors (or caller cancellation)
// end the run early, and even then the returned summary covers everything
// finished up to that point.
func (o *Orchestrator) Run(ctx context.Context, src photos.Source) (Summary, error) {
	// Startup hygiene: stray temp files and writer-less pending rows from a
	// previous run carry no information the reconciler can't rebuild.
	if _, err := o.prober.SweepOrphans(); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", downloader.ErrLocalStorage, err)
	}
	if _, err := o.store.SweepPending(); err != nil {
		return Summary{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan reconciler.Task)
	events := make(chan event)

	var wg sync.WaitGroup
	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			o.worker(runCtx, id, tasks, events, cancel)
		}(i + 1)
	}

	var summary Summary
	var fatalErr error
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		for ev := range events {
			switch ev.kind {
			case evProcessed:
				summary.AssetsProcessed++
				summary.TasksPlanned += ev.planned
			case evSkipped:
				summary.Skipped = append(summary.Skipped, SkippedAsset{
					AssetID: ev.assetID, Reason: ev.err.Error(),
				})
			case evCommitted:
				summary.Committed++
			case evFailed:
				summary.Failed = append(summary.Failed, FailedTask{
					AssetID: ev.assetID, Kind: ev.version, Class: ev.class, Err: ev.err.Error(),
				})
				if ev.fatal && fatalErr == nil {
					fatalErr = ev.err
				}
			}
		}
	}()

	srcErr := src.Each(runCtx, func(asset models.Asset) error {
		plan, err := o.rec.Plan(asset)
		if errors.Is(err, reconciler.ErrDataIntegrity) {
			log.WithError(err).Warnf("Skipping asset %s", asset.ID)
			events <- event{kind: evSkipped, assetID: asset.ID, err: err}
			return nil
		}
		if err != nil {
			return err
		}

		events <- event{kind: evProcessed, assetID: asset.ID, planned: len(plan.Tasks)}
		for _, task := range plan.Tasks {
			select {
			case tasks <- task:
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
		return nil
	})

	close(tasks)
	wg.Wait()
	close(events)
	<-aggDone

	log.Infof("Sync finished: %s", summary)
	switch {
	case fatalErr != nil:
		return summary, fatalErr
	case ctx.Err() != nil:
		return summary, ctx.Err()
	case srcErr != nil && !errors.Is(srcErr, context.Canceled):
		return summary, srcErr
	}
	return summary, nil
}

func (o *Orchestrator) worker(ctx context.Context, id int, tasks <-chan reconciler.Task, events chan<- event, cancel context.CancelFunc) {
	logPrefix := fmt.Sprintf("Worker-%d", id)
	for task := range tasks {
		if ctx.Err() != nil {
			// Drain remaining tasks without starting new downloads.
			continue
		}
		o.progressf("[%s] Downloading %s...\n", logPrefix, task.TargetFilename)
		ev := o.execute(ctx, task)
		if ev.fatal {
			log.WithError(ev.err).Error("Local storage failure, halting run")
			cancel()
		}
		events <- ev
	}
	log.Debugf("[%s] Exiting", logPrefix)
}

// execute runs one task through the begin/fetch/commit protocol. Any
// failure aborts the pending row and removes the temp file, leaving no
// trace for the next run to trip over.
func (o *Orchestrator) execute(ctx context.Context, task reconciler.Task) event {
	token, err := o.store.BeginVersion(task.AssetID, task.Kind, task.TargetFilename, task.ExpectedSize)
	if errors.Is(err, store.ErrConflict) {
		// The reconciler never emits a task for a committed key, so this is
		// a bug signal, not a user condition.
		log.Errorf("BUG: version %s/%s already committed at download time", task.AssetID, task.Kind)
		return event{kind: evFailed, assetID: task.AssetID, version: task.Kind, class: ClassConflict, err: err}
	}
	if err != nil {
		return event{kind: evFailed, assetID: task.AssetID, version: task.Kind, class: ClassLocalStorage, err: err, fatal: true}
	}

	result, err := o.dl.Fetch(ctx, task)
	if err != nil {
		if abortErr := o.store.AbortVersion(token); abortErr != nil && !errors.Is(abortErr, store.ErrStaleToken) {
			log.WithError(abortErr).Warnf("Failed to abort pending version %s/%s", task.AssetID, task.Kind)
		}
		return event{
			kind: evFailed, assetID: task.AssetID, version: task.Kind,
			class: classify(err), err: err, fatal: downloader.Fatal(err),
		}
	}

	if err := o.store.CommitVersion(token, result.BytesWritten, result.Checksum); err != nil {
		if errors.Is(err, store.ErrStaleToken) {
			log.Errorf("Commit token for %s/%s went stale, store was reset underneath the run", task.AssetID, task.Kind)
			return event{kind: evFailed, assetID: task.AssetID, version: task.Kind, class: ClassDataIntegrity, err: err}
		}
		return event{kind: evFailed, assetID: task.AssetID, version: task.Kind, class: ClassLocalStorage, err: err, fatal: true}
	}

	o.progressf("Committed %s (%d bytes)\n", task.TargetFilename, result.BytesWritten)
	return event{kind: evCommitted, assetID: task.AssetID, version: task.Kind}
}

func (o *Orchestrator) progressf(format string, args ...interface{}) {
	if o.writer == nil {
		return
	}
	fmt.Fprintf(o.writer.Newline(), format, args...)
}

func classify(err error) string {
	switch {
	case errors.Is(err, store.ErrConflict):
		return ClassConflict
	case errors.Is(err, store.ErrStaleToken), errors.Is(err, reconciler.ErrDataIntegrity):
		return ClassDataIntegrity
	case errors.Is(err, downloader.ErrSizeMismatch):
		return ClassSizeMismatch
	case errors.Is(err, downloader.ErrLocalStorage):
		return ClassLocalStorage
	case downloader.Transient(err):
		return ClassTransient
	case errors.Is(err, downloader.ErrHTTPStatus):
		return ClassHTTP
	}
	return ClassUnknown
}
