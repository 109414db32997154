// Package downloader fetches single asset renditions over HTTP and lands
// them atomically in the storage directory. All writes go through a *.part
// temp file in the same directory, so a rename either fully publishes the
// file or leaves nothing at the final path.
package downloader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-photosync/internal/reconciler"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Custom downloader errors. Size mismatches get one retry then turn
// permanent; local storage errors are fatal for the whole run.
var (
	ErrSizeMismatch = errors.New("downloaded size mismatch")
	ErrHTTPStatus   = errors.New("unexpected HTTP status code")
	ErrLocalStorage = errors.New("local storage error") // Covers create, write, rename
	ErrRequest      = errors.New("HTTP request error")
)

// statusError carries the response code so retry classification can tell a
// rate limit from a hard 404.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: received status %d from %s", ErrHTTPStatus, e.code, e.url)
}

func (e *statusError) Is(target error) bool { return target == ErrHTTPStatus }

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Result describes one successfully landed rendition.
type Result struct {
	BytesWritten int64
	// Checksum is the hex BLAKE3 digest of the streamed bytes. Best-effort
	// integrity metadata, not a verified invariant.
	Checksum string
}

// Downloader fetches renditions with bounded retries into a flat directory.
type Downloader struct {
	client       *http.Client
	dir          string
	maxAttempts  int
	initialDelay time.Duration
	timeout      time.Duration
}

// New creates a Downloader writing into dir. maxAttempts bounds tries per
// task (minimum 1), initialDelay seeds the exponential backoff, timeout
// caps each individual attempt.
func New(client *http.Client, dir string, maxAttempts int, initialDelay, timeout time.Duration) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Downloader{
		client:       client,
		dir:          dir,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		timeout:      timeout,
	}
}

// Fetch downloads one rendition, retrying transient failures with
// exponential backoff. Permanent failures and cancellation return
// immediately; a size mismatch is retried exactly once before it is treated
// as permanent. On success the file exists at its final path; on failure no
// trace is left behind.
func (d *Downloader) Fetch(ctx context.Context, task reconciler.Task) (Result, error) {
	var lastErr error
	sizeMismatches := 0

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		result, err := d.fetchOnce(ctx, task)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("download cancelled: %w", lastErr)
		}
		if errors.Is(err, ErrLocalStorage) {
			return Result{}, err
		}
		if errors.Is(err, ErrSizeMismatch) {
			sizeMismatches++
			// A recurring mismatch means the remote object changed or is
			// corrupt; retrying further would loop forever.
			if sizeMismatches > 1 {
				return Result{}, err
			}
		} else if !Transient(err) {
			return Result{}, err
		}

		if attempt < d.maxAttempts {
			delay := d.initialDelay * time.Duration(1<<(attempt-1))
			log.WithError(err).Warnf("Download of %s failed (attempt %d/%d), retrying in %s",
				task.TargetFilename, attempt, d.maxAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Result{}, fmt.Errorf("download cancelled: %w", lastErr)
			}
		}
	}
	return Result{}, lastErr
}

func (d *Downloader) fetchOnce(ctx context.Context, task reconciler.Task) (Result, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: creating request for %s: %v", ErrRequest, task.URL, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: performing request for %s: %v", ErrRequest, task.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, &statusError{code: resp.StatusCode, url: task.URL}
	}

	tempFile, err := os.CreateTemp(d.dir, task.TargetFilename+".*.part")
	if err != nil {
		return Result{}, fmt.Errorf("%w: creating temp file for %s: %v", ErrLocalStorage, task.TargetFilename, err)
	}

	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			tempFile.Close()
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temp file %s", tempFile.Name())
			}
		}
	}()

	hasher := blake3.New()
	counter := &countingWriter{file: tempFile}
	if _, err := io.Copy(io.MultiWriter(counter, hasher), resp.Body); err != nil {
		if counter.writeErr != nil {
			return Result{}, fmt.Errorf("%w: writing %s: %v", ErrLocalStorage, tempFile.Name(), counter.writeErr)
		}
		return Result{}, fmt.Errorf("%w: streaming %s: %v", ErrRequest, task.URL, err)
	}

	if task.ExpectedSize > 0 && counter.total != task.ExpectedSize {
		return Result{}, fmt.Errorf("%w: %s: expected %d bytes, received %d",
			ErrSizeMismatch, task.TargetFilename, task.ExpectedSize, counter.total)
	}

	if err := tempFile.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: closing temp file %s: %v", ErrLocalStorage, tempFile.Name(), err)
	}

	finalPath := filepath.Join(d.dir, task.TargetFilename)
	if err := os.Rename(tempFile.Name(), finalPath); err != nil {
		return Result{}, fmt.Errorf("%w: renaming %s to %s: %v", ErrLocalStorage, tempFile.Name(), finalPath, err)
	}
	shouldCleanupTemp = false

	log.Debugf("Downloaded %s (%d bytes)", task.TargetFilename, counter.total)
	return Result{
		BytesWritten: counter.total,
		Checksum:     hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Transient reports whether err is worth retrying: network-level request
// failures, rate limiting, and 5xx responses.
func Transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return errors.Is(err, ErrRequest)
}

// Fatal reports whether err means the run cannot make progress at all
// (disk full, permission denied on the storage directory).
func Fatal(err error) bool {
	return errors.Is(err, ErrLocalStorage)
}

// countingWriter tracks bytes written to the temp file and remembers the
// file's own error, so a failed io.Copy can be attributed to the disk
// rather than the network.
type countingWriter struct {
	file     *os.File
	total    int64
	writeErr error
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.total += int64(n)
	if err != nil {
		w.writeErr = err
	}
	return n, err
}
