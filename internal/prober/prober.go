// Package prober checks the asset store's claims against physical reality.
// Every reconciliation pass re-verifies each committed rendition, which is
// what lets a run recover from manual deletions and interrupted writes
// without crawling the whole storage directory.
package prober

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Result classifies one probe of a stored file.
type Result int

const (
	// Present means the file exists with the expected byte size.
	Present Result = iota
	// Missing means the file is absent.
	Missing
	// Mismatch means the file exists with a different size: local corruption
	// or an interrupted write. Treated as Missing for reconciliation, after
	// the stale file is removed.
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Present:
		return "present"
	case Missing:
		return "missing"
	case Mismatch:
		return "mismatch"
	}
	return "unknown"
}

// tempSuffix marks in-progress download files. Never left behind on
// success; swept at startup.
const tempSuffix = ".part"

// Prober verifies stored files inside a single flat storage directory.
type Prober struct {
	dir string
}

// New returns a Prober rooted at the storage directory.
func New(dir string) *Prober {
	return &Prober{dir: dir}
}

// Verify probes the stored file and classifies the outcome.
func (p *Prober) Verify(storedFilename string, expectedSize int64) (Result, error) {
	info, err := os.Stat(filepath.Join(p.dir, storedFilename))
	if os.IsNotExist(err) {
		return Missing, nil
	}
	if err != nil {
		return Missing, fmt.Errorf("stat %s: %w", storedFilename, err)
	}
	if info.Size() != expectedSize {
		log.Warnf("Size mismatch for %s: expected %d bytes, found %d", storedFilename, expectedSize, info.Size())
		return Mismatch, nil
	}
	return Present, nil
}

// RemoveStale deletes a file the store no longer vouches for. Absence is
// not an error.
func (p *Prober) RemoveStale(storedFilename string) error {
	err := os.Remove(filepath.Join(p.dir, storedFilename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale file %s: %w", storedFilename, err)
	}
	return nil
}

// SweepOrphans removes leftover temp files from interrupted downloads.
// Returns the number removed.
func (p *Prober) SweepOrphans() (int, error) {
	entries, err := os.ReadDir(p.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading storage directory %s: %w", p.dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.WithError(err).Warnf("Failed to remove orphan temp file %s", path)
			continue
		}
		log.Debugf("Removed orphan temp file %s", path)
		removed++
	}
	if removed > 0 {
		log.Infof("Swept %d orphan temp file(s) from previous run", removed)
	}
	return removed, nil
}
