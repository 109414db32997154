// Package store is the durable record of every known asset and which of its
// renditions are confirmed present on disk. It is the single source of truth
// the reconciler plans against; all mutation of version rows goes through the
// token-based begin/commit/abort protocol.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-photosync/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when an asset is not in the store.
	ErrNotFound = errors.New("asset not found")
	// ErrConflict is returned when BeginVersion finds an already committed
	// row for the key. The reconciler filters committed versions out before
	// planning, so hitting this means a caller bug, not a user problem.
	ErrConflict = errors.New("version already committed")
	// ErrStaleToken is returned when a commit or abort references a token
	// the store no longer knows about (e.g. the pending row was swept).
	ErrStaleToken = errors.New("stale or unknown version token")
)

// VersionState tracks a version row through the write protocol.
type VersionState string

const (
	StatePending   VersionState = "pending"
	StateCommitted VersionState = "committed"
)

// Token identifies one in-flight write of a (asset, version) pair.
type Token string

// VersionRecord is one row of the photo_versions table: a single rendition
// the store believes exists (committed) or is being written (pending).
type VersionRecord struct {
	AssetID        string
	Kind           models.VersionKind
	StoredFilename string
	ByteSize       int64
	Checksum       string
	State          VersionState
	DownloadedAt   time.Time
}

// AssetRecord is one row of the photo_assets table plus its version rows.
type AssetRecord struct {
	ID               string
	Kind             models.AssetKind
	FilenameHint     string
	CreatedAt        time.Time
	ModifiedAt       time.Time
	LastReconciledAt time.Time
	Versions         []VersionRecord
}

// Committed returns the asset's committed version rows.
func (r *AssetRecord) Committed() []VersionRecord {
	var out []VersionRecord
	for _, v := range r.Versions {
		if v.State == StateCommitted {
			out = append(out, v)
		}
	}
	return out
}

// Stats summarizes store contents for the status command.
type Stats struct {
	Assets            int64
	CommittedVersions int64
	PendingVersions   int64
}

// Store wraps the SQLite database and provides the asset/version operations.
type Store struct {
	db *sql.DB
	sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// Open initializes and returns a Store backed by the SQLite file at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database at %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Debugf("Asset store opened at %s", path)
	return s, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS photo_assets (
		asset_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('photo', 'video')),
		filename_hint TEXT,
		created_at DATETIME,
		modified_at DATETIME,
		last_reconciled_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS photo_versions (
		asset_id TEXT NOT NULL,
		version_kind TEXT NOT NULL CHECK (version_kind IN ('original', 'adjusted', 'alternative')),
		stored_filename TEXT NOT NULL,
		byte_size INTEGER NOT NULL DEFAULT 0,
		checksum TEXT,
		state TEXT NOT NULL CHECK (state IN ('pending', 'committed')),
		token TEXT,
		downloaded_at DATETIME,
		PRIMARY KEY (asset_id, version_kind),
		FOREIGN KEY (asset_id) REFERENCES photo_assets(asset_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_versions_state ON photo_versions(state);
	CREATE INDEX IF NOT EXISTS idx_versions_token ON photo_versions(token);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close safely closes the database connection.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.Lock()
		defer s.Unlock()
		s.closeErr = s.db.Close()
		if s.closeErr != nil {
			log.WithError(s.closeErr).Error("Error closing asset store")
		}
	})
	return s.closeErr
}

// UpsertAssetMetadata records (or refreshes) an asset's mutable metadata and
// stamps it as reconciled. Idempotent; version rows are untouched.
func (s *Store) UpsertAssetMetadata(asset models.Asset) error {
	s.Lock()
	defer s.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO photo_assets (asset_id, kind, filename_hint, created_at, modified_at, last_reconciled_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			kind = excluded.kind,
			filename_hint = excluded.filename_hint,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			last_reconciled_at = excluded.last_reconciled_at
	`, asset.ID, string(asset.Kind), asset.FilenameHint,
		asset.CreatedAt.UTC(), asset.ModifiedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting asset %s: %w", asset.ID, err)
	}
	return nil
}

// GetAsset returns the asset record and its version rows, or ErrNotFound.
func (s *Store) GetAsset(assetID string) (*AssetRecord, error) {
	s.RLock()
	defer s.RUnlock()

	record := &AssetRecord{}
	var kind string
	var createdAt, modifiedAt, reconciledAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT asset_id, kind, filename_hint, created_at, modified_at, last_reconciled_at
		FROM photo_assets WHERE asset_id = ?
	`, assetID).Scan(&record.ID, &kind, &record.FilenameHint, &createdAt, &modifiedAt, &reconciledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("querying asset %s: %w", assetID, err)
	}
	record.Kind = models.AssetKind(kind)
	record.CreatedAt = createdAt.Time
	record.ModifiedAt = modifiedAt.Time
	record.LastReconciledAt = reconciledAt.Time

	rows, err := s.db.Query(`
		SELECT asset_id, version_kind, stored_filename, byte_size, checksum, state, downloaded_at
		FROM photo_versions WHERE asset_id = ? ORDER BY version_kind
	`, assetID)
	if err != nil {
		return nil, fmt.Errorf("querying versions for asset %s: %w", assetID, err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning version row for asset %s: %w", assetID, err)
		}
		record.Versions = append(record.Versions, v)
	}
	return record, rows.Err()
}

// BeginVersion inserts a pending row for the key and returns the write
// token. A leftover pending row from a crashed run is replaced; an existing
// committed row yields ErrConflict.
func (s *Store) BeginVersion(assetID string, kind models.VersionKind, storedFilename string, expectedSize int64) (Token, error) {
	s.Lock()
	defer s.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("starting transaction for %s/%s: %w", assetID, kind, err)
	}
	defer tx.Rollback()

	var state string
	err = tx.QueryRow(`
		SELECT state FROM photo_versions WHERE asset_id = ? AND version_kind = ?
	`, assetID, string(kind)).Scan(&state)
	switch {
	case err == sql.ErrNoRows:
		// No row yet, normal path.
	case err != nil:
		return "", fmt.Errorf("checking existing version %s/%s: %w", assetID, kind, err)
	case state == string(StateCommitted):
		return "", fmt.Errorf("%w: %s/%s", ErrConflict, assetID, kind)
	default:
		log.Debugf("Replacing leftover pending row for %s/%s", assetID, kind)
	}

	token := Token(uuid.NewString())
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO photo_versions
			(asset_id, version_kind, stored_filename, byte_size, checksum, state, token, downloaded_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?, NULL)
	`, assetID, string(kind), storedFilename, expectedSize, string(StatePending), string(token))
	if err != nil {
		return "", fmt.Errorf("inserting pending version %s/%s: %w", assetID, kind, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction for %s/%s: %w", assetID, kind, err)
	}
	return token, nil
}

// CommitVersion flips the token's pending row to committed, recording the
// actual byte size and best-effort checksum. The caller must have durably
// renamed the file into place first.
func (s *Store) CommitVersion(token Token, actualSize int64, checksum string) error {
	s.Lock()
	defer s.Unlock()

	res, err := s.db.Exec(`
		UPDATE photo_versions
		SET state = ?, byte_size = ?, checksum = ?, downloaded_at = ?, token = NULL
		WHERE token = ? AND state = ?
	`, string(StateCommitted), actualSize, checksum, time.Now().UTC(), string(token), string(StatePending))
	if err != nil {
		return fmt.Errorf("committing version: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrStaleToken
	}
	return nil
}

// AbortVersion removes the token's pending row, leaving no trace of the
// failed write.
func (s *Store) AbortVersion(token Token) error {
	s.Lock()
	defer s.Unlock()

	res, err := s.db.Exec(`
		DELETE FROM photo_versions WHERE token = ? AND state = ?
	`, string(token), string(StatePending))
	if err != nil {
		return fmt.Errorf("aborting version: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrStaleToken
	}
	return nil
}

// DropVersion removes a version row regardless of state. Used when the
// prober finds the backing file missing or corrupted.
func (s *Store) DropVersion(assetID string, kind models.VersionKind) error {
	s.Lock()
	defer s.Unlock()

	_, err := s.db.Exec(`
		DELETE FROM photo_versions WHERE asset_id = ? AND version_kind = ?
	`, assetID, string(kind))
	if err != nil {
		return fmt.Errorf("dropping version %s/%s: %w", assetID, kind, err)
	}
	return nil
}

// ListCommittedVersions returns the committed renditions of an asset as a
// kind -> stored filename map. This is the query surface the downstream
// hierarchy builder consumes.
func (s *Store) ListCommittedVersions(assetID string) (map[models.VersionKind]string, error) {
	s.RLock()
	defer s.RUnlock()

	rows, err := s.db.Query(`
		SELECT version_kind, stored_filename FROM photo_versions
		WHERE asset_id = ? AND state = ?
	`, assetID, string(StateCommitted))
	if err != nil {
		return nil, fmt.Errorf("listing committed versions for %s: %w", assetID, err)
	}
	defer rows.Close()

	out := make(map[models.VersionKind]string)
	for rows.Next() {
		var kind, filename string
		if err := rows.Scan(&kind, &filename); err != nil {
			return nil, fmt.Errorf("scanning committed version for %s: %w", assetID, err)
		}
		out[models.VersionKind(kind)] = filename
	}
	return out, rows.Err()
}

// SweepPending deletes all pending rows. Run once at startup: a pending row
// with no live writer is a crash leftover, and its temp file is handled by
// the prober's orphan sweep.
func (s *Store) SweepPending() (int64, error) {
	s.Lock()
	defer s.Unlock()

	res, err := s.db.Exec(`DELETE FROM photo_versions WHERE state = ?`, string(StatePending))
	if err != nil {
		return 0, fmt.Errorf("sweeping pending versions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Infof("Swept %d stale pending version row(s) from previous run", n)
	}
	return n, nil
}

// EachCommitted calls fn for every committed version row in the store.
func (s *Store) EachCommitted(fn func(VersionRecord) error) error {
	s.RLock()
	defer s.RUnlock()

	rows, err := s.db.Query(`
		SELECT asset_id, version_kind, stored_filename, byte_size, checksum, state, downloaded_at
		FROM photo_versions WHERE state = ? ORDER BY asset_id, version_kind
	`, string(StateCommitted))
	if err != nil {
		return fmt.Errorf("querying committed versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return fmt.Errorf("scanning committed version row: %w", err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetStats returns asset and version counts.
func (s *Store) GetStats() (Stats, error) {
	s.RLock()
	defer s.RUnlock()

	var stats Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM photo_assets`).Scan(&stats.Assets); err != nil {
		return Stats{}, fmt.Errorf("counting assets: %w", err)
	}
	err := s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN state = 'committed' THEN 1 END),
			COUNT(CASE WHEN state = 'pending' THEN 1 END)
		FROM photo_versions
	`).Scan(&stats.CommittedVersions, &stats.PendingVersions)
	if err != nil {
		return Stats{}, fmt.Errorf("counting versions: %w", err)
	}
	return stats, nil
}

func scanVersion(rows *sql.Rows) (VersionRecord, error) {
	var v VersionRecord
	var kind, state string
	var checksum sql.NullString
	var downloadedAt sql.NullTime
	if err := rows.Scan(&v.AssetID, &kind, &v.StoredFilename, &v.ByteSize, &checksum, &state, &downloadedAt); err != nil {
		return VersionRecord{}, err
	}
	v.Kind = models.VersionKind(kind)
	v.State = VersionState(state)
	v.Checksum = checksum.String
	v.DownloadedAt = downloadedAt.Time
	return v, nil
}
