package reconciler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-photosync/internal/models"
	"go-photosync/internal/prober"
	"go-photosync/internal/store"
)

type fixture struct {
	store *store.Store
	dir   string
	rec   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "photosync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storageDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(storageDir, 0750))

	return &fixture{
		store: s,
		dir:   storageDir,
		rec:   New(s, prober.New(storageDir)),
	}
}

func (f *fixture) commit(t *testing.T, assetID string, kind models.VersionKind, filename string, size int64) {
	t.Helper()
	token, err := f.store.BeginVersion(assetID, kind, filename, size)
	require.NoError(t, err)
	require.NoError(t, f.store.CommitVersion(token, size, ""))
}

func (f *fixture) writeFile(t *testing.T, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), make([]byte, size), 0600))
}

func photoAsset(id string, versions ...models.AssetVersion) models.Asset {
	return models.Asset{
		ID:           id,
		Kind:         models.KindPhoto,
		FilenameHint: "IMG_0001.jpg",
		CreatedAt:    time.Now().Add(-time.Hour),
		ModifiedAt:   time.Now(),
		Versions:     versions,
	}
}

func TestPlan_NewAssetOriginalOnly(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/A1", Size: 100,
	})

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	task := plan.Tasks[0]
	assert.Equal(t, "A1", task.AssetID)
	assert.Equal(t, models.VersionOriginal, task.Kind)
	assert.Equal(t, "A1.jpg", task.TargetFilename)
	assert.Equal(t, int64(100), task.ExpectedSize)

	// Planning records the asset.
	record, err := f.store.GetAsset("A1")
	require.NoError(t, err)
	assert.Equal(t, models.KindPhoto, record.Kind)
}

func TestPlan_LivePhotoTwoTasks(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A2",
		models.AssetVersion{Kind: models.VersionOriginal, URL: "http://example/A2", Size: 100, Extension: "heic"},
		models.AssetVersion{Kind: models.VersionAlternative, URL: "http://example/A2-alt", Size: 200, Extension: "mov"},
	)

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "A2.heic", plan.Tasks[0].TargetFilename)
	assert.Equal(t, "A2_alt.mov", plan.Tasks[1].TargetFilename)
}

func TestPlan_SkipsVerifiedCommitted(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/A1", Size: 100,
	})

	require.NoError(t, f.store.UpsertAssetMetadata(asset))
	f.commit(t, "A1", models.VersionOriginal, "A1.jpg", 100)
	f.writeFile(t, "A1.jpg", 100)

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	assert.Empty(t, plan.Tasks, "verified committed version needs no download")
}

func TestPlan_DriftRecovery(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/A1", Size: 100,
	})

	require.NoError(t, f.store.UpsertAssetMetadata(asset))
	f.commit(t, "A1", models.VersionOriginal, "A1.jpg", 100)
	// File never written: simulates external deletion.

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1, "missing file must be re-downloaded")

	// Stale committed row was dropped.
	listed, err := f.store.ListCommittedVersions("A1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPlan_CorruptionRecovery(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/A1", Size: 100,
	})

	require.NoError(t, f.store.UpsertAssetMetadata(asset))
	f.commit(t, "A1", models.VersionOriginal, "A1.jpg", 100)
	f.writeFile(t, "A1.jpg", 37) // truncated

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1, "truncated file must be re-downloaded")

	// The corrupt file was removed along with its row.
	_, statErr := os.Stat(filepath.Join(f.dir, "A1.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPlan_PendingRowIsNotPresent(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/A1", Size: 100,
	})
	require.NoError(t, f.store.UpsertAssetMetadata(asset))
	_, err := f.store.BeginVersion("A1", models.VersionOriginal, "A1.jpg", 100)
	require.NoError(t, err)

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	assert.Len(t, plan.Tasks, 1, "a pending row from a dead run does not count as present")
}

func TestPlan_NoVersionsIsDataIntegrityError(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Plan(photoAsset("A1"))
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestPlan_MissingOriginalReferenceIsDataIntegrityError(t *testing.T) {
	f := newFixture(t)
	// Catalog offers only an adjusted rendition; policy still demands the
	// original, which has no content reference to fetch.
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionAdjusted, URL: "http://example/A1-adj", Size: 50,
	})

	_, err := f.rec.Plan(asset)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestPlan_InvalidAssetIsDataIntegrityError(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/x", Size: 1,
	})
	_, err := f.rec.Plan(asset)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestPlan_Idempotent(t *testing.T) {
	f := newFixture(t)
	asset := photoAsset("A1", models.AssetVersion{
		Kind: models.VersionOriginal, URL: "http://example/A1", Size: 100,
	})

	plan, err := f.rec.Plan(asset)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)

	// Simulate the pipeline completing the task.
	f.commit(t, "A1", models.VersionOriginal, "A1.jpg", 100)
	f.writeFile(t, "A1.jpg", 100)

	plan, err = f.rec.Plan(asset)
	require.NoError(t, err)
	assert.Empty(t, plan.Tasks, "second pass with no changes plans zero downloads")
}
