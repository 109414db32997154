package photos

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-photosync/internal/models"
)

func writeCatalog(t *testing.T, assets []models.Asset) string {
	t.Helper()
	data, err := json.Marshal(assets)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func collect(t *testing.T, src Source) []models.Asset {
	t.Helper()
	var out []models.Asset
	err := src.Each(context.Background(), func(a models.Asset) error {
		out = append(out, a)
		return nil
	})
	require.NoError(t, err)
	return out
}

func catalogAssets() []models.Asset {
	newest := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []models.Asset{
		{ID: "A1", Kind: models.KindPhoto, CreatedAt: newest,
			Versions: []models.AssetVersion{{Kind: models.VersionOriginal, URL: "http://x/1", Size: 1}}},
		{ID: "A2", Kind: models.KindPhoto, CreatedAt: newest.AddDate(0, -1, 0),
			Versions: []models.AssetVersion{{Kind: models.VersionOriginal, URL: "http://x/2", Size: 2}}},
		{ID: "A3", Kind: models.KindVideo, CreatedAt: newest.AddDate(0, -2, 0),
			Versions: []models.AssetVersion{{Kind: models.VersionOriginal, URL: "http://x/3", Size: 3}}},
	}
}

func TestCatalogSource_StreamsAllAssets(t *testing.T) {
	path := writeCatalog(t, catalogAssets())

	got := collect(t, NewCatalogSource(path))
	require.Len(t, got, 3)
	assert.Equal(t, "A1", got[0].ID)
	assert.Equal(t, "A3", got[2].ID)
	assert.Equal(t, models.KindVideo, got[2].Kind)
}

func TestCatalogSource_EmptyCatalog(t *testing.T) {
	path := writeCatalog(t, []models.Asset{})
	assert.Empty(t, collect(t, NewCatalogSource(path)))
}

func TestCatalogSource_MissingFile(t *testing.T) {
	err := NewCatalogSource("/does/not/exist.json").Each(context.Background(), func(models.Asset) error {
		return nil
	})
	assert.Error(t, err)
}

func TestCatalogSource_StopEndsCleanly(t *testing.T) {
	path := writeCatalog(t, catalogAssets())

	var seen int
	err := NewCatalogSource(path).Each(context.Background(), func(models.Asset) error {
		seen++
		return ErrStop
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestCatalogSource_CancelledContext(t *testing.T) {
	path := writeCatalog(t, catalogAssets())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCatalogSource(path).Each(ctx, func(models.Asset) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecent(t *testing.T) {
	path := writeCatalog(t, catalogAssets())

	got := collect(t, Recent(NewCatalogSource(path), 2))
	require.Len(t, got, 2)
	assert.Equal(t, "A1", got[0].ID)
	assert.Equal(t, "A2", got[1].ID)

	// Non-positive limit passes the source through untouched.
	assert.Len(t, collect(t, Recent(NewCatalogSource(path), 0)), 3)
}

func TestSince(t *testing.T) {
	path := writeCatalog(t, catalogAssets())
	cutoff := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	got := collect(t, Since(NewCatalogSource(path), cutoff))
	require.Len(t, got, 2)
	assert.Equal(t, "A1", got[0].ID)
	assert.Equal(t, "A2", got[1].ID)

	assert.Len(t, collect(t, Since(NewCatalogSource(path), time.Time{})), 3)
}

func TestRecentAndSinceCompose(t *testing.T) {
	path := writeCatalog(t, catalogAssets())
	cutoff := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

	got := collect(t, Recent(Since(NewCatalogSource(path), cutoff), 1))
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].ID)
}
