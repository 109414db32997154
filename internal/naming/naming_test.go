package naming

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-photosync/internal/models"
)

func TestTargetFilename(t *testing.T) {
	tests := []struct {
		name     string
		assetID  string
		kind     models.VersionKind
		ext      string
		expected string
	}{
		{"original photo", "A1", models.VersionOriginal, "jpg", "A1.jpg"},
		{"adjusted photo", "A1", models.VersionAdjusted, "jpg", "A1_adjusted.jpg"},
		{"live photo video half", "A2", models.VersionAlternative, "mov", "A2_alt.mov"},
		{"raw half", "A3", models.VersionAlternative, "raw", "A3_alt.raw"},
		{"extension normalized", "A4", models.VersionOriginal, ".HEIC", "A4.heic"},
		{"missing extension", "A5", models.VersionOriginal, "", "A5.bin"},
		{"base64 id made safe", "Ab/cD+eF==", models.VersionOriginal, "jpg", "Ab_cD-eF.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TargetFilename(tt.assetID, tt.kind, tt.ext))
		})
	}
}

// Distinct (asset_id, kind) pairs must never share a filename, even when
// every version carries the same extension.
func TestTargetFilename_CollisionFree(t *testing.T) {
	kinds := []models.VersionKind{models.VersionOriginal, models.VersionAdjusted, models.VersionAlternative}
	seen := make(map[string]string)

	for i := 0; i < 50; i++ {
		assetID := fmt.Sprintf("asset-%d", i)
		for _, kind := range kinds {
			name := TargetFilename(assetID, kind, "jpg")
			key := assetID + "/" + string(kind)
			if prev, dup := seen[name]; dup {
				t.Fatalf("filename %q produced by both %s and %s", name, prev, key)
			}
			seen[name] = key
		}
	}
}

func TestVersionExtension(t *testing.T) {
	asset := models.Asset{ID: "A2", Kind: models.KindPhoto, FilenameHint: "IMG_0001.HEIC"}

	// Version's own extension wins.
	ext := VersionExtension(asset, models.AssetVersion{Kind: models.VersionAlternative, Extension: "mov"})
	assert.Equal(t, "mov", ext)

	// Fall back to the filename hint.
	ext = VersionExtension(asset, models.AssetVersion{Kind: models.VersionOriginal})
	assert.Equal(t, "heic", ext)

	// No hint at all.
	ext = VersionExtension(models.Asset{ID: "A9"}, models.AssetVersion{Kind: models.VersionOriginal})
	assert.Equal(t, "bin", ext)
}

func TestSafeAssetID(t *testing.T) {
	assert.Equal(t, "plain-id", SafeAssetID("plain-id"))
	assert.Equal(t, "a_b-c", SafeAssetID("a/b+c"))
	assert.Equal(t, "abcd", SafeAssetID("abcd=="))

	// Standard and URL-safe spellings of the same base64 value map to the
	// same name; the source uses one alphabet, never both.
	assert.Equal(t, SafeAssetID("a_b-c"), SafeAssetID("a/b+c"))
}
