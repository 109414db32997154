// Package naming computes the stored filename for every (asset, version)
// pair. The scheme is flat and content-addressed: the filename is derived
// from the source-assigned asset ID alone, so uniqueness follows from the
// source's ID uniqueness and no directory scan is ever needed.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"go-photosync/internal/models"
)

// Version suffixes. Original carries none; adjusted needs one because it
// shares the original's extension; alternative gets one as a collision
// guard even though its extension usually differs anyway.
const (
	suffixAdjusted    = "_adjusted"
	suffixAlternative = "_alt"
)

const defaultExtension = "bin"

// idReplacer maps the characters a source ID may carry that are hostile on
// a filesystem onto their URL-safe base64 counterparts. A single source
// emits IDs in one base64 alphabet, never a mix of the standard and
// URL-safe ones, so this translation is injective: "a/b" and "a_b" cannot
// both appear as source IDs.
var idReplacer = strings.NewReplacer("/", "_", "+", "-", "=", "")

// SafeAssetID returns the filesystem-safe form of a source asset ID.
// Plain alphanumeric IDs pass through unchanged; standard-base64 IDs are
// rewritten to their URL-safe spelling with padding dropped.
func SafeAssetID(assetID string) string {
	return idReplacer.Replace(assetID)
}

// TargetFilename returns the stored filename for one rendition of an asset:
// <id>.<ext>, <id>_adjusted.<ext> or <id>_alt.<ext>. Distinct
// (asset_id, kind) pairs always map to distinct filenames.
func TargetFilename(assetID string, kind models.VersionKind, extension string) string {
	var suffix string
	switch kind {
	case models.VersionAdjusted:
		suffix = suffixAdjusted
	case models.VersionAlternative:
		suffix = suffixAlternative
	}
	return fmt.Sprintf("%s%s.%s", SafeAssetID(assetID), suffix, normalizeExtension(extension))
}

// VersionExtension picks the extension for a rendition: the version's own
// extension when the catalog reports one (the alternative rendition of a
// Live Photo is a .mov next to a .heic original), otherwise the asset's
// filename hint.
func VersionExtension(asset models.Asset, version models.AssetVersion) string {
	if version.Extension != "" {
		return normalizeExtension(version.Extension)
	}
	if ext := filepath.Ext(asset.FilenameHint); ext != "" {
		return normalizeExtension(ext)
	}
	return defaultExtension
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return defaultExtension
	}
	return ext
}
