package models

import (
	"fmt"
	"time"
)

// VersionKind identifies one binary rendition of an asset.
type VersionKind string

const (
	// VersionOriginal is the unmodified master rendition. Every real asset has one.
	VersionOriginal VersionKind = "original"
	// VersionAdjusted is the edited rendition, present only when the user edited the asset.
	VersionAdjusted VersionKind = "adjusted"
	// VersionAlternative is the companion rendition: the video half of a Live
	// Photo or the RAW half of a RAW+JPEG pair.
	VersionAlternative VersionKind = "alternative"
)

// Valid reports whether k is one of the known version kinds.
func (k VersionKind) Valid() bool {
	switch k {
	case VersionOriginal, VersionAdjusted, VersionAlternative:
		return true
	}
	return false
}

// AssetKind distinguishes photos from videos.
type AssetKind string

const (
	KindPhoto AssetKind = "photo"
	KindVideo AssetKind = "video"
)

type (
	// AssetVersion describes one downloadable rendition as reported by the
	// remote catalog: where to fetch it, how many bytes to expect, and which
	// file extension its content carries.
	AssetVersion struct {
		Kind VersionKind `json:"kind"`
		// URL is the remote content reference for this rendition.
		URL string `json:"url"`
		// Size is the remote-declared byte size, used to verify downloads.
		Size int64 `json:"size"`
		// Extension is the rendition's own file extension without the leading
		// dot (e.g. "heic", "mov", "raw"). Falls back to the asset's filename
		// hint when empty.
		Extension string `json:"extension,omitempty"`
	}

	// Asset is one logical item in the remote library: a photo or a video,
	// including the video half of a Live Photo or one half of a RAW+JPEG pair.
	Asset struct {
		// ID is the stable, source-assigned identifier. Globally unique; the
		// entire local naming scheme leans on that guarantee.
		ID   string    `json:"id"`
		Kind AssetKind `json:"kind"`
		// FilenameHint is the source-provided base name. Only its extension is
		// ever used locally.
		FilenameHint string    `json:"filename"`
		CreatedAt    time.Time `json:"created_at"`
		ModifiedAt   time.Time `json:"modified_at"`
		// Versions lists the renditions the source offers for this asset.
		Versions []AssetVersion `json:"versions"`
	}

	// Config holds the application's configuration settings.
	Config struct {
		SavePath            string     `toml:"SavePath" json:"SavePath"`
		DatabasePath        string     `toml:"DatabasePath" json:"DatabasePath"`
		LogLevel            string     `toml:"LogLevel" json:"LogLevel"`
		LogFormat           string     `toml:"LogFormat" json:"LogFormat"`
		LogFile             string     `toml:"LogFile" json:"LogFile"`
		MaxRetries          int        `toml:"MaxRetries" json:"MaxRetries"`
		InitialRetryDelayMs int        `toml:"InitialRetryDelayMs" json:"InitialRetryDelayMs"`
		DownloadTimeoutSec  int        `toml:"DownloadTimeoutSec" json:"DownloadTimeoutSec"`
		Sync                SyncConfig `toml:"Sync" json:"Sync"`
	}

	// SyncConfig holds settings specific to the 'sync' command.
	SyncConfig struct {
		// Catalog is the path of the JSON catalog manifest to sync from.
		Catalog string `toml:"Catalog"`
		// Since restricts the to-process set to assets created at or after
		// this instant (RFC 3339; empty means no lower bound).
		Since string `toml:"Since"`
		// Recent caps the to-process set to the N most recent assets
		// (0 means no cap).
		Recent      int `toml:"Recent"`
		Concurrency int `toml:"Concurrency"`
	}
)

// Version returns the asset's rendition of the given kind, if the source
// offers one.
func (a Asset) Version(kind VersionKind) (AssetVersion, bool) {
	for _, v := range a.Versions {
		if v.Kind == kind {
			return v, true
		}
	}
	return AssetVersion{}, false
}

// AvailableKinds returns the set of version kinds the source offers, in the
// order they were listed.
func (a Asset) AvailableKinds() []VersionKind {
	kinds := make([]VersionKind, 0, len(a.Versions))
	for _, v := range a.Versions {
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

// Validate checks structural invariants the engine relies on. A violation
// means the upstream catalog handed us garbage, not that the user did
// anything wrong.
func (a Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset has empty id")
	}
	if a.Kind != KindPhoto && a.Kind != KindVideo {
		return fmt.Errorf("asset %s has unknown kind %q", a.ID, a.Kind)
	}
	for _, v := range a.Versions {
		if !v.Kind.Valid() {
			return fmt.Errorf("asset %s has unknown version kind %q", a.ID, v.Kind)
		}
		if v.URL == "" {
			return fmt.Errorf("asset %s version %s has no content reference", a.ID, v.Kind)
		}
		if v.Size < 0 {
			return fmt.Errorf("asset %s version %s has negative size %d", a.ID, v.Kind, v.Size)
		}
	}
	return nil
}
