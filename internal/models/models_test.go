package models

import (
	"testing"
	"time"
)

func TestVersionKindValid(t *testing.T) {
	for _, k := range []VersionKind{VersionOriginal, VersionAdjusted, VersionAlternative} {
		if !k.Valid() {
			t.Errorf("Expected %s to be valid", k)
		}
	}
	if VersionKind("thumbnail").Valid() {
		t.Error("Expected unknown kind to be invalid")
	}
	if VersionKind("").Valid() {
		t.Error("Expected empty kind to be invalid")
	}
}

func TestAssetVersionLookup(t *testing.T) {
	asset := Asset{
		ID:   "A1",
		Kind: KindPhoto,
		Versions: []AssetVersion{
			{Kind: VersionOriginal, URL: "http://example.com/o", Size: 100},
			{Kind: VersionAlternative, URL: "http://example.com/v", Size: 300},
		},
	}

	v, ok := asset.Version(VersionOriginal)
	if !ok || v.Size != 100 {
		t.Errorf("Expected original version with size 100, got %+v (ok=%t)", v, ok)
	}

	if _, ok := asset.Version(VersionAdjusted); ok {
		t.Error("Expected no adjusted version")
	}

	kinds := asset.AvailableKinds()
	if len(kinds) != 2 || kinds[0] != VersionOriginal || kinds[1] != VersionAlternative {
		t.Errorf("Unexpected available kinds: %v", kinds)
	}
}

func TestAssetValidate(t *testing.T) {
	valid := Asset{
		ID:        "A1",
		Kind:      KindPhoto,
		CreatedAt: time.Now(),
		Versions:  []AssetVersion{{Kind: VersionOriginal, URL: "http://example.com/o", Size: 1}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid asset, got %v", err)
	}

	cases := []struct {
		name  string
		asset Asset
	}{
		{"empty id", Asset{Kind: KindPhoto}},
		{"unknown kind", Asset{ID: "A1", Kind: AssetKind("gif")}},
		{"unknown version kind", Asset{ID: "A1", Kind: KindPhoto,
			Versions: []AssetVersion{{Kind: VersionKind("thumb"), URL: "u"}}}},
		{"missing url", Asset{ID: "A1", Kind: KindPhoto,
			Versions: []AssetVersion{{Kind: VersionOriginal}}}},
		{"negative size", Asset{ID: "A1", Kind: KindPhoto,
			Versions: []AssetVersion{{Kind: VersionOriginal, URL: "u", Size: -1}}}},
	}
	for _, tc := range cases {
		if err := tc.asset.Validate(); err == nil {
			t.Errorf("Expected validation error for %s", tc.name)
		}
	}
}
