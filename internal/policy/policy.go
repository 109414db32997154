// Package policy decides which renditions of an asset must exist locally.
// The rule set is fixed: there is deliberately no user-facing knob here.
package policy

import (
	"errors"

	"go-photosync/internal/models"
)

// ErrNoVersions is returned when an asset reports no available renditions.
// Every real asset has at least an original, so this signals corrupt
// upstream data rather than a normal empty result.
var ErrNoVersions = errors.New("asset reports no available versions")

// Required maps the set of remotely available version kinds to the set that
// must be materialized locally. Pure and order-independent: original is
// always required, adjusted and alternative are required exactly when the
// source offers them. Duplicates and unknown kinds in the input are ignored.
func Required(available []models.VersionKind) ([]models.VersionKind, error) {
	if len(available) == 0 {
		return nil, ErrNoVersions
	}

	seen := make(map[models.VersionKind]bool, len(available))
	for _, k := range available {
		if k.Valid() {
			seen[k] = true
		}
	}
	if len(seen) == 0 {
		return nil, ErrNoVersions
	}

	// Fixed output order keeps plans and logs deterministic.
	required := []models.VersionKind{models.VersionOriginal}
	if seen[models.VersionAdjusted] {
		required = append(required, models.VersionAdjusted)
	}
	if seen[models.VersionAlternative] {
		required = append(required, models.VersionAlternative)
	}
	return required, nil
}
