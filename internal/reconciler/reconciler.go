// Package reconciler computes, for one asset at a time, the gap between the
// renditions policy requires and the renditions verifiably on disk.
package reconciler

import (
	"errors"
	"fmt"

	"go-photosync/internal/models"
	"go-photosync/internal/naming"
	"go-photosync/internal/policy"
	"go-photosync/internal/prober"
	"go-photosync/internal/store"

	log "github.com/sirupsen/logrus"
)

// ErrDataIntegrity marks an asset whose catalog data is unusable (no
// available versions, or a required rendition with no content reference).
// The asset is skipped; the run continues.
var ErrDataIntegrity = errors.New("asset data integrity error")

// Task is one unit of download work: fetch a single rendition and commit it.
type Task struct {
	AssetID        string
	Kind           models.VersionKind
	URL            string
	ExpectedSize   int64
	TargetFilename string
}

// Plan lists the downloads an asset still needs. An empty plan means the
// asset is fully materialized.
type Plan struct {
	AssetID string
	Tasks   []Task
}

// Reconciler plans downloads against the store and the filesystem.
type Reconciler struct {
	store  *store.Store
	prober *prober.Prober
}

func New(s *store.Store, p *prober.Prober) *Reconciler {
	return &Reconciler{store: s, prober: p}
}

// Plan computes the download plan for one asset: required versions per
// policy, minus those the store claims committed and the prober confirms on
// disk. Versions the prober finds missing or corrupted are demoted (stale
// row dropped, mismatched file removed) so they re-download.
func (r *Reconciler) Plan(asset models.Asset) (Plan, error) {
	if err := asset.Validate(); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}

	required, err := policy.Required(asset.AvailableKinds())
	if err != nil {
		return Plan{}, fmt.Errorf("%w: asset %s: %v", ErrDataIntegrity, asset.ID, err)
	}

	if err := r.store.UpsertAssetMetadata(asset); err != nil {
		return Plan{}, err
	}

	present, err := r.verifyCommitted(asset.ID)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{AssetID: asset.ID}
	for _, kind := range required {
		if present[kind] {
			continue
		}
		version, ok := asset.Version(kind)
		if !ok {
			// Policy always demands original; a catalog entry without one is
			// broken upstream data.
			return Plan{}, fmt.Errorf("%w: asset %s requires %s but catalog offers no content reference",
				ErrDataIntegrity, asset.ID, kind)
		}
		plan.Tasks = append(plan.Tasks, Task{
			AssetID:        asset.ID,
			Kind:           kind,
			URL:            version.URL,
			ExpectedSize:   version.Size,
			TargetFilename: naming.TargetFilename(asset.ID, kind, naming.VersionExtension(asset, version)),
		})
	}

	if len(plan.Tasks) > 0 {
		log.WithField("assetID", asset.ID).Debugf("Planned %d download(s)", len(plan.Tasks))
	}
	return plan, nil
}

// verifyCommitted probes every committed row of the asset and returns the
// set that survived verification. Rows that fail are dropped so the gap
// computation re-downloads them.
func (r *Reconciler) verifyCommitted(assetID string) (map[models.VersionKind]bool, error) {
	present := make(map[models.VersionKind]bool)

	record, err := r.store.GetAsset(assetID)
	if errors.Is(err, store.ErrNotFound) {
		return present, nil
	} else if err != nil {
		return nil, err
	}

	for _, v := range record.Committed() {
		result, err := r.prober.Verify(v.StoredFilename, v.ByteSize)
		if err != nil {
			return nil, err
		}
		switch result {
		case prober.Present:
			present[v.Kind] = true
		case prober.Missing:
			log.WithField("assetID", assetID).Warnf("Committed file %s is missing on disk, scheduling re-download", v.StoredFilename)
			if err := r.store.DropVersion(assetID, v.Kind); err != nil {
				return nil, err
			}
		case prober.Mismatch:
			log.WithField("assetID", assetID).Warnf("Committed file %s failed size verification, removing and scheduling re-download", v.StoredFilename)
			if err := r.prober.RemoveStale(v.StoredFilename); err != nil {
				return nil, err
			}
			if err := r.store.DropVersion(assetID, v.Kind); err != nil {
				return nil, err
			}
		}
	}
	return present, nil
}
