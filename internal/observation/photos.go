package observation

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tphakala/lifer/internal/cache"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/macaulay"
	"github.com/tphakala/lifer/internal/observability/metrics"
)

// MaxSpeciesPhotos caps the photos returned for one species.
const MaxSpeciesPhotos = 3

// PhotoSource lists the photos attached to checklists.
type PhotoSource interface {
	ChecklistPhotos(ctx context.Context, subID string) ([]macaulay.Asset, error)
	PhotoURL(assetID string) string
}

// Photo links a species photo to the checklist it was submitted with.
type Photo struct {
	URL          string `json:"url"`
	ChecklistURL string `json:"checklistUrl"`
}

// SpeciesPhotos returns up to MaxSpeciesPhotos photos of speciesCode from
// the given checklists. Photos follow the order of subIDs; checklists whose
// lookup fails are skipped.
func (a *Aggregator) SpeciesPhotos(ctx context.Context, speciesCode string, subIDs []string) ([]Photo, error) {
	speciesCode = strings.TrimSpace(speciesCode)
	if speciesCode == "" {
		return nil, errors.Newf("species code is required").
			Category(errors.CategoryValidation).
			Component("observation").
			Build()
	}
	if a.photoSource == nil {
		return nil, errors.Newf("photo lookups are not configured").
			Category(errors.CategoryConfiguration).
			Component("observation").
			Build()
	}

	ids := distinctIDs(subIDs, a.config.MaxChecklistFetches)
	assets, err := a.fetchPhotoAssets(ctx, ids)
	if err != nil {
		return nil, err
	}

	photos := make([]Photo, 0, MaxSpeciesPhotos)
	for i, id := range ids {
		for _, asset := range assets[i] {
			if asset.SpeciesCode != speciesCode {
				continue
			}
			photos = append(photos, Photo{
				URL:          a.photoSource.PhotoURL(asset.AssetID),
				ChecklistURL: macaulay.ChecklistURL(id),
			})
			if len(photos) == MaxSpeciesPhotos {
				return photos, nil
			}
		}
	}
	return photos, nil
}

// distinctIDs trims and dedupes ids in order, keeping at most limit.
func distinctIDs(ids []string, limit int) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, min(len(ids), limit))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if len(out) == limit {
			break
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// fetchPhotoAssets looks up each checklist's photos with bounded
// concurrency. The result is indexed like ids; failed lookups stay nil
// and are not cached.
func (a *Aggregator) fetchPhotoAssets(ctx context.Context, ids []string) ([][]macaulay.Asset, error) {
	out := make([][]macaulay.Asset, len(ids))

	var (
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(a.config.ChecklistConcurrency))
	)

	for i, id := range ids {
		if assets, ok := a.photos.Get(cache.PhotosKey(id)); ok {
			out[i] = assets
			a.metrics.RecordPhotoLookup(metrics.ChecklistCached)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Go(func() {
			defer sem.Release(1)

			assets, err := a.photoSource.ChecklistPhotos(ctx, id)
			if err != nil {
				a.metrics.RecordPhotoLookup(metrics.ChecklistFailed)
				a.logger.Debug("checklist photo lookup failed",
					logger.String("sub_id", id),
					logger.Error(err))
				return
			}
			a.photos.Set(cache.PhotosKey(id), assets, cache.PhotosTTL)
			a.metrics.RecordPhotoLookup(metrics.ChecklistFetched)
			out[i] = assets
		})
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Newf("photo lookup canceled: %w", err).
			Category(errors.CategoryCancellation).
			Component("observation").
			Context("checklists", len(ids)).
			Build()
	}
	return out, nil
}
