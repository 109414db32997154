// Package photos defines the boundary to the remote catalog: a lazily
// streamed sequence of asset descriptors, plus the selection filters that
// narrow it into the to-process set for one run. Listing and authentication
// against the real remote service live behind the Source interface.
package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go-photosync/internal/models"
)

// ErrStop can be returned from an iteration callback to end the walk early
// without signalling a failure.
var ErrStop = errors.New("stop iteration")

// Source produces the sequence of assets a sync run considers. Assets are
// streamed one at a time so very large libraries never have to fit in
// memory.
type Source interface {
	// Each calls fn for every asset in the sequence, in source order.
	// Returning ErrStop from fn ends the walk cleanly; any other error
	// aborts it and is returned.
	Each(ctx context.Context, fn func(models.Asset) error) error
}

// CatalogSource streams assets from a JSON catalog manifest: a top-level
// array of asset descriptors, newest first. The manifest is produced by
// whatever stage talks to the remote service.
type CatalogSource struct {
	path string
}

// NewCatalogSource returns a source reading the manifest at path.
func NewCatalogSource(path string) *CatalogSource {
	return &CatalogSource{path: path}
}

// Each streams the manifest with a json.Decoder, one asset per Decode call,
// so peak memory stays flat regardless of catalog size.
func (c *CatalogSource) Each(ctx context.Context, fn func(models.Asset) error) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("opening catalog %s: %w", c.path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if _, err := dec.Token(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("reading catalog %s: %w", c.path, err)
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var asset models.Asset
		if err := dec.Decode(&asset); err != nil {
			return fmt.Errorf("decoding catalog entry in %s: %w", c.path, err)
		}
		if err := fn(asset); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Recent caps a source at its first n assets. With a newest-first source
// this selects the n most recent. n <= 0 leaves the source unchanged.
func Recent(src Source, n int) Source {
	if n <= 0 {
		return src
	}
	return &recentSource{src: src, limit: n}
}

type recentSource struct {
	src   Source
	limit int
}

func (r *recentSource) Each(ctx context.Context, fn func(models.Asset) error) error {
	count := 0
	return r.src.Each(ctx, func(asset models.Asset) error {
		if err := fn(asset); err != nil {
			return err
		}
		count++
		if count >= r.limit {
			return ErrStop
		}
		return nil
	})
}

// Since keeps only assets created at or after the cutoff.
func Since(src Source, cutoff time.Time) Source {
	if cutoff.IsZero() {
		return src
	}
	return &sinceSource{src: src, cutoff: cutoff}
}

type sinceSource struct {
	src    Source
	cutoff time.Time
}

func (s *sinceSource) Each(ctx context.Context, fn func(models.Asset) error) error {
	return s.src.Each(ctx, func(asset models.Asset) error {
		if asset.CreatedAt.Before(s.cutoff) {
			return nil
		}
		return fn(asset)
	})
}
