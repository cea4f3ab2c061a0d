package storage

import (
	"context"

	"den/internal/index"
)

// Store persists scan results between runs.
type Store interface {
	IndexStore
	Close() error
}

// IndexStore defines operations for persisting an index.
type IndexStore interface {
	// SaveIndex replaces the stored snapshot with x.
	SaveIndex(ctx context.Context, x *index.Index) error

	// SaveFile upserts one file's result, replacing its regions and warnings.
	SaveFile(ctx context.Context, f *index.FileResult) error

	// LoadIndex rebuilds an index rooted at root from the stored snapshot.
	LoadIndex(ctx context.Context, root string) (*index.Index, error)

	// FindRegionsByFile retrieves the regions of one file in line order.
	FindRegionsByFile(ctx context.Context, path string) ([]index.RegionRecord, error)

	// FileHash returns the stored content hash of a file.
	FileHash(ctx context.Context, path string) (hash string, ok bool, err error)

	// DeleteFile removes a file and everything recorded for it.
	DeleteFile(ctx context.Context, path string) error
}
