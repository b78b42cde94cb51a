// Package store defines the capability contract all file storage drivers
// implement, the FileRecord model, and the shared search/sort/pagination
// engine applied by every driver over its own enumeration primitive.
//
// Callers depend only on this package, never on a specific driver package.
//
// Usage:
//
//	cfg := local.DefaultConfig("/var/lib/filecrate")
//	st, err := local.New(ctx, cfg)
//	if err != nil { ... }
//	defer st.Close()
//
//	rec, err := st.Save(ctx, content, "report.pdf", store.SaveOptions{Folder: "reports/2026"})
package store

import (
	"context"
	"io"
	"time"

	"github.com/filecrate/filecrate/internal/thumbnail"
)

// PlaceholderName is the reserved file name written into a folder by
// CreateFolder so an otherwise-empty prefix stays enumerable. Entries with
// this name are excluded from every List/Search result.
const PlaceholderName = ".folder"

// ThumbnailPrefix is the hidden key prefix under which generated thumbnails
// are cached: <prefix>/<size>/<id>.jpg.
const ThumbnailPrefix = ".thumbnails"

// MetadataPrefix is the hidden prefix for sidecar metadata on backends that
// use one (the local filesystem driver).
const MetadataPrefix = ".metadata"

// Store is the single contract all storage drivers implement. The three
// drivers (local filesystem, S3-compatible object store, Azure Blob) must be
// behaviorally indistinguishable through this interface.
//
// Concurrency: a Store holds no mutable shared state beyond its configuration
// and backend client, so concurrent calls for different ids are safe.
// Concurrent operations on the same id are not coordinated; the outcome is
// backend-dependent (a documented race, not serialized here).
type Store interface {
	// Save validates and streams content into the backend and persists the
	// record's metadata. The engine never closes content; the caller retains
	// ownership. Fails with AlreadyExists if the target key is occupied and
	// opts.Overwrite is unset. A mid-stream size violation or cancellation
	// removes the partial object before returning.
	Save(ctx context.Context, content io.Reader, fileName string, opts SaveOptions) (*FileRecord, error)

	// Get opens the content stream for id. The caller owns the returned
	// stream and must close it. Fails with NotFound if id is unknown.
	Get(ctx context.Context, id string) (io.ReadCloser, error)

	// GetMetadata resolves the FileRecord for id. Fails with NotFound if id
	// is unknown. On the object/blob drivers this is a linear scan of the
	// configured prefix unless an external index is attached: a documented
	// O(n) contract, not a defect.
	GetMetadata(ctx context.Context, id string) (*FileRecord, error)

	// Delete removes the record, its content and any sidecar state. Deleting
	// an unknown id is success with a false result, never an error.
	Delete(ctx context.Context, id string) (bool, error)

	// Exists is a cheap existence probe. It never fails; errors degrade to
	// false.
	Exists(ctx context.Context, id string) bool

	// Rename changes only the display name and UpdatedAtUTC. The storage key
	// is untouched: rename is metadata-only, not a content move.
	Rename(ctx context.Context, id, newName string) (*FileRecord, error)

	// Move relocates content under newFolder keeping the same id. Backends
	// without a native move use copy-then-delete, which is not atomic: an
	// interruption between the two steps leaves the source orphaned.
	Move(ctx context.Context, id, newFolder string) (*FileRecord, error)

	// Copy duplicates content and metadata under newFolder as a wholly new
	// record: fresh id, fresh timestamps. The original is untouched.
	Copy(ctx context.Context, id, newFolder string) (*FileRecord, error)

	// BulkSave applies Save sequentially per item. Successes persist even if
	// later items fail; per-item errors are aggregated into one combined
	// failure. Returns the records that were saved either way.
	BulkSave(ctx context.Context, items []SaveItem, folder string) ([]*FileRecord, error)

	// BulkDelete applies Delete sequentially, silently skipping ids that fail
	// or do not exist. Returns only the ids actually deleted.
	BulkDelete(ctx context.Context, ids []string) []string

	// BulkMove applies Move sequentially, silently skipping ids that fail.
	// Returns only the records actually moved.
	BulkMove(ctx context.Context, ids []string, newFolder string) []*FileRecord

	// List returns the folder's records, paginated. Subfolders are included.
	List(ctx context.Context, folder string, page, pageSize int) (*Page, error)

	// Search applies the full criteria grammar. Candidates are pulled from
	// the backend's enumeration primitive and filtered in memory; results are
	// materialized in full before paging.
	Search(ctx context.Context, criteria SearchCriteria) (*Page, error)

	// Thumbnail returns a cached or freshly generated JPEG thumbnail for a
	// raster image record. Fails with ValidationFailed/invalid_file_type for
	// non-image or undecodable content. The caller closes the stream.
	Thumbnail(ctx context.Context, id string, size thumbnail.Size) (io.ReadCloser, error)

	// PublicURL returns a direct URL when the backend is configured for
	// public read, else "". It never fails.
	PublicURL(ctx context.Context, id string) string

	// SignedURL issues a time-limited access URL. Fails with
	// SignedURLUnsupported when the driver lacks the configuration to sign.
	SignedURL(ctx context.Context, id string, expiry time.Duration) (string, error)

	// ListFolders returns distinct virtual folders, sorted. With parent set,
	// only immediate children of parent are returned. Placeholder objects
	// count: an empty folder created via CreateFolder is listed.
	ListFolders(ctx context.Context, parent string) ([]string, error)

	// DeleteFolder removes every record in folder (the whole subtree when
	// recursive, exact matches only otherwise) and returns the count
	// deleted. An empty selection is 0, not an error.
	DeleteFolder(ctx context.Context, folder string, recursive bool) (int, error)

	// CreateFolder makes an empty folder enumerable by writing a hidden
	// placeholder object. Creating an existing folder is idempotent success.
	CreateFolder(ctx context.Context, folderPath string) (string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend client. The engine owns its client for its
	// whole lifetime; it is constructed once, never per call.
	Close() error
}

// SaveOptions carries the optional parts of a Save call.
type SaveOptions struct {
	// Folder is the virtual destination folder. Empty means root.
	Folder string

	// Metadata is the caller's free-form key-value map.
	Metadata map[string]string

	// Overwrite permits replacing an existing object at the target key.
	// Without it an occupied key fails with AlreadyExists before any write.
	Overwrite bool

	// DeclaredSize is the caller's size hint in bytes, or a negative value
	// when unknown. Advisory only: the save loop counts and enforces bytes
	// itself.
	DeclaredSize int64
}

// SaveItem is one element of a BulkSave.
type SaveItem struct {
	FileName string
	Content  io.Reader
	Metadata map[string]string
}

// Page is a materialized page of search or list results.
type Page struct {
	Items      []*FileRecord `json:"items"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}
