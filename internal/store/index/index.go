// Package index defines an optional external id→storage-key index for the
// object and blob store drivers.
//
// By contract, metadata lookup on those backends is a linear scan of the
// configured prefix. That scan is the documented default; an Index attached
// at driver construction only accelerates the lookup fast path. Drivers
// treat the index as best-effort: any index failure degrades to the scan and
// never fails a storage operation.
package index

import "context"

// Index maps file ids to their current storage keys.
// Implementations must be safe for concurrent use.
type Index interface {
	// Put records or replaces the storage key for id.
	Put(ctx context.Context, id, storageKey string) error

	// Lookup returns the storage key for id, with ok=false when the id is
	// not indexed.
	Lookup(ctx context.Context, id string) (storageKey string, ok bool, err error)

	// Delete removes the entry for id. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying connections.
	Close() error
}
