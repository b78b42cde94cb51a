package store

import "time"

// FileRecord is the canonical description of a stored file. Each driver
// reconstructs it from its backend's native metadata facility: a sidecar JSON
// file on the local filesystem, user metadata on S3 objects, blob metadata on
// Azure. The JSON tags define the sidecar layout and must not change.
type FileRecord struct {
	// ID is the opaque unique identifier, minted at save time and immutable
	// for the record's lifetime. Copy mints a new one; Move never does.
	ID string `json:"id"`

	// Name is the mutable display name; OriginalName is the upload-time name
	// and never changes.
	Name         string `json:"name"`
	OriginalName string `json:"originalName"`

	// Extension and ContentType are derived at save time from the name and
	// magic-byte sniffing. ContentType does not change after creation.
	Extension   string `json:"extension"`
	ContentType string `json:"contentType"`

	// SizeBytes is the exact byte count written during the save streaming
	// loop. Declared stream lengths are never trusted.
	SizeBytes int64 `json:"sizeBytes"`

	CreatedAtUTC time.Time `json:"createdAtUtc"`
	UpdatedAtUTC time.Time `json:"updatedAtUtc"`

	// Hash is the SHA-256 of the full content, present only when hashing is
	// enabled in the driver options.
	Hash string `json:"hash,omitempty"`

	// Folder is the virtual folder path. It has no existence of its own; it
	// is always re-derivable from StoragePath. Empty means root.
	Folder string `json:"folder,omitempty"`

	// StoragePath is the provider-native location: an absolute filesystem
	// path, an object key, or a blob name. Opaque to callers.
	StoragePath string `json:"storagePath"`

	// Metadata is the caller-supplied free-form key-value map, persisted
	// alongside the record under a provider-specific encoding.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of r.
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
