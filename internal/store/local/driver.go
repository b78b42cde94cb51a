// Package local provides the filesystem implementation of store.Store.
//
// Layout under BasePath:
//
//	<folder>/<id><ext>              content
//	.metadata/<id>.meta.json        sidecar FileRecord
//	.thumbnails/<size>/<id>.jpg     thumbnail cache
//	<folder>/.folder                placeholder for empty folders
//
// All writes are atomic: temp file → fsync → rename.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/validate"
)

// Config holds the filesystem driver settings.
type Config struct {
	store.Options

	// BasePath is the storage root directory. Created if missing.
	BasePath string

	// PublicBaseURL, when set, marks content as publicly readable and is
	// the prefix for PublicURL results. Empty disables public URLs.
	PublicBaseURL string

	// SignedURLKey is the HMAC-SHA256 key for signed URLs. Empty disables
	// signing (SignedURL fails with SignedURLUnsupported).
	SignedURLKey []byte

	// SignedURLBase prefixes generated signed URLs, e.g. the host the HTTP
	// adapter serves from.
	SignedURLBase string
}

// DefaultConfig returns a local-dev config rooted at basePath.
func DefaultConfig(basePath string) *Config {
	return &Config{BasePath: basePath}
}

// Driver is the filesystem implementation of store.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	cfg *Config
	kb  *keys.Builder
}

var _ store.Store = (*Driver)(nil)

// New creates the storage root and returns a Driver.
func New(ctx context.Context, cfg *Config) (*Driver, error) {
	if cfg == nil || cfg.BasePath == "" {
		return nil, errs.New(errs.ErrKindProvider, "local storage requires a base path")
	}
	if err := os.MkdirAll(cfg.BasePath, 0o750); err != nil {
		return nil, mapError(err, "failed to create storage root")
	}

	return &Driver{cfg: cfg, kb: cfg.KeyBuilder()}, nil
}

// Ping verifies the storage root is accessible.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := os.Stat(d.cfg.BasePath); err != nil {
		return mapError(err, "storage root is not accessible")
	}
	return nil
}

// Close is a no-op for the filesystem driver.
func (d *Driver) Close() error {
	return nil
}

// fullPath converts a slash-separated storage key into an absolute path.
func (d *Driver) fullPath(key string) string {
	return filepath.Join(d.cfg.BasePath, filepath.FromSlash(key))
}

// Save streams content to disk and writes the sidecar record.
func (d *Driver) Save(ctx context.Context, content io.Reader, fileName string, opts store.SaveOptions) (*store.FileRecord, error) {
	contentType, header, replay, err := validate.Sniff(content, fileName)
	if err != nil {
		return nil, mapError(err, "failed to read content header")
	}
	if err := validate.Validate(fileName, header, opts.DeclaredSize, d.cfg.ValidateOptions()); err != nil {
		return nil, err
	}
	if err := store.CheckFolder(opts.Folder); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	key := d.kb.Key(id, opts.Folder, fileName)
	target := d.fullPath(key)

	if !opts.Overwrite {
		if _, err := os.Stat(target); err == nil {
			return nil, errs.New(errs.ErrKindAlreadyExists, "a file already exists at the target path")
		}
	}

	var hasher hash.Hash
	if d.cfg.ComputeHash {
		hasher = sha256.New()
	}

	size, err := d.writeContent(ctx, target, replay, hasher, d.cfg.MaxFileSizeBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &store.FileRecord{
		ID:           id,
		Name:         fileName,
		OriginalName: fileName,
		Extension:    validate.Extension(fileName),
		ContentType:  contentType,
		SizeBytes:    size,
		CreatedAtUTC: now,
		UpdatedAtUTC: now,
		Folder:       keys.NormalizeFolder(opts.Folder),
		StoragePath:  target,
		Metadata:     opts.Metadata,
	}
	if hasher != nil {
		rec.Hash = hex.EncodeToString(hasher.Sum(nil))
	}

	if err := d.writeSidecar(rec); err != nil {
		os.Remove(target)
		return nil, err
	}
	return rec, nil
}

// writeContent streams r into an atomically renamed file, enforcing max (0
// for no cap) and cancellation mid-stream. On any failure the partial file is
// gone.
func (d *Driver) writeContent(ctx context.Context, target string, r io.Reader, hasher hash.Hash, max int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, mapError(err, "failed to create folder")
	}

	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, mapError(err, "failed to create temp file")
	}

	abort := func(err *errs.Error) (int64, error) {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}

	guard := store.NewSizeGuard(r, max)
	src := io.Reader(guard)
	if hasher != nil {
		src = io.TeeReader(guard, hasher)
	}

	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return abort(errs.Wrap(errs.ErrKindCancelled, "save cancelled mid-stream", err))
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return abort(mapError(werr, "failed to write content"))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return abort(mapError(rerr, "failed to read content"))
		}
	}

	if err := f.Sync(); err != nil {
		return abort(mapError(err, "failed to sync content"))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, mapError(err, "failed to close content file")
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return 0, mapError(err, "failed to finalize content file")
	}
	return guard.Count(), nil
}

// Get opens the content stream for id. The caller must close it.
func (d *Driver) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rec.StoragePath)
	if err != nil {
		return nil, mapError(err, "failed to open content")
	}
	return f, nil
}

// Delete removes content, sidecar and cached thumbnails. Unknown ids are
// success with a false result.
func (d *Driver) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if err := os.Remove(rec.StoragePath); err != nil && !os.IsNotExist(err) {
		return false, mapError(err, "failed to delete content")
	}
	d.deleteSidecar(id)
	d.deleteThumbnails(id)
	return true, nil
}

// Exists probes for id. Failures degrade to false.
func (d *Driver) Exists(ctx context.Context, id string) bool {
	_, err := d.GetMetadata(ctx, id)
	return err == nil
}

// Rename updates the display name only. The storage key is unchanged.
func (d *Driver) Rename(ctx context.Context, id, newName string) (*store.FileRecord, error) {
	if err := validateName(newName); err != nil {
		return nil, err
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Name = newName
	rec.UpdatedAtUTC = time.Now().UTC()
	if err := d.writeSidecar(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Move relocates content under newFolder using the filesystem's native
// atomic rename, keeping the same id.
func (d *Driver) Move(ctx context.Context, id, newFolder string) (*store.FileRecord, error) {
	if err := store.CheckFolder(newFolder); err != nil {
		return nil, err
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	newKey := d.kb.Key(rec.ID, newFolder, rec.OriginalName)
	target := d.fullPath(newKey)
	if target == rec.StoragePath {
		return rec, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, mapError(err, "failed to create destination folder")
	}
	if err := os.Rename(rec.StoragePath, target); err != nil {
		return nil, mapError(err, "failed to move content")
	}

	rec.Folder = keys.NormalizeFolder(newFolder)
	rec.StoragePath = target
	rec.UpdatedAtUTC = time.Now().UTC()
	if err := d.writeSidecar(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Copy duplicates content and metadata under newFolder as a new record with
// a fresh id and fresh timestamps.
func (d *Driver) Copy(ctx context.Context, id, newFolder string) (*store.FileRecord, error) {
	if err := store.CheckFolder(newFolder); err != nil {
		return nil, err
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	newID := uuid.NewString()
	newKey := d.kb.Key(newID, newFolder, rec.OriginalName)
	target := d.fullPath(newKey)

	src, err := os.Open(rec.StoragePath)
	if err != nil {
		return nil, mapError(err, "failed to open source content")
	}
	defer src.Close()

	if _, err := d.writeContent(ctx, target, src, nil, 0); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dup := rec.Clone()
	dup.ID = newID
	dup.Folder = keys.NormalizeFolder(newFolder)
	dup.StoragePath = target
	dup.CreatedAtUTC = now
	dup.UpdatedAtUTC = now

	if err := d.writeSidecar(dup); err != nil {
		os.Remove(target)
		return nil, err
	}
	return dup, nil
}

// BulkSave applies Save sequentially; see store.BulkSaveSeq for the policy.
func (d *Driver) BulkSave(ctx context.Context, items []store.SaveItem, folder string) ([]*store.FileRecord, error) {
	return store.BulkSaveSeq(ctx, d, items, folder)
}

// BulkDelete applies Delete sequentially, skipping failures.
func (d *Driver) BulkDelete(ctx context.Context, ids []string) []string {
	return store.BulkDeleteSeq(ctx, d, ids)
}

// BulkMove applies Move sequentially, skipping failures.
func (d *Driver) BulkMove(ctx context.Context, ids []string, newFolder string) []*store.FileRecord {
	return store.BulkMoveSeq(ctx, d, ids, newFolder)
}

func validateName(name string) error {
	return validate.Validate(name, []byte{1}, -1, validate.Options{})
}
