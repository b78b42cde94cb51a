// Package s3 provides the S3-compatible object store implementation of
// store.Store, built on the MinIO SDK.
//
// The bucket namespace is flat: virtual folders are key prefixes, record
// metadata is object user metadata (see codec.go), and thumbnails live under
// the hidden .thumbnails/ prefix. Metadata lookup by id is a linear scan of
// the configured prefix (an explicit O(n) design tradeoff) unless an
// external index is attached.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/store/index"
	"github.com/filecrate/filecrate/internal/validate"
)

// Config holds the S3 driver settings.
type Config struct {
	store.Options

	// Endpoint is the host:port of the S3-compatible server.
	Endpoint string

	// AccessKey / SecretKey are the S3-style credentials.
	AccessKey string
	SecretKey string

	// UseSSL controls TLS. Region is for region-aware backends; leave empty
	// for MinIO.
	UseSSL bool
	Region string

	// Bucket is the bucket all content lives in.
	Bucket string

	// PublicRead marks the bucket as anonymously readable; PublicURL
	// returns direct URLs only when set.
	PublicRead bool

	// Index is an optional external id→key index. Nil keeps the default
	// linear-scan lookup contract. Index failures always degrade to the
	// scan; they never fail an operation.
	Index index.Index
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey, bucket string) *Config {
	return &Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
	}
}

// Driver is the S3 implementation of store.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	cfg    *Config
	kb     *keys.Builder
}

var _ store.Store = (*Driver)(nil)

// New connects to the object store using the provided Config and returns a
// Driver. It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindProvider, "failed to create s3 client", err)
	}

	d := &Driver{client: client, cfg: cfg, kb: cfg.KeyBuilder()}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping verifies the bucket is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.cfg.Bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.New(errs.ErrKindNotFound, "bucket does not exist: "+d.cfg.Bucket)
	}
	return nil
}

// Close releases the optional external index. The SDK client itself holds no
// persistent connections.
func (d *Driver) Close() error {
	if d.cfg.Index != nil {
		return d.cfg.Index.Close()
	}
	return nil
}

// Save validates and streams content into the bucket, encoding the record as
// object user metadata.
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

	if !opts.Overwrite {
		if _, err := d.client.StatObject(ctx, d.cfg.Bucket, key, miniogo.StatObjectOptions{}); err == nil {
			return nil, errs.New(errs.ErrKindAlreadyExists, "an object already exists at the target key")
		}
	}

	now := time.Now().UTC()
	rec := &store.FileRecord{
		ID:           id,
		Name:         fileName,
		OriginalName: fileName,
		Extension:    validate.Extension(fileName),
		ContentType:  contentType,
		CreatedAtUTC: now,
		UpdatedAtUTC: now,
		Folder:       keys.NormalizeFolder(opts.Folder),
		StoragePath:  key,
		Metadata:     opts.Metadata,
	}

	var hasher hash.Hash
	guard := store.NewSizeGuard(replay, d.cfg.MaxFileSizeBytes)
	src := io.Reader(guard)
	if d.cfg.ComputeHash {
		hasher = sha256.New()
		src = io.TeeReader(guard, hasher)
	}

	_, err = d.client.PutObject(ctx, d.cfg.Bucket, key, src, -1, miniogo.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: encodeMeta(rec),
	})
	if err != nil {
		// The SDK aborts multipart uploads itself; a completed partial
		// object is still possible, so remove best-effort.
		d.client.RemoveObject(context.WithoutCancel(ctx), d.cfg.Bucket, key, miniogo.RemoveObjectOptions{})
		return nil, mapError(err, "failed to upload object")
	}

	rec.SizeBytes = guard.Count()
	if hasher != nil {
		rec.Hash = hex.EncodeToString(hasher.Sum(nil))
	}

	// Size and hash are only known after streaming; rewrite the metadata
	// with a server-side self-copy so the stored record is complete.
	if err := d.rewriteMeta(ctx, key, rec); err != nil {
		d.client.RemoveObject(context.WithoutCancel(ctx), d.cfg.Bucket, key, miniogo.RemoveObjectOptions{})
		return nil, err
	}

	d.indexPut(ctx, rec.ID, key)
	return rec, nil
}

// rewriteMeta replaces an object's user metadata in place via a server-side
// self-copy with a REPLACE metadata directive.
func (d *Driver) rewriteMeta(ctx context.Context, key string, rec *store.FileRecord) error {
	_, err := d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{
			Bucket:          d.cfg.Bucket,
			Object:          key,
			UserMetadata:    encodeMeta(rec),
			ReplaceMetadata: true,
		},
		miniogo.CopySrcOptions{Bucket: d.cfg.Bucket, Object: key},
	)
	if err != nil {
		return mapError(err, "failed to update object metadata")
	}
	return nil
}

// Get opens the content stream for id. The caller must close it.
func (d *Driver) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := d.client.GetObject(ctx, d.cfg.Bucket, rec.StoragePath, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	// GetObject is lazy; stat forces a NotFound now instead of at first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}
	return obj, nil
}

// GetMetadata resolves a record by id: the optional external index first,
// then the linear metadata scan.
func (d *Driver) GetMetadata(ctx context.Context, id string) (*store.FileRecord, error) {
	if rec := d.indexLookup(ctx, id); rec != nil {
		return rec, nil
	}
	return d.scanForID(ctx, id)
}

// statRecord stats key and decodes its record, requiring the stored id to
// match when id is non-empty.
func (d *Driver) statRecord(ctx context.Context, key, id string) (*store.FileRecord, error) {
	stat, err := d.client.StatObject(ctx, d.cfg.Bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	rec, ok := decodeMeta(key, stat, d.kb.Folder)
	if !ok || (id != "" && rec.ID != id) {
		return nil, errs.New(errs.ErrKindNotFound, "no object found with id "+id)
	}
	return rec, nil
}

// Delete removes the object, its thumbnails and its index entry. Unknown ids
// are success with a false result.
func (d *Driver) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if err := d.client.RemoveObject(ctx, d.cfg.Bucket, rec.StoragePath, miniogo.RemoveObjectOptions{}); err != nil {
		return false, mapError(err, "failed to remove object")
	}
	d.deleteThumbnails(ctx, id)
	d.indexDelete(ctx, id)
	return true, nil
}

// Exists probes for id. Failures degrade to false.
func (d *Driver) Exists(ctx context.Context, id string) bool {
	_, err := d.GetMetadata(ctx, id)
	return err == nil
}

// Rename updates the display name in the object's metadata; the key and
// content are untouched.
func (d *Driver) Rename(ctx context.Context, id, newName string) (*store.FileRecord, error) {
	if err := validate.Validate(newName, []byte{1}, -1, validate.Options{}); err != nil {
		return nil, err
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.Name = newName
	rec.UpdatedAtUTC = time.Now().UTC()
	if err := d.rewriteMeta(ctx, rec.StoragePath, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Move relocates content under newFolder keeping the same id. Object stores
// have no native move: this is copy-then-delete and is not atomic. A crash
// between the two steps leaves the source object present and orphaned.
func (d *Driver) Move(ctx context.Context, id, newFolder string) (*store.FileRecord, error) {
	if err := store.CheckFolder(newFolder); err != nil {
		return nil, err
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	newKey := d.kb.Key(rec.ID, newFolder, rec.OriginalName)
	if newKey == rec.StoragePath {
		return rec, nil
	}

	oldKey := rec.StoragePath
	rec.Folder = keys.NormalizeFolder(newFolder)
	rec.StoragePath = newKey
	rec.UpdatedAtUTC = time.Now().UTC()

	_, err = d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{
			Bucket:          d.cfg.Bucket,
			Object:          newKey,
			UserMetadata:    encodeMeta(rec),
			ReplaceMetadata: true,
		},
		miniogo.CopySrcOptions{Bucket: d.cfg.Bucket, Object: oldKey},
	)
	if err != nil {
		return nil, mapError(err, "failed to copy object to destination")
	}

	if err := d.client.RemoveObject(ctx, d.cfg.Bucket, oldKey, miniogo.RemoveObjectOptions{}); err != nil {
		d.cfg.Log().Warn().Str("id", id).Str("orphan", oldKey).Err(err).
			Msg("move copied content but failed to delete the source object")
	}

	d.indexPut(ctx, rec.ID, newKey)
	return rec, nil
}

// Copy duplicates content and metadata under newFolder as a new record with
// a fresh id and fresh timestamps, using a server-side copy.
func (d *Driver) Copy(ctx context.Context, id, newFolder string) (*store.FileRecord, error) {
	if err := store.CheckFolder(newFolder); err != nil {
		return nil, err
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dup := rec.Clone()
	dup.ID = uuid.NewString()
	dup.Folder = keys.NormalizeFolder(newFolder)
	dup.StoragePath = d.kb.Key(dup.ID, newFolder, rec.OriginalName)
	dup.CreatedAtUTC = now
	dup.UpdatedAtUTC = now

	_, err = d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{
			Bucket:          d.cfg.Bucket,
			Object:          dup.StoragePath,
			UserMetadata:    encodeMeta(dup),
			ReplaceMetadata: true,
		},
		miniogo.CopySrcOptions{Bucket: d.cfg.Bucket, Object: rec.StoragePath},
	)
	if err != nil {
		return nil, mapError(err, "failed to copy object")
	}

	d.indexPut(ctx, dup.ID, dup.StoragePath)
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

// --- index plumbing (best-effort, never fails an operation) ---

func (d *Driver) indexPut(ctx context.Context, id, key string) {
	if d.cfg.Index == nil {
		return
	}
	if err := d.cfg.Index.Put(ctx, id, key); err != nil {
		d.cfg.Log().Warn().Str("id", id).Err(err).Msg("failed to update external index")
	}
}

func (d *Driver) indexDelete(ctx context.Context, id string) {
	if d.cfg.Index == nil {
		return
	}
	if err := d.cfg.Index.Delete(ctx, id); err != nil {
		d.cfg.Log().Warn().Str("id", id).Err(err).Msg("failed to remove external index entry")
	}
}

// indexLookup resolves id via the external index, verifying the stored id
// still matches the object's metadata. Any failure returns nil so the caller
// falls back to the scan.
func (d *Driver) indexLookup(ctx context.Context, id string) *store.FileRecord {
	if d.cfg.Index == nil {
		return nil
	}
	key, ok, err := d.cfg.Index.Lookup(ctx, id)
	if err != nil || !ok {
		return nil
	}
	rec, err := d.statRecord(ctx, key, id)
	if err != nil {
		return nil
	}
	return rec
}
