// Package azure provides the blob storage implementation of store.Store,
// built on the Azure Blob Storage SDK.
//
// It shares the flat-namespace model with the s3 driver: virtual folders are
// blob name prefixes, record metadata is blob metadata (see codec.go), and
// metadata lookup by id is a linear scan of the configured prefix unless an
// external index is attached. Unlike S3, the service supports a true
// metadata-only update, so rename and post-upload metadata fixups use
// SetMetadata instead of a self-copy.
package azure

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/google/uuid"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/store/index"
	"github.com/filecrate/filecrate/internal/validate"
)

// copySASValidity bounds the read SAS minted for server-side copy sources.
const copySASValidity = 15 * time.Minute

// Config holds the Azure driver settings.
type Config struct {
	store.Options

	// AccountName / AccountKey are the storage account shared-key
	// credentials. SignedURL requires them.
	AccountName string
	AccountKey  string

	// ServiceURL overrides the default
	// https://<account>.blob.core.windows.net/ endpoint, for Azurite and
	// sovereign clouds.
	ServiceURL string

	// Container is the blob container all content lives in.
	Container string

	// PublicRead marks the container as anonymously readable; PublicURL
	// returns direct URLs only when set.
	PublicRead bool

	// Index is an optional external id→key index. Nil keeps the default
	// linear-scan lookup contract. Index failures always degrade to the
	// scan; they never fail an operation.
	Index index.Index
}

// DefaultConfig returns a config for the given account and container.
func DefaultConfig(accountName, accountKey, container string) *Config {
	return &Config{
		AccountName: accountName,
		AccountKey:  accountKey,
		Container:   container,
	}
}

func (c *Config) serviceURL() string {
	if c.ServiceURL != "" {
		return c.ServiceURL
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.AccountName)
}

// Driver is the Azure Blob Storage implementation of store.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *azblob.Client
	cfg    *Config
	kb     *keys.Builder
}

var _ store.Store = (*Driver)(nil)

// New connects to the blob service using the provided Config and returns a
// Driver. It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *Config) (*Driver, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindProvider, "invalid azure credentials", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(cfg.serviceURL(), cred, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindProvider, "failed to create azure client", err)
	}

	d := &Driver{client: client, cfg: cfg, kb: cfg.KeyBuilder()}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping verifies the container is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	cc := d.client.ServiceClient().NewContainerClient(d.cfg.Container)
	if _, err := cc.GetProperties(ctx, nil); err != nil {
		return mapError(err, "ping failed")
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

func (d *Driver) blobClient(name string) *blob.Client {
	return d.client.ServiceClient().NewContainerClient(d.cfg.Container).NewBlobClient(name)
}

// Save validates and streams content into the container, encoding the record
// as blob metadata.
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
		if _, err := d.blobClient(key).GetProperties(ctx, nil); err == nil {
			return nil, errs.New(errs.ErrKindAlreadyExists, "a blob already exists at the target name")
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

	_, err = d.client.UploadStream(ctx, d.cfg.Container, key, src, &azblob.UploadStreamOptions{
		Metadata:    encodeMeta(rec),
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		d.client.DeleteBlob(context.WithoutCancel(ctx), d.cfg.Container, key, nil)
		return nil, mapError(err, "failed to upload blob")
	}

	rec.SizeBytes = guard.Count()
	if hasher != nil {
		rec.Hash = hex.EncodeToString(hasher.Sum(nil))
	}

	// Size and hash are only known after streaming; a metadata-only update
	// completes the stored record.
	if _, err := d.blobClient(key).SetMetadata(ctx, encodeMeta(rec), nil); err != nil {
		d.client.DeleteBlob(context.WithoutCancel(ctx), d.cfg.Container, key, nil)
		return nil, mapError(err, "failed to update blob metadata")
	}

	d.indexPut(ctx, rec.ID, key)
	return rec, nil
}

// Get opens the content stream for id. The caller must close it.
func (d *Driver) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.DownloadStream(ctx, d.cfg.Container, rec.StoragePath, nil)
	if err != nil {
		return nil, mapError(err, "failed to download blob")
	}
	return resp.Body, nil
}

// GetMetadata resolves a record by id: the optional external index first,
// then the linear metadata scan.
func (d *Driver) GetMetadata(ctx context.Context, id string) (*store.FileRecord, error) {
	if rec := d.indexLookup(ctx, id); rec != nil {
		return rec, nil
	}
	return d.scanForID(ctx, id)
}

// statRecord fetches a blob's properties and decodes its record, requiring
// the stored id to match when id is non-empty.
func (d *Driver) statRecord(ctx context.Context, key, id string) (*store.FileRecord, error) {
	resp, err := d.blobClient(key).GetProperties(ctx, nil)
	if err != nil {
		return nil, mapError(err, "failed to get blob properties")
	}

	stat := blobStat{}
	if resp.ContentLength != nil {
		stat.size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		stat.contentType = *resp.ContentType
	}
	if resp.LastModified != nil {
		stat.lastModified = *resp.LastModified
	}

	rec, ok := decodeMeta(key, resp.Metadata, stat, d.kb.Folder)
	if !ok || (id != "" && rec.ID != id) {
		return nil, errs.New(errs.ErrKindNotFound, "no blob found with id "+id)
	}
	return rec, nil
}

// Delete removes the blob, its thumbnails and its index entry. Unknown ids
// are success with a false result.
func (d *Driver) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if _, err := d.client.DeleteBlob(ctx, d.cfg.Container, rec.StoragePath, nil); err != nil {
		return false, mapError(err, "failed to delete blob")
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

// Rename updates the display name in the blob's metadata; the blob name and
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
	if _, err := d.blobClient(rec.StoragePath).SetMetadata(ctx, encodeMeta(rec), nil); err != nil {
		return nil, mapError(err, "failed to update blob metadata")
	}
	return rec, nil
}

// Move relocates content under newFolder keeping the same id. Blob storage
// has no native move: this is copy-then-delete and is not atomic. A crash
// between the two steps leaves the source blob present and orphaned.
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

	if err := d.copyBlob(ctx, oldKey, newKey, encodeMeta(rec)); err != nil {
		return nil, err
	}

	if _, err := d.client.DeleteBlob(ctx, d.cfg.Container, oldKey, nil); err != nil {
		d.cfg.Log().Warn().Str("id", id).Str("orphan", oldKey).Err(err).
			Msg("move copied content but failed to delete the source blob")
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

	if err := d.copyBlob(ctx, rec.StoragePath, dup.StoragePath, encodeMeta(dup)); err != nil {
		return nil, err
	}

	d.indexPut(ctx, dup.ID, dup.StoragePath)
	return dup, nil
}

// copyBlob runs a server-side copy from srcKey to dstKey with dstMeta as the
// destination's metadata, waiting for the asynchronous copy to complete. The
// source is addressed through a short-lived read SAS so the service can pull
// it regardless of container access level.
func (d *Driver) copyBlob(ctx context.Context, srcKey, dstKey string, dstMeta map[string]*string) error {
	srcURL, err := d.blobClient(srcKey).GetSASURL(
		sas.BlobPermissions{Read: true},
		time.Now().UTC().Add(copySASValidity),
		nil,
	)
	if err != nil {
		return mapError(err, "failed to sign copy source")
	}

	dst := d.blobClient(dstKey)
	if _, err := dst.StartCopyFromURL(ctx, srcURL, &blob.StartCopyFromURLOptions{Metadata: dstMeta}); err != nil {
		return mapError(err, "failed to start blob copy")
	}
	return d.waitCopy(ctx, dst)
}

// waitCopy polls the destination until the service finishes an asynchronous
// copy. Same-account copies usually complete before the first poll.
func (d *Driver) waitCopy(ctx context.Context, dst *blob.Client) error {
	for {
		resp, err := dst.GetProperties(ctx, nil)
		if err != nil {
			return mapError(err, "failed to poll blob copy")
		}
		if resp.CopyStatus == nil || *resp.CopyStatus == blob.CopyStatusTypeSuccess {
			return nil
		}
		if *resp.CopyStatus != blob.CopyStatusTypePending {
			return errs.New(errs.ErrKindProvider, "blob copy ended in state "+string(*resp.CopyStatus))
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.ErrKindCancelled, "blob copy interrupted", ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
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
// still matches the blob's metadata. Any failure returns nil so the caller
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
