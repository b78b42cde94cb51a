package azure

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/thumbnail"
)

// thumbRoot returns the hidden thumbnail-cache prefix, under the configured
// root when one is set.
func (d *Driver) thumbRoot() string {
	if root := d.kb.Root(); root != "" {
		return root + keys.Separator + store.ThumbnailPrefix
	}
	return store.ThumbnailPrefix
}

// thumbKey is the deterministic cache name for an id at a size class.
func (d *Driver) thumbKey(size thumbnail.Size, id string) string {
	return strings.Join([]string{d.thumbRoot(), string(size), id + ".jpg"}, keys.Separator)
}

// Thumbnail serves the cached thumbnail when it is at least as fresh as the
// source blob, otherwise regenerates and repopulates the cache.
func (d *Driver) Thumbnail(ctx context.Context, id string, size thumbnail.Size) (io.ReadCloser, error) {
	if !size.Valid() {
		return nil, errs.Validation(errs.CodeInvalidFileType, "unknown thumbnail size: "+string(size))
	}

	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !thumbnail.Supported(rec.ContentType) {
		return nil, errs.Validation(errs.CodeInvalidFileType, "thumbnails are not supported for "+rec.ContentType)
	}

	srcProps, err := d.blobClient(rec.StoragePath).GetProperties(ctx, nil)
	if err != nil {
		return nil, mapError(err, "failed to get source blob properties")
	}

	cacheKey := d.thumbKey(size, id)
	if cacheProps, err := d.blobClient(cacheKey).GetProperties(ctx, nil); err == nil {
		if cacheProps.LastModified != nil && srcProps.LastModified != nil &&
			!cacheProps.LastModified.Before(*srcProps.LastModified) {
			resp, err := d.client.DownloadStream(ctx, d.cfg.Container, cacheKey, nil)
			if err == nil {
				return resp.Body, nil
			}
			// Unreadable cache regenerates below.
		}
	}

	resp, err := d.client.DownloadStream(ctx, d.cfg.Container, rec.StoragePath, nil)
	if err != nil {
		return nil, mapError(err, "failed to download source blob")
	}
	src, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, mapError(err, "failed to read source blob")
	}

	encoded, _, _, err := thumbnail.Generate(src, size.MaxDimension())
	if err != nil {
		return nil, err
	}

	_, err = d.client.UploadBuffer(ctx, d.cfg.Container, cacheKey, encoded, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("image/jpeg")},
	})
	if err != nil {
		return nil, mapError(err, "failed to cache thumbnail")
	}

	return io.NopCloser(bytes.NewReader(encoded)), nil
}

// deleteThumbnails removes all cached sizes for an id, best effort.
func (d *Driver) deleteThumbnails(ctx context.Context, id string) {
	for _, size := range []thumbnail.Size{thumbnail.SizeSmall, thumbnail.SizeMedium, thumbnail.SizeLarge} {
		d.client.DeleteBlob(ctx, d.cfg.Container, d.thumbKey(size, id), nil)
	}
}
