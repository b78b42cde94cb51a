package azure

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/filecrate/filecrate/internal/errs"
)

// PublicURL returns a direct blob URL when the container is configured for
// public read, else "". It never fails; lookup errors degrade to "".
func (d *Driver) PublicURL(ctx context.Context, id string) string {
	if !d.cfg.PublicRead {
		return ""
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return ""
	}
	return d.blobClient(rec.StoragePath).URL()
}

// SignedURL returns a read-only SAS URL for id, valid for expiry. The client
// must hold the shared-key credential; without it SAS generation is
// unsupported.
func (d *Driver) SignedURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return "", err
	}

	u, err := d.blobClient(rec.StoragePath).GetSASURL(
		sas.BlobPermissions{Read: true},
		time.Now().UTC().Add(expiry),
		nil,
	)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindSignedURLUnsupported, "failed to generate SAS URL", err)
	}
	return u, nil
}
