package s3

import (
	"context"
	"time"
)

// PublicURL returns a direct bucket URL when the bucket is configured for
// public read, else "". It never fails; lookup errors degrade to "".
func (d *Driver) PublicURL(ctx context.Context, id string) string {
	if !d.cfg.PublicRead {
		return ""
	}
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return ""
	}
	base := *d.client.EndpointURL()
	base.Path = "/" + d.cfg.Bucket + "/" + rec.StoragePath
	return base.String()
}

// SignedURL returns a presigned time-limited download URL for id.
func (d *Driver) SignedURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	rec, err := d.GetMetadata(ctx, id)
	if err != nil {
		return "", err
	}
	u, err := d.client.PresignedGetObject(ctx, d.cfg.Bucket, rec.StoragePath, expiry, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}
