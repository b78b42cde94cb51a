package s3

import (
	"context"
	"errors"
	"net/http"

	minioErr "github.com/minio/minio-go/v7"

	"github.com/filecrate/filecrate/internal/errs"
)

// mapError translates a MinIO SDK error into a *errs.Error. It mirrors the
// mapError pattern used in the local and azure drivers.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Errors already classified pass through unchanged (e.g. the size guard
	// failing an upload mid-stream).
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}

	// Context cancellation / deadline
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}

	// MinIO SDK exposes a typed ErrorResponse for S3-protocol errors
	var resp minioErr.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusConflict:
			return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
		}

		// S3 error codes that may arrive with other statuses
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
		case "QuotaExceeded", "SlowDown":
			return errs.Wrap(errs.ErrKindResourceExhausted, msg, err)
		}

		return errs.Wrap(errs.ErrKindProvider, msg, err)
	}

	// Anything else surfaces as an opaque provider failure
	return errs.Wrap(errs.ErrKindProvider, msg, err)
}
