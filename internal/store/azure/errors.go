package azure

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/filecrate/filecrate/internal/errs"
)

// mapError translates an Azure SDK error into a *errs.Error. It mirrors the
// mapError pattern used in the local and s3 drivers.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Errors already classified pass through unchanged.
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}

	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ContainerAlreadyExists):
		return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure, bloberror.InsufficientAccountPermissions):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	}

	// Fall back to HTTP status for codes without a bloberror constant.
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusConflict:
			return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusInsufficientStorage:
			return errs.Wrap(errs.ErrKindResourceExhausted, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindProvider, msg, err)
}
