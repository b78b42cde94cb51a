package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/filecrate/filecrate/internal/errs"
)

// mapError translates an OS-level error into a *errs.Error. It mirrors the
// mapError pattern used by the s3 and azure drivers: every driver owns its
// backend's error surface.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Errors already classified pass through unchanged (e.g. the size guard
	// surfacing a validation failure from inside a copy loop).
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrExist):
		return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT):
		return errs.Wrap(errs.ErrKindResourceExhausted, msg, err)
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errs.Wrap(errs.ErrKindIO, msg, err)
	}

	return errs.Wrap(errs.ErrKindIO, msg, err)
}
