package s3

import (
	"context"
	"errors"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"404 status", miniogo.ErrorResponse{StatusCode: http.StatusNotFound, Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"403 status", miniogo.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"}, errs.ErrKindPermissionDenied},
		{"401 status", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"409 status", miniogo.ErrorResponse{StatusCode: http.StatusConflict}, errs.ErrKindAlreadyExists},
		{"code without status", miniogo.ErrorResponse{Code: "NoSuchBucket"}, errs.ErrKindNotFound},
		{"quota code", miniogo.ErrorResponse{Code: "QuotaExceeded"}, errs.ErrKindResourceExhausted},
		{"slow down code", miniogo.ErrorResponse{Code: "SlowDown"}, errs.ErrKindResourceExhausted},
		{"unknown s3 error", miniogo.ErrorResponse{StatusCode: http.StatusInternalServerError, Code: "InternalError"}, errs.ErrKindProvider},
		{"deadline", context.DeadlineExceeded, errs.ErrKindCancelled},
		{"cancellation", context.Canceled, errs.ErrKindCancelled},
		{"opaque error", errors.New("connection reset"), errs.ErrKindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.Nil(t, mapError(nil, "no-op"))
}

// Errors already classified (the mid-stream size guard, validation) pass
// through without re-wrapping.
func TestMapErrorPassThrough(t *testing.T) {
	original := errs.Validation(errs.CodeMaxFileSizeExceeded, "too big")

	got := mapError(original, "upload failed")
	assert.Same(t, original, got)
}
