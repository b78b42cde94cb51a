// Package errs provides the unified error type used across all of filecrate.
//
// Every storage driver (local, s3, azure, …) wraps its native errors into
// *errs.Error before returning them to callers. Callers use the Is*
// predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindIO, "failed to write object", osErr)
//
//	// In a handler, check the error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
// All backends (filesystem, S3, Azure Blob, …) map their native errors to one
// of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown              ErrKind = iota
	ErrKindNotFound                     // no such file, object or blob
	ErrKindAlreadyExists                // target key already occupied
	ErrKindValidationFailed             // rejected by the save validator
	ErrKindPermissionDenied             // access denied / auth failure
	ErrKindResourceExhausted            // disk full, quota exceeded
	ErrKindIO                           // local read/write failure
	ErrKindProvider                     // backend-specific failure, surfaced opaquely
	ErrKindCancelled                    // context cancellation / deadline
	ErrKindSignedURLUnsupported         // provider cannot issue signed URLs as configured
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindAlreadyExists:
		return "already_exists"
	case ErrKindValidationFailed:
		return "validation_failed"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindResourceExhausted:
		return "resource_exhausted"
	case ErrKindIO:
		return "io_error"
	case ErrKindProvider:
		return "provider_error"
	case ErrKindCancelled:
		return "cancelled"
	case ErrKindSignedURLUnsupported:
		return "signed_url_unsupported"
	default:
		return "unknown"
	}
}

// Validation sub-reason codes. Carried on Error.Code so callers can tell
// which check rejected a save without parsing the message.
const (
	CodeEmptyFileName        = "empty_file_name"
	CodeInvalidFileName      = "invalid_file_name"
	CodeInvalidFileExtension = "invalid_file_extension"
	CodeEmptyFileContent     = "empty_file_content"
	CodeMaxFileSizeExceeded  = "max_file_size_exceeded"
	CodeInvalidContentType   = "invalid_content_type"
	CodeInvalidFileType      = "invalid_file_type"
	CodeInvalidFolderPath    = "invalid_folder_path"
)

// Error is the single error type returned by all filecrate subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Code    string // optional machine-readable sub-reason, e.g. "max_file_size_exceeded"
	Message string
	Cause   error // original backend-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Validation creates a ValidationFailed *Error carrying a sub-reason code.
func Validation(code, msg string) *Error {
	return &Error{Kind: ErrKindValidationFailed, Code: code, Message: msg}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing file, object or blob.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsAlreadyExists reports whether err was caused by an occupied target key.
func IsAlreadyExists(err error) bool {
	return kindOf(err) == ErrKindAlreadyExists
}

// IsValidationFailed reports whether err was produced by the save validator.
func IsValidationFailed(err error) bool {
	return kindOf(err) == ErrKindValidationFailed
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// IsResourceExhausted reports whether err is a disk-full / quota failure.
func IsResourceExhausted(err error) bool {
	return kindOf(err) == ErrKindResourceExhausted
}

// IsIO reports whether err is a local read/write failure.
func IsIO(err error) bool {
	return kindOf(err) == ErrKindIO
}

// IsProvider reports whether err is an opaque backend failure.
func IsProvider(err error) bool {
	return kindOf(err) == ErrKindProvider
}

// IsCancelled reports whether err was caused by context cancellation or a
// deadline. Callers use it to distinguish "the caller gave up" from "the
// operation failed".
func IsCancelled(err error) bool {
	return kindOf(err) == ErrKindCancelled
}

// IsSignedURLUnsupported reports whether the provider cannot issue signed
// URLs with its current configuration.
func IsSignedURLUnsupported(err error) bool {
	return kindOf(err) == ErrKindSignedURLUnsupported
}

// CodeOf extracts the machine-readable sub-reason code from any error in the
// chain, or "" if none is set.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the ErrKind from any error in the chain, or ErrKindUnknown
// when none is set.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

func kindOf(err error) ErrKind { return KindOf(err) }
