package store

import (
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/logger"
	"github.com/filecrate/filecrate/internal/validate"
)

// Options holds the behavior settings common to every driver. Drivers embed
// it in their backend-specific Config. All fields are immutable after engine
// construction.
type Options struct {
	// RootPrefix is prepended to every storage key. Empty for none.
	RootPrefix string

	// Naming overrides how the stored file segment is derived. Must be a
	// pure function; nil uses keys.DefaultNaming (<id><ext>).
	Naming keys.Naming

	// MaxFileSizeBytes rejects oversized saves. 0 means unlimited. Enforced
	// both at validation (when a size is declared) and while streaming.
	MaxFileSizeBytes int64

	// AllowedExtensions / AllowedContentTypes gate saves. Empty lists accept
	// everything.
	AllowedExtensions   []string
	AllowedContentTypes []string

	// ComputeHash enables SHA-256 hashing of content during the save loop.
	// Off by default: hashing reads every byte twice as fast storage.
	ComputeHash bool

	// Logger receives advisory driver events. Nil means no logging.
	Logger *logger.Logger
}

// ValidateOptions projects Options into the validator's view of it.
func (o *Options) ValidateOptions() validate.Options {
	return validate.Options{
		AllowedExtensions:   o.AllowedExtensions,
		AllowedContentTypes: o.AllowedContentTypes,
		MaxFileSizeBytes:    o.MaxFileSizeBytes,
	}
}

// Log returns the configured logger or a no-op one.
func (o *Options) Log() *logger.Logger {
	if o.Logger == nil {
		return logger.Nop()
	}
	return o.Logger
}

// KeyBuilder constructs the key builder for these options.
func (o *Options) KeyBuilder() *keys.Builder {
	return keys.NewBuilder(o.RootPrefix, o.Naming)
}
