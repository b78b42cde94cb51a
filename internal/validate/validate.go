// Package validate implements the save-time validation pipeline and
// magic-byte content-type detection shared by all storage drivers.
package validate

import (
	"strings"

	"github.com/filecrate/filecrate/internal/errs"
)

// Options configures the validation pipeline. The zero value accepts any
// non-empty file with a legal name.
type Options struct {
	// AllowedExtensions is a case-insensitive allow-list (".png", ".pdf", …).
	// Empty means any extension is accepted.
	AllowedExtensions []string

	// AllowedContentTypes is an allow-list of exact types ("application/pdf")
	// or type/* wildcards ("image/*"), matched against the detected type.
	// Empty means any content type is accepted.
	AllowedContentTypes []string

	// MaxFileSizeBytes caps content size. 0 means unlimited. Declared sizes
	// are advisory; drivers re-enforce the cap while streaming.
	MaxFileSizeBytes int64
}

// invalidNameChars are rejected in file names on every platform filecrate
// targets. Path separators are included so a file name can never escape its
// folder.
const invalidNameChars = `<>:"/\|?*`

// Validate applies the save checks in fixed order; the first failure wins and
// no later check runs. header holds the leading content bytes (what Sniff
// consumed) and stands in for content emptiness. declaredSize is the caller's
// size hint, or a negative value when unknown.
func Validate(fileName string, header []byte, declaredSize int64, opts Options) error {
	if strings.TrimSpace(fileName) == "" {
		return errs.Validation(errs.CodeEmptyFileName, "file name must not be empty")
	}

	if strings.ContainsAny(fileName, invalidNameChars) || containsControl(fileName) {
		return errs.Validation(errs.CodeInvalidFileName, "file name contains invalid characters: "+fileName)
	}

	if len(opts.AllowedExtensions) > 0 {
		ext := Extension(fileName)
		if !containsFold(opts.AllowedExtensions, ext) {
			return errs.Validation(errs.CodeInvalidFileExtension, "file extension is not allowed: "+ext)
		}
	}

	if len(header) == 0 {
		return errs.Validation(errs.CodeEmptyFileContent, "file content must not be empty")
	}

	if opts.MaxFileSizeBytes > 0 && declaredSize > opts.MaxFileSizeBytes {
		return errs.Validation(errs.CodeMaxFileSizeExceeded, "file size exceeds the configured maximum")
	}

	if len(opts.AllowedContentTypes) > 0 {
		detected := DetectContentType(header, fileName)
		if !matchesAny(detected, opts.AllowedContentTypes) {
			return errs.Validation(errs.CodeInvalidContentType, "content type is not allowed: "+detected)
		}
	}

	return nil
}

// Extension returns the lower-cased extension of name including the leading
// dot, or "" if name has none.
func Extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}

// ContentTypeMatches reports whether detected satisfies pattern. A pattern is
// either an exact content type or a "type/*" wildcard matching the major type.
func ContentTypeMatches(detected, pattern string) bool {
	if strings.HasSuffix(pattern, "/*") {
		major := strings.TrimSuffix(pattern, "/*")
		return strings.EqualFold(major, majorType(detected))
	}
	return strings.EqualFold(detected, pattern)
}

func matchesAny(detected string, patterns []string) bool {
	for _, p := range patterns {
		if ContentTypeMatches(detected, p) {
			return true
		}
	}
	return false
}

func majorType(contentType string) string {
	if idx := strings.IndexByte(contentType, '/'); idx >= 0 {
		return contentType[:idx]
	}
	return contentType
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func containsControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
