// Package keys maps (id, folder, file name) to provider-native storage keys
// and back. Every driver addresses its backend exclusively through a Builder
// so folder semantics stay identical across substrates.
package keys

import "strings"

// Separator joins key segments. All backends use forward slashes, including
// the local driver, which converts at the filesystem boundary.
const Separator = "/"

// Naming produces the final path segment for a stored file. It must be a pure
// function of its inputs. When nil, DefaultNaming is used.
type Naming func(id, folder, fileName string) string

// Builder builds storage keys under an optional root prefix.
type Builder struct {
	root   string
	naming Naming
}

// NewBuilder creates a Builder. root is the configured key prefix ("" for
// none); naming overrides the stored-segment strategy (nil for DefaultNaming).
func NewBuilder(root string, naming Naming) *Builder {
	if naming == nil {
		naming = DefaultNaming
	}
	return &Builder{
		root:   strings.Trim(root, Separator),
		naming: naming,
	}
}

// DefaultNaming stores content under "<id><ext>", deriving the extension from
// the original file name. Content addressed by id survives renames.
func DefaultNaming(id, folder, fileName string) string {
	return id + extension(fileName)
}

// Key builds the storage key for a file: root, normalized folder, then the
// named segment, joined with single separators and empty segments omitted.
func (b *Builder) Key(id, folder, fileName string) string {
	segments := make([]string, 0, 3)
	if b.root != "" {
		segments = append(segments, b.root)
	}
	if f := NormalizeFolder(folder); f != "" {
		segments = append(segments, f)
	}
	segments = append(segments, b.naming(id, folder, fileName))
	return strings.Join(segments, Separator)
}

// Folder extracts the virtual folder from a key this Builder produced: the
// root prefix is stripped, then everything before the last separator is the
// folder. Keys directly at the root yield "".
func (b *Builder) Folder(key string) string {
	if b.root != "" {
		key = strings.TrimPrefix(key, b.root)
		key = strings.TrimPrefix(key, Separator)
	}
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return ""
	}
	return key[:idx]
}

// Root returns the configured root prefix with separators trimmed.
func (b *Builder) Root() string {
	return b.root
}

// Prefix returns the full key prefix for a folder, used by drivers to scope
// backend listings. Empty folder scopes to the root prefix.
func (b *Builder) Prefix(folder string) string {
	f := NormalizeFolder(folder)
	switch {
	case b.root == "" && f == "":
		return ""
	case b.root == "":
		return f + Separator
	case f == "":
		return b.root + Separator
	default:
		return b.root + Separator + f + Separator
	}
}

// NormalizeFolder trims surrounding separators and whitespace so "a/b",
// "/a/b/" and " a/b " address the same virtual folder. Root is "".
func NormalizeFolder(folder string) string {
	return strings.Trim(strings.TrimSpace(folder), Separator)
}

// ValidFolder reports whether folder can safely address a virtual folder.
// After normalization every segment must be a plain name: "." and ".."
// segments would resolve outside the storage root on path-based backends,
// empty segments collapse unpredictably, and control characters have no
// place in storage keys. The root folder ("") is valid.
func ValidFolder(folder string) bool {
	f := NormalizeFolder(folder)
	if f == "" {
		return true
	}
	for _, r := range f {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	for _, seg := range strings.Split(f, Separator) {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// IsSubfolder reports whether folder equals parent or sits underneath it.
// An empty parent matches every folder.
func IsSubfolder(folder, parent string) bool {
	if parent == "" {
		return true
	}
	return folder == parent || strings.HasPrefix(folder, parent+Separator)
}

// ImmediateChild returns the first path segment of folder below parent, and
// whether folder actually sits below parent. parent must be normalized.
func ImmediateChild(folder, parent string) (string, bool) {
	if folder == "" || folder == parent {
		return "", false
	}
	rest := folder
	if parent != "" {
		if !strings.HasPrefix(folder, parent+Separator) {
			return "", false
		}
		rest = folder[len(parent)+1:]
	}
	if idx := strings.Index(rest, Separator); idx >= 0 {
		rest = rest[:idx]
	}
	if parent == "" {
		return rest, true
	}
	return parent + Separator + rest, true
}

func extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}
