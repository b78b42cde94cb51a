package store

import (
	"sort"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
)

// CheckFolder rejects folder paths that cannot address a virtual folder.
// Every driver applies it to caller-supplied folders before building a
// storage key, so dot segments can never escape the configured root on any
// backend.
func CheckFolder(folder string) error {
	if !keys.ValidFolder(folder) {
		return errs.Validation(errs.CodeInvalidFolderPath, "folder path contains invalid segments")
	}
	return nil
}

// CollectFolders reduces a distinct folder set to the requested view:
// every folder when parent is empty, immediate children of parent otherwise.
// Each driver supplies the set from its own enumeration primitive.
func CollectFolders(seen map[string]struct{}, parent string) []string {
	parent = keys.NormalizeFolder(parent)
	out := make(map[string]struct{})

	for folder := range seen {
		if parent == "" {
			out[folder] = struct{}{}
			continue
		}
		if child, ok := keys.ImmediateChild(folder, parent); ok {
			out[child] = struct{}{}
		}
	}

	result := make([]string, 0, len(out))
	for f := range out {
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}
