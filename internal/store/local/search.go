package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
)

// List returns the records in folder (subfolders included), paginated.
func (d *Driver) List(ctx context.Context, folder string, page, pageSize int) (*store.Page, error) {
	return d.Search(ctx, store.SearchCriteria{
		Folder:   &folder,
		Page:     page,
		PageSize: pageSize,
	})
}

// Search pulls all records from the storage tree and applies the shared
// criteria engine in memory.
func (d *Driver) Search(ctx context.Context, criteria store.SearchCriteria) (*store.Page, error) {
	records, err := d.enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return criteria.Apply(records), nil
}

// ListFolders derives distinct virtual folders from every stored file,
// placeholders included, so folders created empty still surface. With parent
// set, only immediate children are returned.
func (d *Driver) ListFolders(ctx context.Context, parent string) ([]string, error) {
	seen := make(map[string]struct{})

	root := d.cfg.BasePath
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.IsDir() {
			if info.Name() == store.MetadataPrefix || info.Name() == store.ThumbnailPrefix {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(info.Name(), ".tmp") {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		if folder := d.kb.Folder(filepath.ToSlash(rel)); folder != "" {
			seen[folder] = struct{}{}
		}
		return nil
	})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, mapError(cerr, "folder listing cancelled")
		}
		return nil, mapError(err, "failed to walk storage tree")
	}

	return store.CollectFolders(seen, parent), nil
}

// DeleteFolder removes every record in folder (the subtree when recursive,
// exact matches only otherwise) and sweeps placeholders. Returns the number
// of records deleted.
func (d *Driver) DeleteFolder(ctx context.Context, folder string, recursive bool) (int, error) {
	target := keys.NormalizeFolder(folder)
	records, err := d.enumerate(ctx)
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, rec := range records {
		if recursive {
			if !keys.IsSubfolder(rec.Folder, target) {
				continue
			}
		} else if rec.Folder != target {
			continue
		}
		ids = append(ids, rec.ID)
	}

	deleted := store.BulkDeleteSeq(ctx, d, ids)

	d.sweepPlaceholders(target, recursive)
	return len(deleted), nil
}

// sweepPlaceholders removes placeholder files and now-empty directories under
// a deleted folder. Best effort; leftover empty dirs are harmless.
func (d *Driver) sweepPlaceholders(folder string, recursive bool) {
	dir := d.fullPath(d.kb.Prefix(folder))
	if !recursive {
		os.Remove(filepath.Join(dir, store.PlaceholderName))
		os.Remove(dir)
		return
	}

	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && info.Name() == store.PlaceholderName {
			os.Remove(path)
		}
		return nil
	})
	removeEmptyDirs(dir)
}

// removeEmptyDirs prunes dir and its empty descendants, deepest first.
func removeEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			removeEmptyDirs(filepath.Join(dir, e.Name()))
		}
	}
	os.Remove(dir) // fails silently unless empty
}

// CreateFolder writes a hidden placeholder file so the folder enumerates even
// with no real content. Creating an existing folder is idempotent success.
func (d *Driver) CreateFolder(ctx context.Context, folderPath string) (string, error) {
	target := keys.NormalizeFolder(folderPath)
	if target == "" {
		return "", errs.Validation(errs.CodeInvalidFileName, "folder path must not be empty")
	}
	if err := store.CheckFolder(target); err != nil {
		return "", err
	}

	folders, err := d.ListFolders(ctx, "")
	if err != nil {
		return "", err
	}
	for _, f := range folders {
		if f == target {
			return target, nil
		}
	}

	dir := d.fullPath(d.kb.Prefix(target))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", mapError(err, "failed to create folder")
	}
	placeholder := filepath.Join(dir, store.PlaceholderName)
	if err := os.WriteFile(placeholder, nil, 0o640); err != nil {
		return "", mapError(err, "failed to write folder placeholder")
	}
	return target, nil
}
