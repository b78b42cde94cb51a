package s3

import (
	"context"
	"path"
	"strings"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
)

// listAll iterates every object under the configured prefix, calling fn for
// each. fn returns true to stop early. Thumbnail-cache objects are skipped.
func (d *Driver) listAll(ctx context.Context, fn func(obj miniogo.ObjectInfo) (stop bool, err error)) error {
	opts := miniogo.ListObjectsOptions{
		Prefix:       d.kb.Prefix(""),
		Recursive:    true,
		WithMetadata: true,
	}

	thumbPrefix := d.thumbRoot() + keys.Separator
	for obj := range d.client.ListObjects(ctx, d.cfg.Bucket, opts) {
		if obj.Err != nil {
			return mapError(obj.Err, "failed to list objects")
		}
		if strings.HasPrefix(obj.Key, thumbPrefix) {
			continue
		}
		stop, err := fn(obj)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// scanForID is the documented O(n) metadata lookup: walk the prefix,
// short-circuit on the first object whose file-id tag matches, and skip
// objects with unreadable or malformed metadata rather than failing the
// whole scan.
func (d *Driver) scanForID(ctx context.Context, id string) (*store.FileRecord, error) {
	var found *store.FileRecord

	err := d.listAll(ctx, func(obj miniogo.ObjectInfo) (bool, error) {
		if path.Base(obj.Key) == store.PlaceholderName {
			return false, nil
		}

		// Listing-level metadata is enough to rule most objects out without
		// a per-object stat; servers that omit it fall back to StatObject.
		if listedID := idFromListing(obj.UserMetadata); listedID != "" && listedID != id {
			return false, nil
		}

		rec, err := d.statRecord(ctx, obj.Key, id)
		if err != nil {
			if errs.IsCancelled(err) {
				return false, err
			}
			d.cfg.Log().Debug().Str("key", obj.Key).Err(err).Msg("skipping object during id scan")
			return false, nil
		}
		found = rec
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errs.New(errs.ErrKindNotFound, "no object found with id "+id)
	}
	return found, nil
}

// enumerate materializes records for every real object under the prefix.
// Placeholders and objects with malformed metadata are skipped with a log
// line, never fatal.
func (d *Driver) enumerate(ctx context.Context) ([]*store.FileRecord, error) {
	var records []*store.FileRecord

	err := d.listAll(ctx, func(obj miniogo.ObjectInfo) (bool, error) {
		if path.Base(obj.Key) == store.PlaceholderName {
			return false, nil
		}

		rec, err := d.statRecord(ctx, obj.Key, "")
		if err != nil {
			if errs.IsCancelled(err) {
				return false, err
			}
			d.cfg.Log().Warn().Str("key", obj.Key).Err(err).Msg("skipping object with unreadable metadata")
			return false, nil
		}
		records = append(records, rec)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// List returns the records in folder (subfolders included), paginated.
func (d *Driver) List(ctx context.Context, folder string, page, pageSize int) (*store.Page, error) {
	return d.Search(ctx, store.SearchCriteria{
		Folder:   &folder,
		Page:     page,
		PageSize: pageSize,
	})
}

// Search pulls all records from the bucket and applies the shared criteria
// engine in memory.
func (d *Driver) Search(ctx context.Context, criteria store.SearchCriteria) (*store.Page, error) {
	records, err := d.enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return criteria.Apply(records), nil
}

// ListFolders derives distinct virtual folders from every key under the
// prefix, placeholders included so empty folders surface.
func (d *Driver) ListFolders(ctx context.Context, parent string) ([]string, error) {
	seen := make(map[string]struct{})

	err := d.listAll(ctx, func(obj miniogo.ObjectInfo) (bool, error) {
		if folder := d.kb.Folder(obj.Key); folder != "" {
			seen[folder] = struct{}{}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return store.CollectFolders(seen, parent), nil
}

// DeleteFolder removes every record in folder (the subtree when recursive,
// exact matches only otherwise) and sweeps placeholder objects.
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

	d.sweepPlaceholders(ctx, target, recursive)
	return len(deleted), nil
}

// sweepPlaceholders removes placeholder objects under a deleted folder.
func (d *Driver) sweepPlaceholders(ctx context.Context, folder string, recursive bool) {
	d.listAll(ctx, func(obj miniogo.ObjectInfo) (bool, error) {
		if path.Base(obj.Key) != store.PlaceholderName {
			return false, nil
		}
		objFolder := d.kb.Folder(obj.Key)
		if objFolder == folder || (recursive && keys.IsSubfolder(objFolder, folder)) {
			d.client.RemoveObject(ctx, d.cfg.Bucket, obj.Key, miniogo.RemoveObjectOptions{})
		}
		return false, nil
	})
}

// CreateFolder writes a hidden zero-byte placeholder object so the folder
// enumerates even with no real content. Idempotent.
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

	key := d.kb.Prefix(target) + store.PlaceholderName
	_, err = d.client.PutObject(ctx, d.cfg.Bucket, key, strings.NewReader(""), 0, miniogo.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", mapError(err, "failed to write folder placeholder")
	}
	return target, nil
}
