package azure

import (
	"context"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
)

// listAll iterates every blob under the configured prefix with metadata
// included, calling fn for each. fn returns true to stop early.
// Thumbnail-cache blobs are skipped.
func (d *Driver) listAll(ctx context.Context, fn func(item *container.BlobItem) (stop bool, err error)) error {
	pager := d.client.NewListBlobsFlatPager(d.cfg.Container, &azblob.ListBlobsFlatOptions{
		Prefix:  to.Ptr(d.kb.Prefix("")),
		Include: azblob.ListBlobsInclude{Metadata: true},
	})

	thumbPrefix := d.thumbRoot() + keys.Separator
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return mapError(err, "failed to list blobs")
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || hasPrefix(*item.Name, thumbPrefix) {
				continue
			}
			stop, err := fn(item)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// itemRecord decodes a listing entry into a record. The flat pager returns
// metadata inline, so no per-blob round trip is needed.
func (d *Driver) itemRecord(item *container.BlobItem) (*store.FileRecord, bool) {
	stat := blobStat{}
	if p := item.Properties; p != nil {
		if p.ContentLength != nil {
			stat.size = *p.ContentLength
		}
		if p.ContentType != nil {
			stat.contentType = *p.ContentType
		}
		if p.LastModified != nil {
			stat.lastModified = *p.LastModified
		}
	}
	return decodeMeta(*item.Name, item.Metadata, stat, d.kb.Folder)
}

// scanForID is the documented O(n) metadata lookup: walk the prefix and
// short-circuit on the first blob whose fileid tag matches. Blobs with
// missing or malformed metadata are skipped rather than failing the scan.
func (d *Driver) scanForID(ctx context.Context, id string) (*store.FileRecord, error) {
	var found *store.FileRecord

	err := d.listAll(ctx, func(item *container.BlobItem) (bool, error) {
		if path.Base(*item.Name) == store.PlaceholderName {
			return false, nil
		}
		rec, ok := d.itemRecord(item)
		if !ok || rec.ID != id {
			return false, nil
		}
		found = rec
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errs.New(errs.ErrKindNotFound, "no blob found with id "+id)
	}
	return found, nil
}

// enumerate materializes records for every real blob under the prefix.
// Placeholders and blobs with malformed metadata are skipped with a log
// line, never fatal.
func (d *Driver) enumerate(ctx context.Context) ([]*store.FileRecord, error) {
	var records []*store.FileRecord

	err := d.listAll(ctx, func(item *container.BlobItem) (bool, error) {
		if path.Base(*item.Name) == store.PlaceholderName {
			return false, nil
		}
		rec, ok := d.itemRecord(item)
		if !ok {
			d.cfg.Log().Warn().Str("blob", *item.Name).Msg("skipping blob with unreadable metadata")
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

// Search pulls all records from the container and applies the shared
// criteria engine in memory.
func (d *Driver) Search(ctx context.Context, criteria store.SearchCriteria) (*store.Page, error) {
	records, err := d.enumerate(ctx)
	if err != nil {
		return nil, err
	}
	return criteria.Apply(records), nil
}

// ListFolders derives distinct virtual folders from every blob name under
// the prefix, placeholders included so empty folders surface.
func (d *Driver) ListFolders(ctx context.Context, parent string) ([]string, error) {
	seen := make(map[string]struct{})

	err := d.listAll(ctx, func(item *container.BlobItem) (bool, error) {
		if folder := d.kb.Folder(*item.Name); folder != "" {
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
// exact matches only otherwise) and sweeps placeholder blobs.
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

// sweepPlaceholders removes placeholder blobs under a deleted folder.
func (d *Driver) sweepPlaceholders(ctx context.Context, folder string, recursive bool) {
	d.listAll(ctx, func(item *container.BlobItem) (bool, error) {
		if path.Base(*item.Name) != store.PlaceholderName {
			return false, nil
		}
		itemFolder := d.kb.Folder(*item.Name)
		if itemFolder == folder || (recursive && keys.IsSubfolder(itemFolder, folder)) {
			d.client.DeleteBlob(ctx, d.cfg.Container, *item.Name, nil)
		}
		return false, nil
	})
}

// CreateFolder writes a hidden zero-byte placeholder blob so the folder
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
	if _, err := d.client.UploadBuffer(ctx, d.cfg.Container, key, nil, nil); err != nil {
		return "", mapError(err, "failed to write folder placeholder")
	}
	return target, nil
}
