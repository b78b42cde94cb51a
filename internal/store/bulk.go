package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/filecrate/filecrate/internal/errs"
)

// The bulk helpers apply single-item operations sequentially, never in
// parallel, never transactionally. Drivers delegate their Bulk* methods here
// so the partial-failure policy stays identical across backends.

// BulkSaveSeq saves items in input order. Items already saved when a later
// one fails are kept, not rolled back. If any item failed, the per-item
// messages are aggregated into one combined error alongside the successful
// records. When every failure shares one kind the aggregate carries it (so a
// purely-validation bulk failure still reads as ValidationFailed); mixed
// kinds collapse to Provider.
func BulkSaveSeq(ctx context.Context, s Store, items []SaveItem, folder string) ([]*FileRecord, error) {
	saved := make([]*FileRecord, 0, len(items))
	var failures []string
	var kind errs.ErrKind

	for _, item := range items {
		rec, err := s.Save(ctx, item.Content, item.FileName, SaveOptions{
			Folder:       folder,
			Metadata:     item.Metadata,
			DeclaredSize: -1,
		})
		if err != nil {
			if len(failures) == 0 {
				kind = errs.KindOf(err)
			} else if errs.KindOf(err) != kind {
				kind = errs.ErrKindProvider
			}
			failures = append(failures, fmt.Sprintf("%s: %v", item.FileName, err))
			continue
		}
		saved = append(saved, rec)
	}

	if len(failures) > 0 {
		return saved, errs.New(kind,
			fmt.Sprintf("bulk save: %d of %d items failed: %s",
				len(failures), len(items), strings.Join(failures, "; ")))
	}
	return saved, nil
}

// BulkDeleteSeq deletes ids in input order, silently skipping ids that fail
// or do not exist. Only the ids actually deleted are returned.
func BulkDeleteSeq(ctx context.Context, s Store, ids []string) []string {
	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := s.Delete(ctx, id)
		if err != nil || !ok {
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted
}

// BulkMoveSeq moves ids in input order, silently skipping ids that fail.
// Only the records actually moved are returned.
func BulkMoveSeq(ctx context.Context, s Store, ids []string, newFolder string) []*FileRecord {
	moved := make([]*FileRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Move(ctx, id, newFolder)
		if err != nil {
			continue
		}
		moved = append(moved, rec)
	}
	return moved
}
