package local

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/validate"
)

const sidecarSuffix = ".meta.json"

// sidecarPath returns the sidecar file location for an id.
func (d *Driver) sidecarPath(id string) string {
	return filepath.Join(d.cfg.BasePath, store.MetadataPrefix, id+sidecarSuffix)
}

// writeSidecar atomically persists the record: temp → fsync → rename.
func (d *Driver) writeSidecar(rec *store.FileRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrKindIO, "failed to serialize metadata", err)
	}

	path := d.sidecarPath(rec.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return mapError(err, "failed to create metadata directory")
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return mapError(err, "failed to create metadata temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return mapError(err, "failed to write metadata")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return mapError(err, "failed to sync metadata")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return mapError(err, "failed to close metadata file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return mapError(err, "failed to finalize metadata file")
	}
	return nil
}

// readSidecar loads a record by id from the sidecar index.
func (d *Driver) readSidecar(id string) (*store.FileRecord, error) {
	data, err := os.ReadFile(d.sidecarPath(id))
	if err != nil {
		return nil, mapError(err, "failed to read metadata")
	}
	var rec store.FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.Wrap(errs.ErrKindIO, "metadata file is malformed", err)
	}
	return &rec, nil
}

func (d *Driver) deleteSidecar(id string) {
	os.Remove(d.sidecarPath(id))
}

// GetMetadata resolves a record by id: sidecar index first (fast path), then
// a filename-pattern scan of the storage tree for content that pre-exists
// without sidecar metadata (slow path).
func (d *Driver) GetMetadata(ctx context.Context, id string) (*store.FileRecord, error) {
	rec, err := d.readSidecar(id)
	if err == nil {
		return rec, nil
	}
	if !errs.IsNotFound(err) {
		return nil, err
	}
	return d.scanForID(ctx, id)
}

// scanForID walks the storage tree for a file named <id> or <id>.<ext> and
// reconstructs a record from filesystem attributes.
func (d *Driver) scanForID(ctx context.Context, id string) (*store.FileRecord, error) {
	var found *store.FileRecord

	err := d.walkContent(ctx, func(fullPath, relKey string, info os.FileInfo) error {
		base := filepath.Base(fullPath)
		if base != id && !strings.HasPrefix(base, id+".") {
			return nil
		}
		found = d.reconstruct(fullPath, relKey, info)
		return filepath.SkipAll
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errs.New(errs.ErrKindNotFound, "no file found with id "+id)
	}
	return found, nil
}

// reconstruct builds a best-effort record for content that has no sidecar.
// The file name on disk is all we have, so name and original name are the
// stored segment and timestamps are the file's modification time.
func (d *Driver) reconstruct(fullPath, relKey string, info os.FileInfo) *store.FileRecord {
	base := filepath.Base(fullPath)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	mod := info.ModTime().UTC()
	return &store.FileRecord{
		ID:           id,
		Name:         base,
		OriginalName: base,
		Extension:    validate.Extension(base),
		ContentType:  validate.DetectContentType(nil, base),
		SizeBytes:    info.Size(),
		CreatedAtUTC: mod,
		UpdatedAtUTC: mod,
		Folder:       d.kb.Folder(relKey),
		StoragePath:  fullPath,
	}
}

// walkContent visits every content file under the base path, skipping the
// hidden metadata and thumbnail trees, temp files and folder placeholders.
// fn receives the absolute path, the slash-separated key relative to the
// base, and the file info.
func (d *Driver) walkContent(ctx context.Context, fn func(fullPath, relKey string, info os.FileInfo) error) error {
	root := d.cfg.BasePath
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are skipped, never fatal for a scan.
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
		name := info.Name()
		if name == store.PlaceholderName || strings.HasSuffix(name, ".tmp") {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		return fn(path, filepath.ToSlash(rel), info)
	})
	if err == filepath.SkipAll {
		return nil
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return errs.Wrap(errs.ErrKindCancelled, "scan cancelled", cerr)
		}
		return mapError(err, "failed to scan storage tree")
	}
	return nil
}

// enumerate returns records for all stored content: sidecar records plus
// reconstructed records for content with no sidecar. Malformed sidecars are
// skipped, not fatal.
func (d *Driver) enumerate(ctx context.Context) ([]*store.FileRecord, error) {
	byPath := make(map[string]*store.FileRecord)

	metaDir := filepath.Join(d.cfg.BasePath, store.MetadataPrefix)
	entries, err := os.ReadDir(metaDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, mapError(err, "failed to read metadata directory")
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sidecarSuffix) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), sidecarSuffix)
		rec, rerr := d.readSidecar(id)
		if rerr != nil {
			d.cfg.Log().Warn().Str("id", id).Err(rerr).Msg("skipping malformed sidecar")
			continue
		}
		byPath[rec.StoragePath] = rec
	}

	records := make([]*store.FileRecord, 0, len(byPath))
	err = d.walkContent(ctx, func(fullPath, relKey string, info os.FileInfo) error {
		if rec, ok := byPath[fullPath]; ok {
			records = append(records, rec)
			delete(byPath, fullPath)
			return nil
		}
		records = append(records, d.reconstruct(fullPath, relKey, info))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
