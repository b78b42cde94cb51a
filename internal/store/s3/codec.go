package s3

import (
	"path"
	"strconv"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/filecrate/filecrate/internal/store"
)

// The S3 backend has no sidecar files: the whole FileRecord is encoded into
// object user metadata (x-amz-meta-*). Keys here are the canonical wire
// names; the SDK title-cases them on the way back, so decoding lowercases
// everything first. Caller metadata lives under the custom- namespace to
// keep it collision-free with record fields.
const (
	metaID           = "file-id"
	metaName         = "name"
	metaOriginalName = "original-name"
	metaExtension    = "extension"
	metaContentType  = "content-type"
	metaCreatedAt    = "created-at"
	metaUpdatedAt    = "updated-at"
	metaHash         = "hash"
	metaSize         = "size"
	customPrefix     = "custom-"
)

// encodeMeta flattens a record into S3 user metadata. Values must respect
// S3's header constraints, so times are RFC3339 and nothing is nested.
func encodeMeta(rec *store.FileRecord) map[string]string {
	m := map[string]string{
		metaID:           rec.ID,
		metaName:         rec.Name,
		metaOriginalName: rec.OriginalName,
		metaExtension:    rec.Extension,
		metaContentType:  rec.ContentType,
		metaCreatedAt:    rec.CreatedAtUTC.Format(time.RFC3339Nano),
		metaUpdatedAt:    rec.UpdatedAtUTC.Format(time.RFC3339Nano),
		metaSize:         strconv.FormatInt(rec.SizeBytes, 10),
	}
	if rec.Hash != "" {
		m[metaHash] = rec.Hash
	}
	for k, v := range rec.Metadata {
		m[customPrefix+k] = v
	}
	return m
}

// decodeMeta rebuilds a FileRecord from an object's stat info. Returns false
// when the object carries no file-id tag (foreign object, placeholder, or
// stripped metadata); scans skip such objects rather than failing.
func decodeMeta(key string, stat miniogo.ObjectInfo, folderOf func(string) string) (*store.FileRecord, bool) {
	meta := lowerKeys(stat.UserMetadata)

	id := meta[metaID]
	if id == "" {
		return nil, false
	}

	rec := &store.FileRecord{
		ID:           id,
		Name:         meta[metaName],
		OriginalName: meta[metaOriginalName],
		Extension:    meta[metaExtension],
		ContentType:  meta[metaContentType],
		SizeBytes:    stat.Size,
		Hash:         meta[metaHash],
		Folder:       folderOf(key),
		StoragePath:  key,
	}

	if rec.Name == "" {
		rec.Name = path.Base(key)
	}
	if rec.OriginalName == "" {
		rec.OriginalName = rec.Name
	}
	if rec.ContentType == "" {
		rec.ContentType = stat.ContentType
	}
	if size, err := strconv.ParseInt(meta[metaSize], 10, 64); err == nil && size >= 0 {
		rec.SizeBytes = size
	}

	rec.CreatedAtUTC = parseTime(meta[metaCreatedAt], stat.LastModified)
	rec.UpdatedAtUTC = parseTime(meta[metaUpdatedAt], stat.LastModified)

	var custom map[string]string
	for k, v := range meta {
		if name, ok := strings.CutPrefix(k, customPrefix); ok {
			if custom == nil {
				custom = make(map[string]string)
			}
			custom[name] = v
		}
	}
	rec.Metadata = custom

	return rec, true
}

// idFromListing extracts the file-id from listing-level metadata, which may
// arrive under x-amz-meta-prefixed names depending on the server. Empty when
// the listing carried no metadata at all.
func idFromListing(userMeta map[string]string) string {
	for k, v := range userMeta {
		lk := strings.ToLower(k)
		if lk == metaID || lk == "x-amz-meta-"+metaID {
			return v
		}
	}
	return ""
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"))] = v
	}
	return out
}

func parseTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return fallback.UTC()
}
