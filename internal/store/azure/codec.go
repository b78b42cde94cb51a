package azure

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"

	"github.com/filecrate/filecrate/internal/store"
)

// Azure blob metadata keys must be valid C# identifiers, so unlike the S3
// codec nothing here contains a dash. Caller metadata lives under the
// custom_ namespace. The service returns keys with arbitrary casing, so
// decoding lowercases everything first.
const (
	metaID           = "fileid"
	metaName         = "name"
	metaOriginalName = "originalname"
	metaExtension    = "extension"
	metaContentType  = "contenttype"
	metaCreatedAt    = "createdat"
	metaUpdatedAt    = "updatedat"
	metaHash         = "hash"
	metaSize         = "size"
	customPrefix     = "custom_"
)

// encodeMeta flattens a record into blob metadata.
func encodeMeta(rec *store.FileRecord) map[string]*string {
	m := map[string]*string{
		metaID:           to.Ptr(rec.ID),
		metaName:         to.Ptr(rec.Name),
		metaOriginalName: to.Ptr(rec.OriginalName),
		metaExtension:    to.Ptr(rec.Extension),
		metaContentType:  to.Ptr(rec.ContentType),
		metaCreatedAt:    to.Ptr(rec.CreatedAtUTC.Format(time.RFC3339Nano)),
		metaUpdatedAt:    to.Ptr(rec.UpdatedAtUTC.Format(time.RFC3339Nano)),
		metaSize:         to.Ptr(strconv.FormatInt(rec.SizeBytes, 10)),
	}
	if rec.Hash != "" {
		m[metaHash] = to.Ptr(rec.Hash)
	}
	for k, v := range rec.Metadata {
		m[customPrefix+strings.ToLower(k)] = to.Ptr(v)
	}
	return m
}

// blobStat is the subset of blob properties the codec needs, shared between
// listing entries and GetProperties responses.
type blobStat struct {
	size         int64
	contentType  string
	lastModified time.Time
}

// decodeMeta rebuilds a FileRecord from blob metadata. Returns false when
// the blob carries no fileid tag; scans skip such blobs rather than
// failing.
func decodeMeta(name string, metadata map[string]*string, stat blobStat, folderOf func(string) string) (*store.FileRecord, bool) {
	meta := flatten(metadata)

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
		SizeBytes:    stat.size,
		Hash:         meta[metaHash],
		Folder:       folderOf(name),
		StoragePath:  name,
	}

	if rec.Name == "" {
		rec.Name = path.Base(name)
	}
	if rec.OriginalName == "" {
		rec.OriginalName = rec.Name
	}
	if rec.ContentType == "" {
		rec.ContentType = stat.contentType
	}
	if size, err := strconv.ParseInt(meta[metaSize], 10, 64); err == nil && size >= 0 {
		rec.SizeBytes = size
	}

	rec.CreatedAtUTC = parseTime(meta[metaCreatedAt], stat.lastModified)
	rec.UpdatedAtUTC = parseTime(meta[metaUpdatedAt], stat.lastModified)

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

func flatten(m map[string]*string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[strings.ToLower(k)] = *v
		}
	}
	return out
}

func parseTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return fallback.UTC()
}
