package s3

import (
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/store"
)

func testRecord() *store.FileRecord {
	created := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)
	return &store.FileRecord{
		ID:           "abc-123",
		Name:         "report.pdf",
		OriginalName: "Quarterly Report.pdf",
		Extension:    ".pdf",
		ContentType:  "application/pdf",
		SizeBytes:    2048,
		Hash:         "deadbeef",
		CreatedAtUTC: created,
		UpdatedAtUTC: created.Add(time.Hour),
		Folder:       "docs",
		StoragePath:  "docs/abc-123.pdf",
		Metadata:     map[string]string{"author": "ada"},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := testRecord()
	kb := keys.NewBuilder("", nil)

	stat := miniogo.ObjectInfo{
		Key:          rec.StoragePath,
		Size:         rec.SizeBytes,
		UserMetadata: encodeMeta(rec),
	}

	got, ok := decodeMeta(rec.StoragePath, stat, kb.Folder)
	require.True(t, ok)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.OriginalName, got.OriginalName)
	assert.Equal(t, rec.Extension, got.Extension)
	assert.Equal(t, rec.ContentType, got.ContentType)
	assert.Equal(t, rec.SizeBytes, got.SizeBytes)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.True(t, got.CreatedAtUTC.Equal(rec.CreatedAtUTC))
	assert.True(t, got.UpdatedAtUTC.Equal(rec.UpdatedAtUTC))
	assert.Equal(t, rec.Folder, got.Folder)
	assert.Equal(t, map[string]string{"author": "ada"}, got.Metadata)
}

// The SDK may return user metadata with title-cased or x-amz-meta-prefixed
// keys; decoding must tolerate both.
func TestDecodeMetaKeyCasing(t *testing.T) {
	kb := keys.NewBuilder("", nil)
	stat := miniogo.ObjectInfo{
		Size: 10,
		UserMetadata: map[string]string{
			"File-Id":                "id-1",
			"X-Amz-Meta-Name":        "x.txt",
			"X-Amz-Meta-Custom-Tier": "gold",
		},
	}

	rec, ok := decodeMeta("x-id.txt", stat, kb.Folder)
	require.True(t, ok)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "x.txt", rec.Name)
	assert.Equal(t, map[string]string{"tier": "gold"}, rec.Metadata)
}

func TestDecodeMetaFallbacks(t *testing.T) {
	kb := keys.NewBuilder("", nil)
	lastMod := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	stat := miniogo.ObjectInfo{
		Size:         42,
		ContentType:  "application/octet-stream",
		LastModified: lastMod,
		UserMetadata: map[string]string{metaID: "id-2"},
	}

	rec, ok := decodeMeta("docs/id-2.bin", stat, kb.Folder)
	require.True(t, ok)

	// Name falls back to the key's base segment, content type and timestamps
	// to the object's own attributes.
	assert.Equal(t, "id-2.bin", rec.Name)
	assert.Equal(t, "id-2.bin", rec.OriginalName)
	assert.Equal(t, "application/octet-stream", rec.ContentType)
	assert.Equal(t, int64(42), rec.SizeBytes)
	assert.True(t, rec.CreatedAtUTC.Equal(lastMod))
	assert.True(t, rec.UpdatedAtUTC.Equal(lastMod))
	assert.Equal(t, "docs", rec.Folder)
	assert.Nil(t, rec.Metadata)
}

// Objects without a file-id tag are foreign: decode refuses them so scans
// skip instead of fabricating records.
func TestDecodeMetaRejectsForeignObjects(t *testing.T) {
	kb := keys.NewBuilder("", nil)

	_, ok := decodeMeta("some/key.txt", miniogo.ObjectInfo{}, kb.Folder)
	assert.False(t, ok)

	_, ok = decodeMeta("some/key.txt", miniogo.ObjectInfo{
		UserMetadata: map[string]string{"unrelated": "tag"},
	}, kb.Folder)
	assert.False(t, ok)
}

func TestDecodeMetaWithRootPrefix(t *testing.T) {
	kb := keys.NewBuilder("crate", nil)
	stat := miniogo.ObjectInfo{UserMetadata: map[string]string{metaID: "id-3"}}

	rec, ok := decodeMeta("crate/docs/id-3.txt", stat, kb.Folder)
	require.True(t, ok)
	assert.Equal(t, "docs", rec.Folder)
}

func TestIDFromListing(t *testing.T) {
	assert.Equal(t, "a", idFromListing(map[string]string{"file-id": "a"}))
	assert.Equal(t, "b", idFromListing(map[string]string{"X-Amz-Meta-File-Id": "b"}))
	assert.Empty(t, idFromListing(map[string]string{"name": "x"}))
	assert.Empty(t, idFromListing(nil))
}
