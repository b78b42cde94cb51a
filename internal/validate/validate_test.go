package validate

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/errs"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		fileName     string
		header       []byte
		declaredSize int64
		opts         Options
		wantCode     string
	}{
		{
			name:     "valid plain file",
			fileName: "notes.txt",
			header:   []byte("hello"),
		},
		{
			name:     "empty name",
			fileName: "",
			header:   []byte("x"),
			wantCode: errs.CodeEmptyFileName,
		},
		{
			name:     "whitespace name",
			fileName: "   ",
			header:   []byte("x"),
			wantCode: errs.CodeEmptyFileName,
		},
		{
			name:     "path separator in name",
			fileName: "a/b.txt",
			header:   []byte("x"),
			wantCode: errs.CodeInvalidFileName,
		},
		{
			name:     "control character in name",
			fileName: "bad\x00name.txt",
			header:   []byte("x"),
			wantCode: errs.CodeInvalidFileName,
		},
		{
			name:     "extension not allowed",
			fileName: "script.exe",
			header:   []byte("x"),
			opts:     Options{AllowedExtensions: []string{".txt", ".pdf"}},
			wantCode: errs.CodeInvalidFileExtension,
		},
		{
			name:     "extension allowed case-insensitively",
			fileName: "REPORT.PDF",
			header:   []byte("%PDF-1.7"),
			opts:     Options{AllowedExtensions: []string{".pdf"}},
		},
		{
			name:     "empty content",
			fileName: "empty.txt",
			header:   nil,
			wantCode: errs.CodeEmptyFileContent,
		},
		{
			name:         "declared size over max",
			fileName:     "big.bin",
			header:       []byte("x"),
			declaredSize: 11,
			opts:         Options{MaxFileSizeBytes: 10},
			wantCode:     errs.CodeMaxFileSizeExceeded,
		},
		{
			name:         "unknown size passes declared check",
			fileName:     "big.bin",
			header:       []byte("x"),
			declaredSize: -1,
			opts:         Options{MaxFileSizeBytes: 10},
		},
		{
			name:     "content type not allowed",
			fileName: "notes.txt",
			header:   []byte("hello"),
			opts:     Options{AllowedContentTypes: []string{"image/*"}},
			wantCode: errs.CodeInvalidContentType,
		},
		{
			name:     "content type wildcard match",
			fileName: "photo.png",
			header:   []byte{0x89, 0x50, 0x4E, 0x47, 0x0D},
			opts:     Options{AllowedContentTypes: []string{"image/*"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fileName, tt.header, tt.declaredSize, tt.opts)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errs.IsValidationFailed(err))
			assert.Equal(t, tt.wantCode, errs.CodeOf(err))
		})
	}
}

// Name checks run before content checks: an invalid name on an empty stream
// reports the name problem, not the emptiness.
func TestValidateCheckOrder(t *testing.T) {
	err := Validate("bad|name.txt", nil, -1, Options{})
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidFileName, errs.CodeOf(err))

	err = Validate("script.exe", nil, -1, Options{AllowedExtensions: []string{".txt"}})
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidFileExtension, errs.CodeOf(err))
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		fileName string
		want     string
	}{
		{"png magic", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, "x.bin", "image/png"},
		{"jpeg magic", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "x.bin", "image/jpeg"},
		{"gif magic", []byte("GIF89a"), "x.bin", "image/gif"},
		{"pdf magic", []byte("%PDF-1.4"), "x.bin", "application/pdf"},
		{"magic wins over extension", []byte{0x89, 0x50, 0x4E, 0x47}, "photo.jpg", "image/png"},
		{"extension fallback", []byte("plain words"), "notes.txt", "text/plain"},
		{"extension case-insensitive", []byte("plain words"), "NOTES.TXT", "text/plain"},
		{"unknown defaults", []byte{0x00, 0x01}, "mystery.xyz", DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.header, tt.fileName))
		})
	}
}

// The replay reader must yield exactly the bytes the source would have.
func TestSniffReplay(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"shorter than sniff window", []byte("tiny")},
		{"exactly the sniff window", bytes.Repeat([]byte{0xAB}, SniffLen)},
		{"longer than sniff window", bytes.Repeat([]byte("0123456789"), 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, header, replay, err := Sniff(bytes.NewReader(tt.payload), "x.bin")
			require.NoError(t, err)
			assert.LessOrEqual(t, len(header), SniffLen)

			got, err := io.ReadAll(replay)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestSniffEmptyStream(t *testing.T) {
	ct, header, replay, err := Sniff(strings.NewReader(""), "empty.txt")
	require.NoError(t, err)
	assert.Empty(t, header)
	assert.Equal(t, "text/plain", ct)

	got, err := io.ReadAll(replay)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".pdf", Extension("report.pdf"))
	assert.Equal(t, ".pdf", Extension("REPORT.PDF"))
	assert.Equal(t, ".gz", Extension("archive.tar.gz"))
	assert.Equal(t, "", Extension("README"))
	assert.Equal(t, "", Extension("trailing."))
}

func TestContentTypeMatches(t *testing.T) {
	assert.True(t, ContentTypeMatches("image/png", "image/png"))
	assert.True(t, ContentTypeMatches("image/png", "image/*"))
	assert.True(t, ContentTypeMatches("IMAGE/PNG", "image/png"))
	assert.False(t, ContentTypeMatches("text/plain", "image/*"))
	assert.False(t, ContentTypeMatches("image/png", "image/jpeg"))
}
