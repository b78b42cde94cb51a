package validate

import (
	"bytes"
	"io"
)

// SniffLen is how many leading bytes are inspected for a magic-byte match.
const SniffLen = 512

// DefaultContentType is returned when neither the signature table nor the
// extension table recognises the content.
const DefaultContentType = "application/octet-stream"

// signatures maps leading byte sequences to content types. Checked in order;
// first match wins.
var signatures = []struct {
	prefix      []byte
	contentType string
}{
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x47, 0x49, 0x46, 0x38}, "image/gif"},
	{[]byte{0x25, 0x50, 0x44, 0x46}, "application/pdf"},
}

// extContentTypes is the extension fallback when no signature matches.
var extContentTypes = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// DetectContentType inspects the leading bytes of header against the
// signature table, falls back to an extension lookup on fileName, and
// defaults to application/octet-stream. It is deterministic and side-effect
// free.
func DetectContentType(header []byte, fileName string) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.prefix) {
			return sig.contentType
		}
	}
	if ct, ok := extContentTypes[Extension(fileName)]; ok {
		return ct
	}
	return DefaultContentType
}

// Sniff reads up to SniffLen bytes from r, detects the content type, and
// returns a reader that replays the consumed header bytes before the rest of
// r. This is the streaming equivalent of peeking at the start of a seekable
// stream and restoring its position: the combined reader yields exactly the
// bytes r would have.
func Sniff(r io.Reader, fileName string) (contentType string, header []byte, replay io.Reader, err error) {
	header = make([]byte, SniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, nil, err
	}
	header = header[:n]

	contentType = DetectContentType(header, fileName)
	return contentType, header, io.MultiReader(bytes.NewReader(header), r), nil
}
