package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderKey(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		folder   string
		fileName string
		want     string
	}{
		{"root level no prefix", "", "", "report.pdf", "id1.pdf"},
		{"nested folder", "", "docs/2026", "report.pdf", "docs/2026/id1.pdf"},
		{"with root prefix", "crate", "docs", "report.pdf", "crate/docs/id1.pdf"},
		{"folder slashes trimmed", "", "/docs/", "report.pdf", "docs/id1.pdf"},
		{"root slashes trimmed", "/crate/", "", "report.pdf", "crate/id1.pdf"},
		{"no extension", "", "docs", "README", "docs/id1"},
		{"extension lowercased", "", "", "PHOTO.JPG", "id1.jpg"},
		{"trailing dot ignored", "", "", "weird.", "id1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.root, nil)
			assert.Equal(t, tt.want, b.Key("id1", tt.folder, tt.fileName))
		})
	}
}

func TestBuilderCustomNaming(t *testing.T) {
	b := NewBuilder("", func(id, folder, fileName string) string {
		return fileName
	})
	assert.Equal(t, "docs/report.pdf", b.Key("id1", "docs", "report.pdf"))
}

// Folder must be a left inverse of Key for every (root, folder) combination.
func TestFolderRoundTrip(t *testing.T) {
	folders := []string{"", "a", "a/b", "a/b/c", "deeply/nested/path/here"}
	roots := []string{"", "crate", "x/y"}

	for _, root := range roots {
		for _, folder := range folders {
			b := NewBuilder(root, nil)
			key := b.Key("some-id", folder, "file.txt")
			assert.Equal(t, folder, b.Folder(key), "root=%q folder=%q key=%q", root, folder, key)
		}
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		folder string
		want   string
	}{
		{"no root no folder", "", "", ""},
		{"folder only", "", "docs", "docs/"},
		{"root only", "crate", "", "crate/"},
		{"root and folder", "crate", "docs", "crate/docs/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewBuilder(tt.root, nil).Prefix(tt.folder))
		})
	}
}

func TestValidFolder(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		want   bool
	}{
		{"root", "", true},
		{"simple", "docs", true},
		{"nested", "docs/2026/q1", true},
		{"surrounding separators ok", "/docs/2026/", true},
		{"dotted file-like name ok", "docs/v1.2", true},
		{"parent segment", "../escaped", false},
		{"nested parent segment", "docs/../../escaped", false},
		{"current segment", "./docs", false},
		{"lone dots", "docs/./sub", false},
		{"empty interior segment", "docs//sub", false},
		{"control character", "docs/a\x00b", false},
		{"newline", "docs/a\nb", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidFolder(tt.folder))
		})
	}
}

func TestNormalizeFolder(t *testing.T) {
	assert.Equal(t, "a/b", NormalizeFolder("a/b"))
	assert.Equal(t, "a/b", NormalizeFolder("/a/b/"))
	assert.Equal(t, "a/b", NormalizeFolder("  a/b  "))
	assert.Equal(t, "", NormalizeFolder("/"))
	assert.Equal(t, "", NormalizeFolder("   "))
}

func TestIsSubfolder(t *testing.T) {
	assert.True(t, IsSubfolder("a/b", "a"))
	assert.True(t, IsSubfolder("a", "a"))
	assert.True(t, IsSubfolder("anything", ""))
	assert.False(t, IsSubfolder("ab", "a"))
	assert.False(t, IsSubfolder("a", "a/b"))
}

func TestImmediateChild(t *testing.T) {
	tests := []struct {
		name    string
		folder  string
		parent  string
		want    string
		wantOK  bool
	}{
		{"direct child of root", "docs", "", "docs", true},
		{"nested collapses to first segment", "docs/2026/q1", "", "docs", true},
		{"direct child of parent", "docs/2026", "docs", "docs/2026", true},
		{"deep child collapses", "docs/2026/q1", "docs", "docs/2026", true},
		{"folder equals parent", "docs", "docs", "", false},
		{"unrelated folder", "media", "docs", "", false},
		{"prefix but not path child", "docsx", "docs", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ImmediateChild(tt.folder, tt.parent)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
