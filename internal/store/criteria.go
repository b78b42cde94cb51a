package store

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/filecrate/filecrate/internal/keys"
	"github.com/filecrate/filecrate/internal/validate"
)

// Pagination bounds. Pages are 1-based; out-of-range values clamp rather
// than fail.
const (
	MinPageSize = 1
	MaxPageSize = 1000
)

// SortField selects the ordering of search results. An unrecognized field is
// a no-op: enumeration order is preserved.
type SortField string

const (
	SortByName        SortField = "name"
	SortBySize        SortField = "size"
	SortByCreatedAt   SortField = "createdAt"
	SortByUpdatedAt   SortField = "updatedAt"
	SortByExtension   SortField = "extension"
	SortByContentType SortField = "contentType"
)

// SearchCriteria is the full filter grammar shared by List and Search.
// All set filters apply conjunctively. Nil/empty fields are unbounded.
type SearchCriteria struct {
	// NamePattern is a glob with * and ? wildcards, matched
	// case-insensitively against Name.
	NamePattern string

	// Folder filters by virtual folder: exact match, or prefix match when
	// IncludeSubfolders is true (the default). Nil means no folder filter;
	// a pointer to "" targets the root folder.
	Folder *string

	// IncludeSubfolders widens the Folder filter to the whole subtree.
	// Nil defaults to true.
	IncludeSubfolders *bool

	// FolderStartsWith is an unconditional prefix match on Folder, used by
	// folder deletion to select a subtree regardless of IncludeSubfolders.
	FolderStartsWith string

	// Extension is a case-insensitive exact match (".pdf").
	Extension string

	// ContentType is an exact match or a "type/*" wildcard.
	ContentType string

	// Inclusive bounds; nil is unbounded.
	MinSizeBytes  *int64
	MaxSizeBytes  *int64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time

	// Metadata requires every listed key to be present with a
	// case-insensitively equal value. Keys compare case-insensitively too:
	// some backends lowercase metadata keys on storage, so a key-sensitive
	// match would behave differently per provider. A record without metadata
	// fails the match if any pair is specified.
	Metadata map[string]string

	SortBy         SortField
	SortDescending bool

	Page     int
	PageSize int

	// nameRE caches the compiled NamePattern across Matches calls.
	nameRE *regexp.Regexp
}

// Matches reports whether r satisfies every filter set on c.
func (c *SearchCriteria) Matches(r *FileRecord) bool {
	if c.NamePattern != "" {
		if c.nameRE == nil {
			re, err := compileGlob(c.NamePattern)
			if err != nil {
				return false
			}
			c.nameRE = re
		}
		if !c.nameRE.MatchString(r.Name) {
			return false
		}
	}

	if c.Folder != nil {
		target := keys.NormalizeFolder(*c.Folder)
		if c.includeSubfolders() {
			if !keys.IsSubfolder(r.Folder, target) {
				return false
			}
		} else if r.Folder != target {
			return false
		}
	}

	if c.FolderStartsWith != "" {
		target := keys.NormalizeFolder(c.FolderStartsWith)
		if !keys.IsSubfolder(r.Folder, target) {
			return false
		}
	}

	if c.Extension != "" && !strings.EqualFold(r.Extension, c.Extension) {
		return false
	}

	if c.ContentType != "" && !validate.ContentTypeMatches(r.ContentType, c.ContentType) {
		return false
	}

	if c.MinSizeBytes != nil && r.SizeBytes < *c.MinSizeBytes {
		return false
	}
	if c.MaxSizeBytes != nil && r.SizeBytes > *c.MaxSizeBytes {
		return false
	}

	if c.CreatedAfter != nil && r.CreatedAtUTC.Before(*c.CreatedAfter) {
		return false
	}
	if c.CreatedBefore != nil && r.CreatedAtUTC.After(*c.CreatedBefore) {
		return false
	}
	if c.UpdatedAfter != nil && r.UpdatedAtUTC.Before(*c.UpdatedAfter) {
		return false
	}
	if c.UpdatedBefore != nil && r.UpdatedAtUTC.After(*c.UpdatedBefore) {
		return false
	}

	for k, want := range c.Metadata {
		got, ok := metadataValue(r.Metadata, k)
		if !ok || !strings.EqualFold(got, want) {
			return false
		}
	}

	return true
}

// metadataValue looks up key in m ignoring case, trying the exact key first.
func metadataValue(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (c *SearchCriteria) includeSubfolders() bool {
	if c.IncludeSubfolders == nil {
		return true
	}
	return *c.IncludeSubfolders
}

// Apply runs the full engine over candidates: filter, sort, paginate.
// Drivers call it after pulling their candidate set from the backend.
func (c *SearchCriteria) Apply(candidates []*FileRecord) *Page {
	matched := make([]*FileRecord, 0, len(candidates))
	for _, r := range candidates {
		if c.Matches(r) {
			matched = append(matched, r)
		}
	}
	SortRecords(matched, c.SortBy, c.SortDescending)
	return Paginate(matched, c.Page, c.PageSize)
}

// SortRecords orders records by field in place. Unknown fields leave the
// slice untouched. The sort is stable so ties keep enumeration order.
func SortRecords(records []*FileRecord, field SortField, descending bool) {
	var less func(a, b *FileRecord) bool
	switch field {
	case SortByName:
		less = func(a, b *FileRecord) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortBySize:
		less = func(a, b *FileRecord) bool { return a.SizeBytes < b.SizeBytes }
	case SortByCreatedAt:
		less = func(a, b *FileRecord) bool { return a.CreatedAtUTC.Before(b.CreatedAtUTC) }
	case SortByUpdatedAt:
		less = func(a, b *FileRecord) bool { return a.UpdatedAtUTC.Before(b.UpdatedAtUTC) }
	case SortByExtension:
		less = func(a, b *FileRecord) bool { return strings.ToLower(a.Extension) < strings.ToLower(b.Extension) }
	case SortByContentType:
		less = func(a, b *FileRecord) bool { return strings.ToLower(a.ContentType) < strings.ToLower(b.ContentType) }
	default:
		return
	}

	if descending {
		inner := less
		less = func(a, b *FileRecord) bool { return inner(b, a) }
	}
	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
}

// Paginate slices a fully materialized result set into a 1-based page.
// page < 1 clamps to 1; pageSize clamps into [MinPageSize, MaxPageSize].
func Paginate(records []*FileRecord, page, pageSize int) *Page {
	if page < 1 {
		page = 1
	}
	if pageSize < MinPageSize {
		pageSize = MinPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total := len(records)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &Page{
		Items:      records[start:end],
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// compileGlob translates a * / ? wildcard pattern into an anchored
// case-insensitive regexp.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, ".*")
	quoted = strings.ReplaceAll(quoted, `\?`, ".")
	return regexp.Compile("(?i)^" + quoted + "$")
}
