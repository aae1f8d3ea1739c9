// Package listutil parses list-view query parameters and slices result sets
// into pages.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// DefaultPerPage is the number of history rows shown when per_page is absent.
const DefaultPerPage = 10

// PerPageOptions are the accepted per_page values.
var PerPageOptions = []int{5, 10, 25, 50}

// PageParams carries the requested page.
type PageParams struct {
	Page    int // 1-indexed
	PerPage int
}

// FilterParams carries free-text search plus exact-match filters.
type FilterParams struct {
	Search  string
	Filters map[string]string
}

// ListParams combines page and filter parameters.
type ListParams struct {
	PageParams
	FilterParams
}

// PageInfo describes the page actually served.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// ParsePageParams reads page and per_page, falling back to defaults for
// anything missing or outside PerPageOptions.
// POST: Page >= 1, PerPage is one of PerPageOptions
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, perPage) {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: perPage}
}

// ParseFilterParams reads q (trimmed) and the named filters that are present.
// PRE: keys lists the filter names callers accept
func ParseFilterParams(q url.Values, keys []string) FilterParams {
	fp := FilterParams{
		Search:  strings.TrimSpace(q.Get("q")),
		Filters: make(map[string]string),
	}
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			fp.Filters[k] = v
		}
	}
	return fp
}

func ParseListParams(q url.Values, filterKeys []string) ListParams {
	return ListParams{
		PageParams:   ParsePageParams(q),
		FilterParams: ParseFilterParams(q, filterKeys),
	}
}

// Matches reports whether text contains the search term, ignoring case.
// An empty search matches everything.
func (f FilterParams) Matches(text string) bool {
	if f.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(f.Search))
}

// NewPageInfo clamps page into range for total rows.
// POST: 1 <= Page <= TotalPages, TotalPages >= 1
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	page = min(max(page, 1), totalPages)
	return PageInfo{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the index of the first row on the page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// StartRow is the 1-indexed first row shown, or 0 when there are no rows.
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return p.Offset() + 1
}

// EndRow is the 1-indexed last row shown.
func (p PageInfo) EndRow() int {
	return min(p.Offset()+p.PerPage, p.Total)
}

func (p PageInfo) HasPrev() bool { return p.Page > 1 }
func (p PageInfo) HasNext() bool { return p.Page < p.TotalPages }

// ShowPagination is true when the rows do not fit on one page.
func (p PageInfo) ShowPagination() bool {
	return p.Total > p.PerPage
}

// Paginate returns the rows of items that fall on the requested page along
// with the clamped page description.
// INVARIANT: items is not modified
func Paginate[T any](items []T, params PageParams) ([]T, PageInfo) {
	info := NewPageInfo(params.Page, params.PerPage, len(items))
	if info.Total == 0 {
		return nil, info
	}
	return items[info.Offset():info.EndRow()], info
}
