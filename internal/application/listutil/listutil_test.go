package listutil

import (
	"net/url"
	"slices"
	"testing"
)

// TestParsePageParams covers defaults, valid values and rejected values.
func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name        string
		q           url.Values
		wantPage    int
		wantPerPage int
	}{
		{"defaults", url.Values{}, 1, DefaultPerPage},
		{"valid", url.Values{"page": {"3"}, "per_page": {"25"}}, 3, 25},
		{"per_page not offered", url.Values{"per_page": {"7"}}, 1, DefaultPerPage},
		{"negative page", url.Values{"page": {"-2"}}, 1, DefaultPerPage},
		{"garbage", url.Values{"page": {"x"}, "per_page": {"y"}}, 1, DefaultPerPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePageParams(tt.q)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("got %+v, want page=%d per_page=%d", p, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

// TestParseFilterParams keeps only recognised keys and trims the search.
func TestParseFilterParams(t *testing.T) {
	q := url.Values{"q": {"  Late "}, "class": {"negative"}, "other": {"x"}}
	f := ParseFilterParams(q, []string{"class"})
	if f.Search != "Late" {
		t.Errorf("Search = %q", f.Search)
	}
	if len(f.Filters) != 1 || f.Filters["class"] != "negative" {
		t.Errorf("Filters = %v", f.Filters)
	}
	if !f.Matches("arrived late to standup") {
		t.Error("expected case-insensitive match")
	}
	if f.Matches("on time") {
		t.Error("unexpected match")
	}
	if !(FilterParams{}).Matches("anything") {
		t.Error("empty search should match")
	}
}

// TestNewPageInfo clamps out-of-range pages.
func TestNewPageInfo(t *testing.T) {
	p := NewPageInfo(9, 10, 25)
	if p.Page != 3 || p.TotalPages != 3 {
		t.Errorf("got %+v", p)
	}
	if p.StartRow() != 21 || p.EndRow() != 25 {
		t.Errorf("rows %d-%d", p.StartRow(), p.EndRow())
	}
	if !p.HasPrev() || p.HasNext() {
		t.Errorf("prev=%v next=%v", p.HasPrev(), p.HasNext())
	}

	empty := NewPageInfo(1, 10, 0)
	if empty.TotalPages != 1 || empty.StartRow() != 0 || empty.EndRow() != 0 || empty.ShowPagination() {
		t.Errorf("empty = %+v", empty)
	}
}

// TestPaginate slices the requested page.
func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	page, info := Paginate(items, PageParams{Page: 2, PerPage: 5})
	if !slices.Equal(page, []int{6, 7}) {
		t.Errorf("page = %v", page)
	}
	if !info.ShowPagination() || info.Total != 7 {
		t.Errorf("info = %+v", info)
	}

	page, info = Paginate([]int(nil), PageParams{Page: 4, PerPage: 5})
	if page != nil || info.Page != 1 {
		t.Errorf("empty paginate = %v %+v", page, info)
	}
}
