package paginate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "three pages with inline markers",
			raw:  "A -- 1 of 3 -- B -- 2 of 3 -- C",
			want: []string{"A", "B", "C"},
		},
		{
			name: "markers without surrounding spaces",
			raw:  "-- 1 of 2 --Intro-- 2 of 2 --Body",
			want: []string{"Intro", "Body"},
		},
		{
			name: "extractor layout with trailing markers",
			raw:  "First page\n\n-- 1 of 2 --\n\nSecond page\n\n-- 2 of 2 --\n\n",
			want: []string{"First page", "Second page"},
		},
		{
			name: "no marker keeps whole text",
			raw:  "  Just one page of text  ",
			want: []string{"Just one page of text"},
		},
		{
			name: "empty fragments between markers are dropped",
			raw:  "A -- 1 of 4 --   -- 2 of 4 -- \n\t -- 3 of 4 -- D",
			want: []string{"A", "D"},
		},
		{
			name: "marker spacing variants",
			raw:  "A --1  of   2-- B --\t10 of 12\n-- C",
			want: []string{"A", "B", "C"},
		},
		{
			name: "missing spaces around of is not a marker",
			raw:  "A --1of2-- B",
			want: []string{"A --1of2-- B"},
		},
		{
			name: "markers only falls back to raw text",
			raw:  "-- 1 of 1 --",
			want: []string{"-- 1 of 1 --"},
		},
		{
			name: "whitespace only has no pages",
			raw:  " \n\t ",
			want: []string{},
		},
		{
			name: "empty has no pages",
			raw:  "",
			want: []string{},
		},
		{
			name: "interior whitespace is preserved",
			raw:  "line one\n\nline two -- 1 of 2 -- next",
			want: []string{"line one\n\nline two", "next"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Paginate(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestPaginate_NeverNil(t *testing.T) {
	if got := Paginate(""); got == nil {
		t.Error("expected empty non-nil slice")
	}
}

func TestPages(t *testing.T) {
	got := Pages("A -- 1 of 2 -- B")
	want := []Page{
		{Index: 0, Content: "A"},
		{Index: 1, Content: "B"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pages mismatch (-want +got):\n%s", diff)
	}
}
