package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"feed_screener/internal/model"
)

func sizePtr(mb int64) *int64 {
	b := mb * 1024 * 1024
	return &b
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		item    model.FeedItem
		filters []model.FeedFilter
		logic   model.FilterLogic
		want    bool
	}{
		{
			name:    "no filters matches everything",
			item:    model.FeedItem{Title: "anything at all"},
			filters: nil,
			logic:   model.LogicAnd,
			want:    true,
		},
		{
			name: "disabled filters are skipped",
			item: model.FeedItem{Title: "anything at all"},
			filters: []model.FeedFilter{
				{Type: model.FilterMustContain, Value: "nomatch", Enabled: false},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "must contain is case insensitive",
			item: model.FeedItem{Title: "Show.Name.S01E01.1080p.WEB-DL"},
			filters: []model.FeedFilter{
				{Type: model.FilterMustContain, Value: "show.name", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "must not contain blocks",
			item: model.FeedItem{Title: "Show.Name.S01E01.CAM"},
			filters: []model.FeedFilter{
				{Type: model.FilterMustNotContain, Value: "cam", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  false,
		},
		{
			name: "and requires all filters",
			item: model.FeedItem{Title: "Show.Name.S01E01.720p"},
			filters: []model.FeedFilter{
				{Type: model.FilterMustContain, Value: "show.name", Enabled: true},
				{Type: model.FilterMustContain, Value: "1080p", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  false,
		},
		{
			name: "or requires any filter",
			item: model.FeedItem{Title: "Show.Name.S01E01.720p"},
			filters: []model.FeedFilter{
				{Type: model.FilterMustContain, Value: "1080p", Enabled: true},
				{Type: model.FilterMustContain, Value: "720p", Enabled: true},
			},
			logic: model.LogicOr,
			want:  true,
		},
		{
			name: "regex is case sensitive",
			item: model.FeedItem{Title: "Show S01E01 x264"},
			filters: []model.FeedFilter{
				{Type: model.FilterRegex, Value: `S\d{2}E\d{2}`, Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "invalid regex fails closed",
			item: model.FeedItem{Title: "anything"},
			filters: []model.FeedFilter{
				{Type: model.FilterRegex, Value: `[unclosed`, Enabled: true},
			},
			logic: model.LogicAnd,
			want:  false,
		},
		{
			name: "wildcard matches via star",
			item: model.FeedItem{Title: "Show.Name.S01E01.1080p.WEB-DL.x264"},
			filters: []model.FeedFilter{
				{Type: model.FilterWildcard, Value: "show*1080p*x264", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "wildcard question mark matches one char",
			item: model.FeedItem{Title: "Show S01E02"},
			filters: []model.FeedFilter{
				{Type: model.FilterWildcard, Value: "Show S01E0?", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "size range inside bounds",
			item: model.FeedItem{Title: "Show", Size: sizePtr(300)},
			filters: []model.FeedFilter{
				{Type: model.FilterSizeRange, Value: "100-500", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "size range rejects above max",
			item: model.FeedItem{Title: "Show", Size: sizePtr(1024)},
			filters: []model.FeedFilter{
				{Type: model.FilterSizeRange, Value: "100-500", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  false,
		},
		{
			name: "size range bounds are inclusive",
			item: model.FeedItem{Title: "Show", Size: sizePtr(500)},
			filters: []model.FeedFilter{
				{Type: model.FilterSizeRange, Value: "100-500", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "size range passes unknown size",
			item: model.FeedItem{Title: "Show", Size: nil},
			filters: []model.FeedFilter{
				{Type: model.FilterSizeRange, Value: "100-500", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "malformed size range passes",
			item: model.FeedItem{Title: "Show", Size: sizePtr(5000)},
			filters: []model.FeedFilter{
				{Type: model.FilterSizeRange, Value: "whatever", Enabled: true},
			},
			logic: model.LogicAnd,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Evaluate(tt.item, tt.filters, tt.logic)
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDescription(t *testing.T) {
	tests := []struct {
		name    string
		item    model.FeedItem
		filters []model.FeedFilter
		want    string
	}{
		{
			name:    "no filters",
			item:    model.FeedItem{Title: "x"},
			filters: nil,
			want:    "no filters",
		},
		{
			name: "clauses joined in order",
			item: model.FeedItem{Title: "Show.Name.1080p"},
			filters: []model.FeedFilter{
				{Type: model.FilterMustContain, Value: "show", Enabled: true},
				{Type: model.FilterMustNotContain, Value: "cam", Enabled: true},
				{Type: model.FilterSizeRange, Value: "100-500", Enabled: true},
			},
			want: `contains "show", excludes "cam", size 100-500`,
		},
		{
			name: "regex and wildcard clauses",
			item: model.FeedItem{Title: "Show S01E01"},
			filters: []model.FeedFilter{
				{Type: model.FilterRegex, Value: `S\d{2}E\d{2}`, Enabled: true},
				{Type: model.FilterWildcard, Value: "show*", Enabled: true},
			},
			want: `regex /S\d{2}E\d{2}/, wildcard "show*"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Evaluate(tt.item, tt.filters, model.LogicAnd)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("description mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWildcardToRegex(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"show*", "show.*"},
		{"s01e0?", "s01e0."},
		{"a.b+c", `a\.b\+c`},
		{"(x)[y]{z}", `\(x\)\[y\]\{z\}`},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := wildcardToRegex(tt.pattern); got != tt.want {
				t.Errorf("wildcardToRegex(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestValidateRegex(t *testing.T) {
	if err := ValidateRegex(`S\d{2}E\d{2}`); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
	if err := ValidateRegex(`[unclosed`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
