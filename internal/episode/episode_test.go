package episode

import "testing"

func TestExtractID(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
		ok    bool
	}{
		{
			name:  "standard SxxExx",
			title: "Show.Name.S01E05.1080p.WEB-DL",
			want:  "S01E05",
			ok:    true,
		},
		{
			name:  "lowercase sxxexx",
			title: "show.name.s02e10.720p",
			want:  "S02E10",
			ok:    true,
		},
		{
			name:  "single digit season",
			title: "Show S1E3",
			want:  "S01E03",
			ok:    true,
		},
		{
			name:  "NxNN shorthand",
			title: "Show.Name.4x07.HDTV",
			want:  "S04E07",
			ok:    true,
		},
		{
			name:  "date based with dots",
			title: "Daily.Show.2024.03.15.Guest.Name",
			want:  "2024-03-15",
			ok:    true,
		},
		{
			name:  "date based with dashes",
			title: "Daily Show 2024-03-15",
			want:  "2024-03-15",
			ok:    true,
		},
		{
			name:  "sxxexx wins over date",
			title: "Show.S01E01.2024.01.01",
			want:  "S01E01",
			ok:    true,
		},
		{
			name:  "no pattern",
			title: "Some Movie 1080p BluRay",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractID(tt.title)
			if ok != tt.ok {
				t.Fatalf("ExtractID(%q) ok = %v, want %v", tt.title, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ExtractID(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestIsQualityUpgrade(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Show.S01E01.PROPER.1080p", true},
		{"Show.S01E01.REPACK.720p", true},
		{"Show.S01E01.ReRip.WEB-DL", true},
		{"show s01e01 repack", true},
		{"Show.S01E01.1080p.WEB-DL", false},
		{"Improper.Conduct.S01E01", true}, // substring match, not word match
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := IsQualityUpgrade(tt.title); got != tt.want {
				t.Errorf("IsQualityUpgrade(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}
