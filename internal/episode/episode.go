// Package episode extracts canonical episode identifiers from release
// titles and detects quality-upgrade markers.
package episode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	seasonEpisodeRe = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,2})`)
	crossNotationRe = regexp.MustCompile(`(?i)(\d{1,2})x(\d{2})`)
	dailyRe         = regexp.MustCompile(`(\d{4})[.\-](\d{2})[.\-](\d{2})`)
)

// ExtractID returns the canonical episode identifier for a title:
// S01E01-style and 1x01-style titles canonicalize to "S%02dE%02d",
// daily releases (2024.01.15 or 2024-01-15) to "YYYY-MM-DD".
// The first matching pattern wins. A title matching none of the patterns
// cannot participate in episode-level dedup.
func ExtractID(title string) (string, bool) {
	if caps := seasonEpisodeRe.FindStringSubmatch(title); caps != nil {
		return canonical(caps[1], caps[2])
	}
	if caps := crossNotationRe.FindStringSubmatch(title); caps != nil {
		return canonical(caps[1], caps[2])
	}
	if caps := dailyRe.FindStringSubmatch(title); caps != nil {
		return fmt.Sprintf("%s-%s-%s", caps[1], caps[2], caps[3]), true
	}
	return "", false
}

func canonical(season, episode string) (string, bool) {
	s, err := strconv.Atoi(season)
	if err != nil {
		return "", false
	}
	e, err := strconv.Atoi(episode)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("S%02dE%02d", s, e), true
}

// IsQualityUpgrade reports whether the title carries a PROPER, REPACK,
// or RERIP marker. Upgraded releases of an already-matched episode are
// exempt from the seen-episode gate.
func IsQualityUpgrade(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "proper") ||
		strings.Contains(lower, "repack") ||
		strings.Contains(lower, "rerip")
}
