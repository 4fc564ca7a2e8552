// Package filter implements the feed item matching engine.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"feed_screener/internal/model"
)

// Evaluate checks an item against an interest's filter set.
// Only enabled filters participate; if none are enabled the item matches
// with the description "no filters" (catch-all interests rely on this).
// With LogicAnd every enabled filter must pass, with LogicOr at least one.
// The returned description lists the satisfied filters and is meant for
// audit and preview output only.
func Evaluate(item model.FeedItem, filters []model.FeedFilter, logic model.FilterLogic) (string, bool) {
	var enabled []model.FeedFilter
	for _, f := range filters {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	if len(enabled) == 0 {
		return "no filters", true
	}

	results := make([]bool, len(enabled))
	anyPassed := false
	allPassed := true
	for i, f := range enabled {
		results[i] = evaluateOne(item, f)
		if results[i] {
			anyPassed = true
		} else {
			allPassed = false
		}
	}

	matched := allPassed
	if logic == model.LogicOr {
		matched = anyPassed
	}
	if !matched {
		return "", false
	}

	var clauses []string
	for i, f := range enabled {
		if !results[i] {
			continue
		}
		clauses = append(clauses, describe(f))
	}
	return strings.Join(clauses, ", "), true
}

func describe(f model.FeedFilter) string {
	switch f.Type {
	case model.FilterMustContain:
		return fmt.Sprintf("contains %q", f.Value)
	case model.FilterMustNotContain:
		return fmt.Sprintf("excludes %q", f.Value)
	case model.FilterRegex:
		return fmt.Sprintf("regex /%s/", f.Value)
	case model.FilterWildcard:
		return fmt.Sprintf("wildcard %q", f.Value)
	case model.FilterSizeRange:
		return fmt.Sprintf("size %s", f.Value)
	}
	return ""
}

func evaluateOne(item model.FeedItem, f model.FeedFilter) bool {
	switch f.Type {
	case model.FilterMustContain:
		return strings.Contains(strings.ToLower(item.Title), strings.ToLower(f.Value))
	case model.FilterMustNotContain:
		return !strings.Contains(strings.ToLower(item.Title), strings.ToLower(f.Value))
	case model.FilterRegex:
		// Invalid patterns fail closed: non-match, never an error.
		re, err := regexp.Compile(f.Value)
		if err != nil {
			return false
		}
		return re.MatchString(item.Title)
	case model.FilterWildcard:
		re, err := regexp.Compile("(?i)" + wildcardToRegex(strings.ToLower(f.Value)))
		if err != nil {
			return false
		}
		return re.MatchString(item.Title)
	case model.FilterSizeRange:
		return evaluateSizeRange(item.Size, f.Value)
	}
	return false
}

// evaluateSizeRange tests an item size against a "minMB-maxMB" range,
// bounds inclusive. Absence of size information never excludes an item.
func evaluateSizeRange(size *int64, value string) bool {
	if size == nil {
		return true
	}
	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return true
	}
	minMB, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		minMB = 0
	}
	maxMB, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		maxMB = math.MaxInt64
	}
	sizeMB := *size / (1024 * 1024)
	return sizeMB >= minMB && sizeMB <= maxMB
}

// wildcardToRegex translates a wildcard pattern (* matches any sequence,
// ? any single character) into an anchor-free regular expression,
// escaping every other regex metacharacter.
func wildcardToRegex(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) * 2)
	for _, c := range pattern {
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '.', '+', '^', '$', '(', ')', '[', ']', '{', '}', '|', '\\':
			b.WriteByte('\\')
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
