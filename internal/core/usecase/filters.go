package usecase

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

// windowCutoff converts a named window into its oldest admissible instant.
// Entries timestamped exactly at the cutoff are retained.
func windowCutoff(window domain.TimeWindow, now time.Time) (time.Time, bool) {
	switch window {
	case domain.WindowHour:
		return now.Add(-time.Hour), true
	case domain.WindowDay:
		return now.Add(-24 * time.Hour), true
	case domain.WindowWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case domain.WindowMonth:
		return now.AddDate(0, -1, 0), true
	case domain.WindowYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// inTimeRange applies the named window and the explicit [from, to] range.
// The "to" bound is inclusive of the entire day it names.
func inTimeRange(entry domain.Entry, filter domain.SearchFilter, now time.Time) bool {
	at := entry.CapturedAt
	if cutoff, ok := windowCutoff(filter.Window, now); ok && at.Before(cutoff) {
		return false
	}
	if !filter.From.IsZero() && at.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() {
		endOfDay := time.Date(filter.To.Year(), filter.To.Month(), filter.To.Day(), 0, 0, 0, 0, filter.To.Location()).AddDate(0, 0, 1)
		if !at.Before(endOfDay) {
			return false
		}
	}
	return true
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// containsBounded reports whether needle occurs in haystack bounded by
// non-alphanumeric runes or string edges. Hyphen counts as a boundary, so
// "hello" matches inside "hello-world" but not inside "helloworld".
func containsBounded(haystack, needle string) bool {
	haystack = strings.ToLower(haystack)
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		before := true
		if idx > 0 {
			prev, _ := utf8.DecodeLastRuneInString(haystack[:idx])
			before = !isWordChar(prev)
		}
		after := true
		if end := idx + len(needle); end < len(haystack) {
			next, _ := utf8.DecodeRuneInString(haystack[end:])
			after = !isWordChar(next)
		}
		if before && after {
			return true
		}
		start = idx + 1
	}
}

// entryHaystacks are the fields a verbatim or boolean term may match in.
func entryHaystacks(entry domain.Entry) []string {
	return []string{entry.Title, entry.Text, entry.URL}
}

func entryContains(entry domain.Entry, term string) bool {
	for _, field := range entryHaystacks(entry) {
		if containsBounded(field, term) {
			return true
		}
	}
	return false
}

// parseExcludeTerms splits an exclude expression into terms: bare words,
// quoted multi-word phrases, each with an optional leading '-'.
// `-foo "bar baz"` yields ["foo", "bar baz"].
func parseExcludeTerms(s string) []string {
	var terms []string
	var current strings.Builder
	inQuote := false
	flush := func() {
		term := strings.TrimSpace(current.String())
		term = strings.TrimPrefix(term, "-")
		if term != "" {
			terms = append(terms, term)
		}
		current.Reset()
	}
	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return terms
}

// matchesBooleanFilter applies the keyword-only verbatim and boolean
// clauses: all-of AND, exact phrase, any-of OR, exclusions NOT.
func matchesBooleanFilter(entry domain.Entry, filter domain.SearchFilter) bool {
	if phrase := strings.TrimSpace(filter.Phrase); phrase != "" {
		if !entryContains(entry, phrase) {
			return false
		}
	}
	for _, word := range strings.Fields(filter.AllWords) {
		if !entryContains(entry, word) {
			return false
		}
	}
	if anyWords := strings.Fields(filter.AnyWords); len(anyWords) > 0 {
		matched := false
		for _, word := range anyWords {
			if entryContains(entry, word) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, term := range parseExcludeTerms(filter.NoneWords) {
		if entryContains(entry, term) {
			return false
		}
	}
	return true
}
