package usecase

import (
	"testing"
	"time"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

func TestTimeWindowRetainsEntryAtExactCutoff(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	entry := domain.Entry{CapturedAt: now.Add(-24 * time.Hour)}

	if !inTimeRange(entry, domain.SearchFilter{Window: domain.WindowDay}, now) {
		t.Fatalf("entry at exact cutoff must be retained")
	}
	entry.CapturedAt = entry.CapturedAt.Add(-time.Second)
	if inTimeRange(entry, domain.SearchFilter{Window: domain.WindowDay}, now) {
		t.Fatalf("entry one second past cutoff must be excluded")
	}
}

func TestExplicitRangeIncludesWholeToDay(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	filter := domain.SearchFilter{
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}

	lateOnToDay := domain.Entry{CapturedAt: time.Date(2026, 8, 10, 23, 59, 59, 0, time.UTC)}
	if !inTimeRange(lateOnToDay, filter, now) {
		t.Fatalf("entry late on the to-day must be retained")
	}
	nextDay := domain.Entry{CapturedAt: time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)}
	if inTimeRange(nextDay, filter, now) {
		t.Fatalf("entry on the day after to must be excluded")
	}
	beforeFrom := domain.Entry{CapturedAt: time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)}
	if inTimeRange(beforeFrom, filter, now) {
		t.Fatalf("entry before from must be excluded")
	}
}

func TestPhraseBoundaries(t *testing.T) {
	entry := func(text string) domain.Entry { return domain.Entry{Text: text} }

	if !matchesBooleanFilter(entry("say hello world now"), domain.SearchFilter{Phrase: "hello world"}) {
		t.Fatalf("phrase must match with plain word boundaries")
	}
	if matchesBooleanFilter(entry("say helloworld now"), domain.SearchFilter{Phrase: "hello world"}) {
		t.Fatalf("phrase must not match inside a longer word")
	}
	if matchesBooleanFilter(entry("say hello-world now"), domain.SearchFilter{Phrase: "hello world"}) {
		t.Fatalf("hyphenated compound does not contain the spaced phrase")
	}
}

// A hyphen is a boundary character, so a single term matches inside a
// hyphenated compound. Pinned deliberately.
func TestSingleTermMatchesAcrossHyphenBoundary(t *testing.T) {
	entry := domain.Entry{Text: "say hello-world now"}
	if !matchesBooleanFilter(entry, domain.SearchFilter{Phrase: "hello"}) {
		t.Fatalf("term bounded by hyphen must match")
	}
	if matchesBooleanFilter(entry, domain.SearchFilter{Phrase: "hell"}) {
		t.Fatalf("partial word must not match")
	}
}

func TestExcludeTermsParsing(t *testing.T) {
	terms := parseExcludeTerms(`-foo "bar baz"`)
	if len(terms) != 2 || terms[0] != "foo" || terms[1] != "bar baz" {
		t.Fatalf("unexpected terms %v", terms)
	}
}

func TestBooleanExcludeFilter(t *testing.T) {
	filter := domain.SearchFilter{NoneWords: `-foo "bar baz"`}

	if matchesBooleanFilter(domain.Entry{Text: "some foo content"}, filter) {
		t.Fatalf("document containing excluded word must be dropped")
	}
	if matchesBooleanFilter(domain.Entry{Text: "contains bar baz phrase"}, filter) {
		t.Fatalf("document containing excluded phrase must be dropped")
	}
	if !matchesBooleanFilter(domain.Entry{Text: "bar alone and baz apart"}, filter) {
		t.Fatalf("split phrase words must not trigger exclusion")
	}
}

func TestAllAndAnyWordClauses(t *testing.T) {
	entry := domain.Entry{Title: "Climbing guide", Text: "rope and harness basics", URL: "https://example.com/guide"}

	if !matchesBooleanFilter(entry, domain.SearchFilter{AllWords: "rope harness"}) {
		t.Fatalf("all present words must pass")
	}
	if matchesBooleanFilter(entry, domain.SearchFilter{AllWords: "rope crampons"}) {
		t.Fatalf("one missing all-word must fail")
	}
	if !matchesBooleanFilter(entry, domain.SearchFilter{AnyWords: "crampons harness"}) {
		t.Fatalf("one present any-word must pass")
	}
	if matchesBooleanFilter(entry, domain.SearchFilter{AnyWords: "crampons ice"}) {
		t.Fatalf("no present any-word must fail")
	}
}

func TestBooleanFilterSearchesTitleTextAndURL(t *testing.T) {
	entry := domain.Entry{Title: "Weekly digest", Text: "short note", URL: "https://news.example.com/archive"}
	if !matchesBooleanFilter(entry, domain.SearchFilter{Phrase: "archive"}) {
		t.Fatalf("phrase must match in url")
	}
	if !matchesBooleanFilter(entry, domain.SearchFilter{Phrase: "digest"}) {
		t.Fatalf("phrase must match in title")
	}
}
