package cleaner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRuleBasedStripsMarkupAndEntities(t *testing.T) {
	raw := `<html><head><style>body { color: red; }</style>
<script>trackVisitor();</script></head>
<body><h1>Launch &amp; Landing</h1>
<p>The launch date is May&nbsp;4th.</p></body></html>`

	cleaned, err := NewRuleBased().Clean(context.Background(), raw)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if strings.Contains(cleaned, "<") || strings.Contains(cleaned, "trackVisitor") || strings.Contains(cleaned, "color: red") {
		t.Fatalf("markup leaked into %q", cleaned)
	}
	if !strings.Contains(cleaned, "Launch & Landing") {
		t.Fatalf("entity not decoded in %q", cleaned)
	}
	if !strings.Contains(cleaned, "May 4th") {
		t.Fatalf("nbsp not normalized in %q", cleaned)
	}
}

func TestRuleBasedDropsSocialChrome(t *testing.T) {
	raw := "Interesting article about sqlite internals.\nLike\nShare\n1.2K likes\n42 comments\nThe b-tree layout is described below."

	cleaned, err := NewRuleBased().Clean(context.Background(), raw)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	for _, chrome := range []string{"Like", "Share", "1.2K likes", "42 comments"} {
		for _, line := range strings.Split(cleaned, "\n") {
			if line == chrome {
				t.Fatalf("chrome line %q survived in %q", chrome, cleaned)
			}
		}
	}
	if !strings.Contains(cleaned, "sqlite internals") || !strings.Contains(cleaned, "b-tree layout") {
		t.Fatalf("substantive content lost in %q", cleaned)
	}
}

type stubRewriter struct {
	out string
	err error
}

func (s *stubRewriter) Rewrite(context.Context, string) (string, error) { return s.out, s.err }

func TestEnhancedUsesRewriterOutput(t *testing.T) {
	cleaner := NewEnhanced(&stubRewriter{out: "distilled content"})

	cleaned, err := cleaner.Clean(context.Background(), "<p>verbose content</p>")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if cleaned != "distilled content" {
		t.Fatalf("expected rewriter output, got %q", cleaned)
	}
}

func TestEnhancedDegradesToRulesWhenRewriterFails(t *testing.T) {
	cleaner := NewEnhanced(&stubRewriter{err: errors.New("model overloaded")})

	cleaned, err := cleaner.Clean(context.Background(), "<p>verbose content</p>")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if cleaned != "verbose content" {
		t.Fatalf("expected rule-based output, got %q", cleaned)
	}
}

func TestEnhancedIgnoresEmptyRewrite(t *testing.T) {
	cleaner := NewEnhanced(&stubRewriter{out: "   "})

	cleaned, err := cleaner.Clean(context.Background(), "original text")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if cleaned != "original text" {
		t.Fatalf("expected original text, got %q", cleaned)
	}
}
