// Package cleaner prepares raw captured page text for upload: markup and
// entity stripping first, then an optional AI rewrite pass that removes
// social-media chrome and keeps substantive content.
package cleaner

import (
	"context"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/clipindex/internal/core/ports"
)

var (
	scriptPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	stylePattern  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]+>`)
	spacePattern  = regexp.MustCompile(`[ \t]+`)

	// Short interaction-widget lines and bare engagement counters.
	chromeLinePattern = regexp.MustCompile(`(?i)^(like|share|reply|retweet|repost|follow|subscribe|comment|save|report|see more|show more|read more)$`)
	counterPattern    = regexp.MustCompile(`(?i)^[\d.,]+[km]?\s*(likes?|shares?|comments?|views?|reposts?|followers?)$`)
)

// RuleBased is the always-available cleanup: strip tags, decode entities,
// drop interaction chrome, collapse whitespace.
type RuleBased struct{}

func NewRuleBased() *RuleBased { return &RuleBased{} }

func (c *RuleBased) Clean(_ context.Context, raw string) (string, error) {
	text := scriptPattern.ReplaceAllString(raw, " ")
	text = stylePattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		if chromeLinePattern.MatchString(line) || counterPattern.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), nil
}

// Rewriter is the AI cleaning pass. It sees already rule-cleaned text.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// Enhanced runs the rule pass and then the AI pass when one is wired.
// An AI failure degrades to the rule output, never to an error.
type Enhanced struct {
	rules    *RuleBased
	rewriter Rewriter
}

func NewEnhanced(rewriter Rewriter) *Enhanced {
	return &Enhanced{rules: NewRuleBased(), rewriter: rewriter}
}

func (c *Enhanced) Clean(ctx context.Context, raw string) (string, error) {
	cleaned, err := c.rules.Clean(ctx, raw)
	if err != nil {
		return "", err
	}
	if c.rewriter == nil || cleaned == "" {
		return cleaned, nil
	}
	rewritten, err := c.rewriter.Rewrite(ctx, cleaned)
	if err != nil {
		slog.Warn("ai_cleaning_unavailable", "error", err)
		return cleaned, nil
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return cleaned, nil
	}
	return rewritten, nil
}

var (
	_ ports.TextCleaner = (*RuleBased)(nil)
	_ ports.TextCleaner = (*Enhanced)(nil)
)
