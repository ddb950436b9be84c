package extract

import (
	"fmt"
	"regexp"
	"time"

	"libreminder/internal/loans"
	"libreminder/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Patterns are matched against the raw markup, the first capture group of each
// match is the title or the due date fragment.
type Patterns struct {
	Title *regexp.Regexp
	Due   *regexp.Regexp
}

const (
	defaultTitlePattern = `(?is)<strong[^>]*>(.*?)</strong>`
	defaultDuePattern   = `(?is)<td[^>]*class\s*=\s*["'][^"']*(?:due|limit|return)[^"']*["'][^>]*>(.*?)</td>`
)

func DefaultPatterns() Patterns {
	return Patterns{
		Title: regexp.MustCompile(defaultTitlePattern),
		Due:   regexp.MustCompile(defaultDuePattern),
	}
}

// CompilePatterns compiles custom patterns, an empty string keeps the default.
func CompilePatterns(title, due string) (Patterns, error) {
	patterns := DefaultPatterns()
	if title != "" {
		re, err := regexp.Compile(title)
		if err != nil {
			return Patterns{}, fmt.Errorf("title pattern: %w", err)
		}
		patterns.Title = re
	}
	if due != "" {
		re, err := regexp.Compile(due)
		if err != nil {
			return Patterns{}, fmt.Errorf("due pattern: %w", err)
		}
		patterns.Due = re
	}
	if patterns.Title.NumSubexp() < 1 || patterns.Due.NumSubexp() < 1 {
		return Patterns{}, fmt.Errorf("patterns must have a capture group")
	}
	return patterns, nil
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

func fragmentText(fragment string) string {
	return htmlutil.CleanText(html.UnescapeString(tagPattern.ReplaceAllString(fragment, " ")))
}

// PatternStrategy pairs up title and due date fragments in document order. It
// only succeeds if there are as many titles as dates.
type PatternStrategy struct {
	patterns Patterns
	loc      *time.Location
}

func NewPatternStrategy(patterns Patterns, loc *time.Location) PatternStrategy {
	return PatternStrategy{patterns: patterns, loc: loc}
}

func (s PatternStrategy) Name() string {
	return "pattern"
}

func (s PatternStrategy) Extract(_ *goquery.Document, raw string) ([]loans.Record, bool) {
	titles := s.patterns.Title.FindAllStringSubmatch(raw, -1)
	dues := s.patterns.Due.FindAllStringSubmatch(raw, -1)
	if len(titles) == 0 || len(titles) != len(dues) {
		return nil, false
	}

	records := make([]loans.Record, 0, len(titles))
	for i := range titles {
		title := fragmentText(titles[i][1])
		if title == "" {
			return nil, false
		}
		due, ok := ParseDate(fragmentText(dues[i][1]), s.loc)
		if !ok {
			return nil, false
		}
		records = append(records, loans.Record{Title: title, Due: due})
	}
	return records, true
}
