// Package extract pulls loan records out of the portal's listing page. The
// listing markup is not stable so extraction is a cascade of strategies, the
// first one producing a consistent non-empty result wins.
package extract

import (
	"strings"
	"time"

	"libreminder/internal/components/assert"
	"libreminder/internal/components/telemetry"
	"libreminder/internal/loans"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_parse = "extract.parse"
)

// Strategy is one way of reading records from the listing. ok is false when the
// strategy could not make sense of the page.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, raw string) (records []loans.Record, ok bool)
}

type Extractor struct {
	strategies []Strategy
	tel        telemetry.API
}

// New creates an extractor running the pattern strategy followed by the table
// strategy.
func New(loc *time.Location, tel telemetry.API) *Extractor {
	assert.NotNil(loc)
	tel = telemetry.NewScopedAPI("extract", tel)
	return NewWithStrategies(
		tel,
		NewPatternStrategy(DefaultPatterns(), loc),
		NewTableStrategy(loc, tel),
	)
}

func NewWithStrategies(tel telemetry.API, strategies ...Strategy) *Extractor {
	assert.NotNil(tel)
	return &Extractor{
		strategies: strategies,
		tel:        tel,
	}
}

// Extract never fails, a page without recognizable loans yields an empty slice
// as the patron may simply have nothing borrowed.
func (e *Extractor) Extract(raw string) []loans.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		e.tel.ReportWarning(report_extract_parse, err)
		return []loans.Record{}
	}

	for _, strategy := range e.strategies {
		records, ok := strategy.Extract(doc, raw)
		if !ok || len(records) == 0 {
			e.tel.ReportDebug("strategy yielded nothing", strategy.Name())
			continue
		}
		e.tel.ReportDebug("strategy succeeded", strategy.Name(), len(records))
		return records
	}
	return []loans.Record{}
}
