package extract

import (
	"strings"
	"time"

	"libreminder/internal/components/telemetry"
	"libreminder/internal/loans"
	"libreminder/pkg/htmlutil"
	"libreminder/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	report_extract_partial_row = "extract.partial-row"
)

// DefaultDueHeaders is wording found in the header of the due date column.
var DefaultDueHeaders = []string{
	"返却予定日",
	"返却予定",
	"返却期限",
	"貸出期限",
	"返却日",
	"duedate",
	"datedue",
	"returnby",
}

// minFallbackCells is the number of data cells a table needs to be picked by
// the last resort locator.
const minFallbackCells = 5

// locator returns candidate tables in order of preference.
type locator struct {
	name   string
	locate func(doc *goquery.Document) []*html.Node
}

// TableStrategy locates the loan table structurally and reads it row by row.
type TableStrategy struct {
	loc        *time.Location
	tel        telemetry.API
	dueHeaders []string
	locators   []locator
}

func NewTableStrategy(loc *time.Location, tel telemetry.API) TableStrategy {
	s := TableStrategy{
		loc: loc,
		tel: tel,
	}
	for _, h := range DefaultDueHeaders {
		s.dueHeaders = append(s.dueHeaders, textutil.NormalizeName(h))
	}
	s.locators = []locator{
		{name: "list-class", locate: locateByClass},
		{name: "due-header", locate: s.locateByDueHeader},
		{name: "date-cell", locate: locateByDateCell},
		{name: "cell-count", locate: locateByCellCount},
	}
	return s
}

func (s TableStrategy) Name() string {
	return "table"
}

func (s TableStrategy) Extract(doc *goquery.Document, _ string) ([]loans.Record, bool) {
	for _, l := range s.locators {
		for _, table := range l.locate(doc) {
			records := s.extractRows(goquery.NewDocumentFromNode(table).Selection)
			if len(records) > 0 {
				s.tel.ReportDebug("located loan table", l.name, len(records))
				return records, true
			}
		}
	}
	return nil, false
}

// enclosingTables maps each cell of the selection to its nearest enclosing
// table, keeping document order and dropping duplicates.
func enclosingTables(cells *goquery.Selection) []*html.Node {
	var out []*html.Node
	seen := map[*html.Node]bool{}
	cells.Each(func(_ int, cell *goquery.Selection) {
		table := cell.Closest("table")
		if table.Length() == 0 {
			return
		}
		node := table.Get(0)
		if seen[node] {
			return
		}
		seen[node] = true
		out = append(out, node)
	})
	return out
}

func locateByClass(doc *goquery.Document) []*html.Node {
	return doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(s.AttrOr("class", "")), "list")
	}).Nodes
}

// leafCells excludes cells wrapping a nested table, their text is the text of
// the whole nested table.
func leafCells(doc *goquery.Document, selector string) *goquery.Selection {
	return doc.Find(selector).FilterFunction(func(_ int, cell *goquery.Selection) bool {
		return cell.Find("table").Length() == 0
	})
}

func (s TableStrategy) locateByDueHeader(doc *goquery.Document) []*html.Node {
	return enclosingTables(leafCells(doc, "th, td").FilterFunction(func(_ int, cell *goquery.Selection) bool {
		return s.isDueHeader(htmlutil.SelectionText(cell))
	}))
}

func locateByDateCell(doc *goquery.Document) []*html.Node {
	return enclosingTables(leafCells(doc, "td").FilterFunction(func(_ int, cell *goquery.Selection) bool {
		return IsDateShaped(htmlutil.SelectionText(cell))
	}))
}

func locateByCellCount(doc *goquery.Document) []*html.Node {
	var out []*html.Node
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if ownCells(table, "td") > minFallbackCells {
			out = append(out, table.Get(0))
			return false
		}
		return true
	})
	return out
}

func (s TableStrategy) isDueHeader(text string) bool {
	return textutil.MatchName(text, s.dueHeaders)
}
