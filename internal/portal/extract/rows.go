package extract

import (
	"time"

	"libreminder/internal/loans"
	"libreminder/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ownRows returns the rows belonging to the table itself, rows of nested
// tables are excluded.
func ownRows(table *goquery.Selection) []*goquery.Selection {
	node := table.Get(0)
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.Closest("table").Get(0) == node {
			rows = append(rows, row)
		}
	})
	return rows
}

func ownCells(table *goquery.Selection, selector string) int {
	count := 0
	for _, row := range ownRows(table) {
		count += row.ChildrenFiltered(selector).Length()
	}
	return count
}

// findDue returns the due date of a row and the index of the cell it was found
// in. The header indexed column is preferred, otherwise the first date at or
// after the 4th cell since earlier dates are usually the loan date.
func (s TableStrategy) findDue(cells *goquery.Selection, dueColumn int) (time.Time, int, bool) {
	if dueColumn >= 0 && dueColumn < cells.Length() {
		due, ok := ParseDate(htmlutil.SelectionText(cells.Eq(dueColumn)), s.loc)
		if ok {
			return due, dueColumn, true
		}
	}

	var earlier time.Time
	earlierIndex := -1
	for i := 0; i < cells.Length(); i++ {
		date, ok := ParseDate(htmlutil.SelectionText(cells.Eq(i)), s.loc)
		if !ok {
			continue
		}
		if i >= 3 {
			return date, i, true
		}
		earlier = date
		earlierIndex = i
	}
	if earlierIndex >= 0 {
		return earlier, earlierIndex, true
	}
	return time.Time{}, -1, false
}

// findTitle picks the title cell: emphasized text first, then a hyperlink, then
// the longest text that is not a date.
func findTitle(cells *goquery.Selection, skip int) string {
	title := ""
	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i == skip {
			return true
		}
		text := htmlutil.SelectionText(cell.Find("strong, b, em").First())
		if text != "" && !IsDateShaped(text) {
			title = text
			return false
		}
		return true
	})
	if title != "" {
		return title
	}

	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i == skip {
			return true
		}
		text := htmlutil.SelectionText(cell.Find("a").First())
		if text != "" && !IsDateShaped(text) {
			title = text
			return false
		}
		return true
	})
	if title != "" {
		return title
	}

	cells.Each(func(i int, cell *goquery.Selection) {
		if i == skip {
			return
		}
		text := htmlutil.SelectionText(cell)
		if IsDateShaped(text) {
			return
		}
		if len([]rune(text)) > len([]rune(title)) {
			title = text
		}
	})
	return title
}

// extractRows reads every data row of the table. Rows without both a title and
// a due date are skipped.
func (s TableStrategy) extractRows(table *goquery.Selection) []loans.Record {
	records := []loans.Record{}
	dueColumn := -1

	for _, row := range ownRows(table) {
		cells := row.ChildrenFiltered("th, td")
		data := row.ChildrenFiltered("td")

		if data.Length() == 0 {
			if idx := s.dueHeaderIndex(cells); idx >= 0 {
				dueColumn = idx
			}
			continue
		}
		if data.Length() < 2 || row.Find("table").Length() > 0 {
			continue
		}

		due, dueIndex, ok := s.findDue(cells, dueColumn)
		if !ok {
			// some portals build the header row out of td cells
			if idx := s.dueHeaderIndex(cells); idx >= 0 {
				dueColumn = idx
				continue
			}
			s.tel.ReportDebug(report_extract_partial_row, "no due date", htmlutil.SelectionText(row))
			continue
		}
		title := findTitle(cells, dueIndex)
		if title == "" {
			s.tel.ReportDebug(report_extract_partial_row, "no title", htmlutil.SelectionText(row))
			continue
		}

		records = append(records, loans.Record{Title: title, Due: due})
	}

	return records
}

func (s TableStrategy) dueHeaderIndex(cells *goquery.Selection) int {
	idx := -1
	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if s.isDueHeader(htmlutil.SelectionText(cell)) {
			idx = i
			return false
		}
		return true
	})
	return idx
}
