package scrape

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// Structural markers of the listing table. The source styles rows with
// utility classes instead of semantic attributes, so grouping is
// positional: a data row with enough cells starts a group, and rows
// carrying the no-border marker immediately after it belong to it.
const (
	resultsTableSelector = "table.tw-min-w-full"
	rowMarkerClass       = "tw-border-none"
	commentSelector      = "p.tw-text-gray-500"
	badgeSelector        = "div.tw-inline-flex.tw-items-center.tw-rounded-md"
	statusChipSelector   = "div.tw-inline-flex"
	resultLinkSelector   = `a[href^="/result/"]`
	minMainRowCells      = 4
)

// ParseListPage parses one fetched listing page into entries, in row
// order. It never fails: unparseable HTML, a missing table, or malformed
// rows all simply yield fewer entries. Empty pages are expected near the
// end of the listing.
func ParseListPage(baseURL string, body []byte) []Entry {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var entries []Entry
	for _, group := range assemble(doc) {
		if entry := extract(baseURL, group); entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries
}

// assemble walks the table rows top to bottom and clusters them into
// row groups: one main row, optionally followed by a detail row and a
// comment row carrying the no-border marker class.
func assemble(doc *goquery.Document) []rowGroup {
	table := doc.Find(resultsTableSelector).First()
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}
	if table.Length() == 0 {
		return nil
	}
	scope := table.Find("tbody").First()
	if scope.Length() == 0 {
		scope = table
	}
	rows := scope.Find("tr")
	total := rows.Length()

	var groups []rowGroup
	for i := 0; i < total; i++ {
		row := rows.Eq(i)
		if row.Find("th").Length() > 0 && row.Find("td").Length() == 0 {
			continue // header row
		}
		if row.Find("td").Length() < minMainRowCells {
			continue // malformed or mobile-collapsed row
		}
		group := rowGroup{main: row}
		if i+1 < total {
			next := rows.Eq(i + 1)
			if next.HasClass(rowMarkerClass) {
				group.detail = next
				i++
				if i+1 < total {
					after := rows.Eq(i + 1)
					if after.HasClass(rowMarkerClass) && after.Find(commentSelector).Length() > 0 {
						group.comment = after
						i++
					}
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}
