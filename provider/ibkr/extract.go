package ibkr

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sig-0/ibkrrates/storage/types"
)

// Table describes a rate table on a pricing page
type Table struct {
	// Benchmark matches the benchmark spread in the rate cell.
	// The first submatch is the spread magnitude
	Benchmark *regexp.Regexp

	// Heading is the section heading preceding the table
	Heading string
}

var (
	// InterestTable is the credit interest table of the interest rates page
	InterestTable = Table{
		Heading:   "Global Interest Rates",
		Benchmark: interestBenchmarkRegex,
	}

	// MarginTable is the margin loan table of the margin rates page
	MarginTable = Table{
		Heading:   "Interest Charged on Margin Loans",
		Benchmark: marginBenchmarkRegex,
	}
)

// TableFor returns the rate table definition for the given rate type
func TableFor(rateType types.RateType) (Table, error) {
	switch rateType {
	case types.RateTypeInterest:
		return InterestTable, nil
	case types.RateTypeMargin:
		return MarginTable, nil
	default:
		return Table{}, fmt.Errorf("%w: %q", errUnknownRateType, rateType)
	}
}

// elements whose text is never a section heading
var ignoredElements = map[atom.Atom]struct{}{
	atom.Head:     {},
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Template: {},
}

// Extract parses the HTML page and extracts the rate table rows.
// It only errors out if the page cannot be read
func Extract(r io.Reader, table Table, asOf time.Time) ([]*types.RateRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse html: %w", err)
	}

	return ExtractDocument(doc, table, asOf), nil
}

// ExtractDocument extracts the rate table rows from the parsed page.
// Only table bodies following the table heading are captured, and capture
// stops at the end of the first such body until the heading appears again
func ExtractDocument(doc *goquery.Document, table Table, asOf time.Time) []*types.RateRecord {
	var (
		heading = strings.ToLower(cleanText(table.Heading))
		date    = types.DateOf(asOf)
		records = make([]*types.RateRecord, 0, 64)
		matcher = newHeadingMatcher(doc, heading)

		armed bool
		walk  func(n *html.Node, within bool)
	)

	if heading == "" {
		return records
	}

	// within is false once an ancestor's text lacks the heading,
	// since no descendant can contain it either
	walk = func(n *html.Node, within bool) {
		if n.Type == html.ElementNode {
			if _, ignored := ignoredElements[n.DataAtom]; ignored {
				return
			}

			if armed && n.DataAtom == atom.Tbody {
				records = append(records, extractRows(doc.FindNodes(n), table, date)...)
				armed = false

				return
			}

			within = within && matcher.contains(n)

			if within && matcher.isAnchor(n) {
				armed = true
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, within)
		}
	}

	for _, root := range doc.Nodes {
		walk(root, true)
	}

	return records
}

// headingMatcher finds the elements whose text contains the table heading.
// Each element's text is built at most once
type headingMatcher struct {
	doc     *goquery.Document
	heading string
	seen    map[*html.Node]bool
}

func newHeadingMatcher(doc *goquery.Document, heading string) *headingMatcher {
	return &headingMatcher{
		doc:     doc,
		heading: heading,
		seen:    make(map[*html.Node]bool),
	}
}

// isAnchor checks if the element is the innermost element containing the heading
func (m *headingMatcher) isAnchor(n *html.Node) bool {
	if !m.contains(n) {
		return false
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && m.contains(c) {
			return false
		}
	}

	return true
}

func (m *headingMatcher) contains(n *html.Node) bool {
	if ok, cached := m.seen[n]; cached {
		return ok
	}

	text := strings.ToLower(cleanText(m.doc.FindNodes(n).Text()))
	ok := strings.Contains(text, m.heading)

	m.seen[n] = ok

	return ok
}

// extractRows converts the rows of a single table body into rate records
func extractRows(tbody *goquery.Selection, table Table, date time.Time) []*types.RateRecord {
	var (
		records      = make([]*types.RateRecord, 0, tbody.Children().Length())
		lastCurrency types.Currency
	)

	tbody.ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		var (
			cells    = rowCells(tr)
			currency = types.Currency(cells[0])
			tierText = cells[1]
			rateText = cells[2]
		)

		// Merged currency cells only label the first row of a group
		if currency == "" {
			currency = lastCurrency
		} else {
			lastCurrency = currency
		}

		rate, ok := parseRate(rateText)
		if !ok || currency == "" || tierText == "" {
			return
		}

		low, high := parseTier(tierText)

		records = append(records, &types.RateRecord{
			Date:          date,
			Currency:      currency,
			TierLow:       low,
			TierHigh:      high,
			Rate:          rate,
			BenchmarkDiff: parseBenchmarkDiff(rateText, table.Benchmark),
			TierLabel:     tierText,
		})
	})

	return records
}

// rowCells returns the cleaned text of the first three cells of the row.
// Missing cells are returned as empty text
func rowCells(tr *goquery.Selection) [3]string {
	var cells [3]string

	tr.ChildrenFiltered("td, th").EachWithBreak(func(i int, cell *goquery.Selection) bool {
		cells[i] = cleanText(cell.Text())

		return i < len(cells)-1
	})

	return cells
}
