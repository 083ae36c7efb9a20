// Package ordertable reads the portal's case-history order table.
package ordertable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// UnknownDate labels orders whose date text did not parse.
const UnknownDate = "Unknown date"

const (
	dateCell = 3
	linkCell = 4
	minCells = 5
)

// Layouts the portal has been seen to use for order dates, day first.
var layouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2.1.2006",
	"2006-1-2",
	"2 Jan 2006",
	"2-Jan-2006",
}

// Order is one row of the order table.
type Order struct {
	Date     time.Time // zero when DateText did not parse
	DateText string
	Link     string // as found in the page, possibly relative
}

// Known reports whether the order date parsed.
func (o Order) Known() bool { return !o.Date.IsZero() }

// Label is the order date as dd-mm-yyyy, or UnknownDate.
func (o Order) Label() string {
	if !o.Known() {
		return UnknownDate
	}
	return o.Date.Format("02-01-2006")
}

// Extract returns the orders of the first table.order_table in doc,
// newest first, one per distinct link. A page without the table yields no
// orders and no error.
func Extract(doc string) ([]Order, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("ordertable: parse: %w", err)
	}
	table := goquery.NewDocumentFromNode(root).Find("table.order_table").First()
	if table.Length() == 0 {
		return []Order{}, nil
	}

	var orders []Order
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < minCells {
			return
		}
		href, ok := cells.Eq(linkCell).Find("a").First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		text := collapse(cells.Eq(dateCell).Text())
		orders = append(orders, Order{Date: ParseDate(text), DateText: text, Link: href})
	})

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Date.After(orders[j].Date)
	})
	return dedupe(orders), nil
}

// ParseDate tries each known layout. It returns the zero time when none fits.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Select applies the order policy: "all" keeps the list, anything else
// keeps only the newest entry.
func Select(orders []Order, policy string) []Order {
	if len(orders) == 0 {
		return nil
	}
	if policy == "all" {
		return orders
	}
	return orders[:1]
}

func dedupe(orders []Order) []Order {
	seen := make(map[string]bool, len(orders))
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if seen[o.Link] {
			continue
		}
		seen[o.Link] = true
		out = append(out, o)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
