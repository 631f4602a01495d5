package portal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cargo_ingest/internal/domain"
)

const (
	listingsTable = "table#gridCargas"
	columnCount   = 10
)

// Parse extracts every direct body row of the listings table in document
// order. Rows of tables nested inside a cell are not listings.
// Cells map by position: trip id, transport type, origin, destination,
// product, equipment, expected pickup, delivery count, freight value, finish.
// Missing trailing cells are empty strings. Rows are not validated here.
func Parse(markup string) ([]domain.ScrapedListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}

	listings := make([]domain.ScrapedListing, 0)

	rows := doc.Find(listingsTable).First().ChildrenFiltered("tbody").ChildrenFiltered("tr")
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}

		var values [columnCount]string
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i >= columnCount {
				return false
			}
			values[i] = strings.TrimSpace(cell.Text())
			return true
		})

		listings = append(listings, domain.ScrapedListing{
			TripID:           values[0],
			TransportType:    values[1],
			Origin:           values[2],
			Destination:      values[3],
			Product:          values[4],
			Equipment:        values[5],
			ExpectedPickupAt: values[6],
			DeliveryCount:    values[7],
			FreightValue:     values[8],
			FinishAt:         values[9],
		})
	})

	return listings, nil
}
