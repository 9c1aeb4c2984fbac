package openkvk

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
)

// SearchPage fetches one page of registrations whose visiting city is exactly `city`.
// It returns the page items and the page count the API declared.
func (c *Client) SearchPage(ctx context.Context, city string, page, pageSize int) ([]Listing, int, error) {
	query := url.Values{}
	query.Set("filters[bezoeklocatie.plaats]", city)
	query.Set("size", strconv.Itoa(pageSize))
	query.Set("page", strconv.Itoa(page))
	for _, field := range listingFields {
		query.Add("fields[]", field)
	}

	body, err := c.get(ctx, searchPath, query)
	if err != nil {
		return nil, 0, err
	}
	items, pageCount, err := decodeSearchPage(body)
	if err != nil {
		return nil, 0, fmt.Errorf("openkvk: decode search page %d: %w", page, err)
	}
	return items, pageCount, nil
}

// Walk yields every listing of `city`, page by page.
//
// The walk ends at the declared page count, at the first empty page, or at
// the first failed request. Failures are reported and never surface to the
// caller, the city is simply abandoned where it failed.
func (c *Client) Walk(ctx context.Context, city string, pageSize int) iter.Seq[Listing] {
	return func(yield func(Listing) bool) {
		for page := 1; ; page++ {
			if ctx.Err() != nil {
				return
			}

			items, pageCount, err := c.SearchPage(ctx, city, page, pageSize)
			if err != nil {
				c.tel.ReportBroken(report_client_walk, err, city, page)
				return
			}
			c.tel.ReportDebug("search page", city, page, pageCount, len(items))
			if len(items) == 0 {
				return
			}

			for _, item := range items {
				if !yield(item) {
					return
				}
			}

			if page >= pageCount {
				return
			}
		}
	}
}
