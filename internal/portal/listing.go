package portal

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"libreminder/pkg/htmlutil"
	"libreminder/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_client_fetch_listing = "client.fetch-listing"
)

// maxListingHops bounds how many in-page navigations are followed to reach the
// listing from the discovered url.
const maxListingHops = 2

// Listing is the raw markup of the loan listing page.
type Listing struct {
	Url  *url.URL
	Html string
}

// isTimeoutPage reports whether the portal served its timeout page. The title is
// always checked, the body only when the page has no table at all since listing
// pages, empty ones included, commonly carry a footer note about session timeouts.
func (c *Client) isTimeoutPage(doc *goquery.Document) bool {
	title := doc.Find("title").First().Text()
	if textutil.MatchName(title, c.opts.TimeoutMarkers) || textutil.MatchName(title, c.opts.TimeoutTitleMarkers) {
		return true
	}
	if hasTable(doc) {
		return false
	}
	body := htmlutil.SelectionText(doc.Find("body"))
	return textutil.MatchName(body, c.opts.TimeoutMarkers)
}

func (c *Client) isErrorPage(doc *goquery.Document) bool {
	title := doc.Find("title").First().Text()
	return textutil.MatchName(title, c.opts.ErrorTitleMarkers)
}

func hasTable(doc *goquery.Document) bool {
	return doc.Find("table").Length() > 0
}

var metaRefreshUrl = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'"]+)`)

// nextNavigation returns where an intermediate page leads to: a meta refresh
// target, or a listing keyword link other than the current page.
func (c *Client) nextNavigation(p page) (*url.URL, bool) {
	var target *url.URL
	p.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			return true
		}
		groups := metaRefreshUrl.FindStringSubmatch(s.AttrOr("content", ""))
		if len(groups) < 2 {
			return true
		}
		parsed, err := url.Parse(strings.TrimSpace(groups[1]))
		if err != nil {
			return true
		}
		target = p.Url.ResolveReference(parsed)
		return false
	})
	if target != nil {
		return target, true
	}

	link, found := c.findListingLink(p)
	if found && link.String() != p.Url.String() {
		return link, true
	}
	return nil, false
}

// FetchListing retrieves the loan listing page with an authenticated session.
// Error and timeout pages are reported as ListingUnavailableError instead of
// being handed to extraction, where they would look like "no loans".
func (c *Client) FetchListing(ctx context.Context, auth Authenticated) (Listing, error) {
	link := auth.ListingUrl
	var referer *url.URL

	for hop := 0; ; hop++ {
		c.tel.ReportDebug("fetch listing", link.String(), hop)

		p, err := c.get(ctx, c.opts.Timeouts.Listing, link, referer)
		if err != nil {
			return Listing{}, &ListingUnavailableError{Reason: "fetch listing", Err: err}
		}
		if p.Status >= 400 {
			c.tel.ReportWarning(report_client_fetch_listing, "server error", p.Status, p.Url.String())
			return Listing{}, &ListingUnavailableError{Reason: fmt.Sprintf("server error %d", p.Status)}
		}
		if c.isTimeoutPage(p.Doc) {
			c.tel.ReportWarning(report_client_fetch_listing, "timeout page", p.Url.String())
			return Listing{}, &ListingUnavailableError{Reason: "portal timeout"}
		}
		if c.isErrorPage(p.Doc) {
			c.tel.ReportWarning(report_client_fetch_listing, "error page", p.Url.String())
			return Listing{}, &ListingUnavailableError{Reason: "portal error page"}
		}
		if hasLoginForm(p.Doc) {
			c.tel.ReportWarning(report_client_fetch_listing, "redirected to login form", p.Url.String())
			return Listing{}, &ListingUnavailableError{Reason: "portal timeout"}
		}

		if hasTable(p.Doc) || hop >= maxListingHops {
			return Listing{Url: p.Url, Html: p.Html}, nil
		}
		next, ok := c.nextNavigation(p)
		if !ok {
			return Listing{Url: p.Url, Html: p.Html}, nil
		}
		referer = p.Url
		link = next
	}
}
