package portal

import (
	"fmt"
	"net/url"
	"strings"

	"libreminder/pkg/htmlutil"
	"libreminder/pkg/textutil"
)

// findListingLink looks for an anchor on the page leading to the loan listing,
// first by keyword containment then by fuzzy similarity. Anchors leaving the
// portal's host are ignored.
func (c *Client) findListingLink(p page) (*url.URL, bool) {
	anchors := htmlutil.GetAnchors(p.Url, p.Doc.Find("a"))

	var candidates []htmlutil.Anchor
	for _, a := range anchors {
		if a.Url.Hostname() != c.BaseUrl.Hostname() {
			continue
		}
		if strings.Contains(strings.ToLower(a.Url.Path), "logout") {
			continue
		}
		candidates = append(candidates, a)
	}

	for _, a := range candidates {
		if textutil.MatchName(a.Name, c.opts.ListingLinkKeywords) {
			return a.Url, true
		}
	}

	names := make([]string, len(candidates))
	for i, a := range candidates {
		names[i] = a.Name
	}
	idx, similarity := textutil.MostSimilar(names, c.opts.ListingLinkKeywords)
	if idx >= 0 && similarity >= c.opts.ListingLinkSimilarity {
		c.tel.ReportDebug("fuzzy matched listing link", candidates[idx].Name, similarity)
		return candidates[idx].Url, true
	}

	return nil, false
}

// discoverListingUrl returns the listing link found on the landing page, or the
// conventional listing path if there is none.
func (c *Client) discoverListingUrl(landing page) (*url.URL, bool) {
	link, found := c.findListingLink(landing)
	if found {
		c.tel.ReportDebug("discovered listing link", link.String())
		return link, true
	}

	fallback, err := c.resolve(c.opts.ListingPath)
	if err != nil {
		c.tel.ReportBroken(report_client_discover_links, fmt.Errorf("resolve fallback: %w", err), c.opts.ListingPath)
		return c.BaseUrl, false
	}
	c.tel.ReportWarning(
		report_client_discover_links,
		fmt.Errorf("no listing link on landing page, using fallback"),
		landing.Url.String(),
		fallback.String(),
	)
	return fallback, false
}
