package portal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"libreminder/internal/components/telemetry"
	"libreminder/internal/portal/extract"

	"github.com/stretchr/testify/require"
)

func authenticatedFor(t *testing.T, client *Client, path string) Authenticated {
	link, err := url.Parse(client.BaseUrl.String() + path)
	require.NoError(t, err)
	return Authenticated{Session: client.Session, ListingUrl: link, ListingLinkFound: true}
}

func TestFetchListing(t *testing.T) {
	portal := newFakePortal(t)
	client, err := NewClient(testOptions(portal.server.URL), telemetry.NewRecorder())
	require.NoError(t, err)

	listing, err := client.FetchListing(context.Background(), authenticatedFor(t, client, "/mypage/lending"))
	require.NoError(t, err)
	require.Contains(t, listing.Html, "吾輩は猫である")
	require.Equal(t, "/mypage/lending", listing.Url.Path)
}

func TestFetchListingFollowsRefresh(t *testing.T) {
	portal := newFakePortal(t)
	client, err := NewClient(testOptions(portal.server.URL), telemetry.NewRecorder())
	require.NoError(t, err)

	listing, err := client.FetchListing(context.Background(), authenticatedFor(t, client, "/mypage/lending/frame"))
	require.NoError(t, err)
	require.Contains(t, listing.Html, "吾輩は猫である")
	require.Equal(t, "/mypage/lending", listing.Url.Path)
}

func TestFetchListingEmpty(t *testing.T) {
	portal := newFakePortal(t)
	portal.listingHtml = emptyListingPage

	client, err := NewClient(testOptions(portal.server.URL), telemetry.NewRecorder())
	require.NoError(t, err)

	listing, err := client.FetchListing(context.Background(), authenticatedFor(t, client, "/mypage/lending"))
	require.NoError(t, err)
	require.Equal(t, "/mypage/lending", listing.Url.Path)

	records := extract.New(time.UTC, telemetry.NewRecorder()).Extract(listing.Html)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestFetchListingUnavailable(t *testing.T) {
	testCases := []struct {
		name   string
		html   string
		status int
		reason string
	}{
		{
			name:   "timeout page",
			html:   timeoutPage,
			status: http.StatusOK,
			reason: "portal timeout",
		},
		{
			name:   "timeout title",
			html:   `<html><head><title>Session Timeout</title></head><body><table><tr><td>x</td></tr></table></body></html>`,
			status: http.StatusOK,
			reason: "portal timeout",
		},
		{
			name:   "bounced to login",
			html:   loginFormPage,
			status: http.StatusOK,
			reason: "portal timeout",
		},
		{
			name:   "server error",
			html:   `<html><body>Service Unavailable</body></html>`,
			status: http.StatusServiceUnavailable,
			reason: "server error 503",
		},
		{
			name:   "not found",
			html:   `<html><head><title>Not Found</title></head><body>ページが見つかりません</body></html>`,
			status: http.StatusNotFound,
			reason: "server error 404",
		},
		{
			name:   "forbidden",
			html:   `<html><body>Forbidden</body></html>`,
			status: http.StatusForbidden,
			reason: "server error 403",
		},
		{
			name:   "error page",
			html:   `<html><head><title>エラー</title></head><body><p>システムエラーが発生しました。</p></body></html>`,
			status: http.StatusOK,
			reason: "portal error page",
		},
		{
			name:   "english error page",
			html:   `<html><head><title>System Error</title></head><body><table><tr><td>An unexpected problem occurred.</td></tr></table></body></html>`,
			status: http.StatusOK,
			reason: "portal error page",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			portal := newFakePortal(t)
			portal.listingHtml = test.html
			portal.listingStatus = test.status

			client, err := NewClient(testOptions(portal.server.URL), telemetry.NewRecorder())
			require.NoError(t, err)

			_, err = client.FetchListing(context.Background(), authenticatedFor(t, client, "/mypage/lending"))
			var listingErr *ListingUnavailableError
			require.True(t, errors.As(err, &listingErr), err)
			require.Equal(t, test.reason, listingErr.Reason)
		})
	}
}
