package portal

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"libreminder/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func mustCredentials(t *testing.T) Credentials {
	creds, err := ValidateCredentials("12345678", "secret-1", DefaultSecretBounds())
	require.NoError(t, err)
	return creds
}

func TestLoginSuccess(t *testing.T) {
	portal := newFakePortal(t, loginResponse{
		cookie:   &http.Cookie{Name: "JSESSIONID", Value: "auth", Path: "/"},
		redirect: "/mypage/top",
	})
	portal.landingCookie = &http.Cookie{Name: "JSESSIONID", Value: "auth-rotated", Path: "/"}

	client, err := NewClient(testOptions(portal.server.URL), telemetry.NewRecorder())
	require.NoError(t, err)

	auth, err := client.Login(context.Background(), mustCredentials(t))
	require.NoError(t, err)

	require.True(t, auth.ListingLinkFound)
	require.Equal(t, portal.server.URL+"/mypage/lending?mode=list", auth.ListingUrl.String())
	require.Equal(t, "auth-rotated", auth.Session.Snapshot()["JSESSIONID"])

	posts := portal.Posts()
	require.Len(t, posts, 1)
	require.Equal(t, "tok-123", posts[0].Get("token"))
	require.Equal(t, "h1", posts[0].Get("history"))
	require.Equal(t, "12345678", posts[0].Get("userid"))
	require.Equal(t, "secret-1", posts[0].Get("passwd"))
	require.Equal(t, "ログイン", posts[0].Get("btnLogin"))

	headers := portal.postHeaders[0]
	require.Equal(t, portal.server.URL+"/login", headers.Get("Referer"))
	require.Equal(t, portal.server.URL, headers.Get("Origin"))
	require.Contains(t, headers.Get("User-Agent"), "Mozilla/5.0")
	require.Contains(t, headers.Get("Content-Type"), "application/x-www-form-urlencoded")

	require.Equal(t, []string{
		"GET / []",
		"GET /login [JSESSIONID=anon]",
		"POST /auth/submit [JSESSIONID=anon]",
		"GET /mypage/top [JSESSIONID=auth]",
		"GET /mypage/top [JSESSIONID=auth-rotated]",
	}, portal.Requests())
}

func TestLoginRetry(t *testing.T) {
	portal := newFakePortal(t,
		loginResponse{html: loginFormPage},
		loginResponse{
			cookie: &http.Cookie{Name: "JSESSIONID", Value: "auth", Path: "/"},
			html:   landingPage,
		},
	)

	opts := testOptions(portal.server.URL)
	opts.LandingPath = "/mypage/top"
	rec := telemetry.NewRecorder()
	client, err := NewClient(opts, rec)
	require.NoError(t, err)

	auth, err := client.Login(context.Background(), mustCredentials(t))
	require.NoError(t, err)
	require.Len(t, portal.Posts(), 2)
	require.Equal(t, "auth", auth.Session.Snapshot()["JSESSIONID"])
	require.True(t, auth.ListingLinkFound)

	// the first attempt did not set a cookie
	require.True(t, rec.Contains("login response did not set any cookie"))
}

func TestLoginRequireCookie(t *testing.T) {
	responses := []loginResponse{
		{html: landingPage},
		{
			cookie: &http.Cookie{Name: "JSESSIONID", Value: "auth", Path: "/"},
			html:   landingPage,
		},
	}

	testCases := []struct {
		name          string
		requireCookie bool
		posts         int
		session       string
	}{
		{name: "lenient", requireCookie: false, posts: 1, session: "anon"},
		{name: "strict", requireCookie: true, posts: 2, session: "auth"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			portal := newFakePortal(t, responses...)

			opts := testOptions(portal.server.URL)
			opts.LandingPath = "/mypage/top"
			opts.RequireLoginCookie = test.requireCookie
			client, err := NewClient(opts, telemetry.NewRecorder())
			require.NoError(t, err)

			auth, err := client.Login(context.Background(), mustCredentials(t))
			require.NoError(t, err)
			require.Len(t, portal.Posts(), test.posts)
			require.Equal(t, test.session, auth.Session.Snapshot()["JSESSIONID"])
		})
	}
}

func TestLoginRequireCookieExhausted(t *testing.T) {
	portal := newFakePortal(t,
		loginResponse{html: landingPage},
		loginResponse{html: landingPage},
	)

	opts := testOptions(portal.server.URL)
	opts.RequireLoginCookie = true
	client, err := NewClient(opts, telemetry.NewRecorder())
	require.NoError(t, err)

	_, err = client.Login(context.Background(), mustCredentials(t))
	var loginErr *LoginFailedError
	require.True(t, errors.As(err, &loginErr), err)
	require.Equal(t, "attempts exhausted", loginErr.Reason)
	require.ErrorContains(t, err, "did not set any cookie")
	require.Len(t, portal.Posts(), 2)
}

func TestLoginExhausted(t *testing.T) {
	testCases := []struct {
		name      string
		responses []loginResponse
	}{
		{
			name: "form still present",
			responses: []loginResponse{
				{html: loginFormPage},
				{html: loginFormPage},
			},
		},
		{
			name: "no markers",
			responses: []loginResponse{
				{html: `<html><body>処理中です</body></html>`},
				{cookie: &http.Cookie{Name: "other", Value: "1"}, html: `<html><body>処理中です</body></html>`},
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			portal := newFakePortal(t, test.responses...)
			client, err := NewClient(testOptions(portal.server.URL), telemetry.NewRecorder())
			require.NoError(t, err)

			_, err = client.Login(context.Background(), mustCredentials(t))
			var loginErr *LoginFailedError
			require.True(t, errors.As(err, &loginErr), err)
			require.Equal(t, "attempts exhausted", loginErr.Reason)
			require.Len(t, portal.Posts(), 2)
		})
	}
}

func TestLoginTimeout(t *testing.T) {
	portal := newFakePortal(t,
		loginResponse{delay: time.Second, html: landingPage},
		loginResponse{delay: time.Second, html: landingPage},
	)

	opts := testOptions(portal.server.URL)
	opts.Timeouts.Submit = time.Millisecond * 50
	client, err := NewClient(opts, telemetry.NewRecorder())
	require.NoError(t, err)

	_, err = client.Login(context.Background(), mustCredentials(t))
	var loginErr *LoginFailedError
	require.True(t, errors.As(err, &loginErr), err)
	require.True(t, errors.Is(err, ErrTimeout), err)
}

func TestLoginFormMissing(t *testing.T) {
	portal := newFakePortal(t)

	opts := testOptions(portal.server.URL)
	opts.LoginPath = "/"
	client, err := NewClient(opts, telemetry.NewRecorder())
	require.NoError(t, err)

	_, err = client.Login(context.Background(), mustCredentials(t))
	var loginErr *LoginFailedError
	require.True(t, errors.As(err, &loginErr), err)
	require.Equal(t, "login form not found", loginErr.Reason)
	require.Empty(t, portal.Posts())
}

func TestLoginListingFallback(t *testing.T) {
	portal := newFakePortal(t, loginResponse{
		cookie:   &http.Cookie{Name: "JSESSIONID", Value: "auth", Path: "/"},
		redirect: "/mypage/top",
	})
	portal.landingHtml = landingPageNoLink

	rec := telemetry.NewRecorder()
	client, err := NewClient(testOptions(portal.server.URL), rec)
	require.NoError(t, err)

	auth, err := client.Login(context.Background(), mustCredentials(t))
	require.NoError(t, err)
	require.False(t, auth.ListingLinkFound)
	require.Equal(t, portal.server.URL+"/mypage/lending", auth.ListingUrl.String())
	require.NotEmpty(t, rec.Reports("warning"))
}

func TestLoginDump(t *testing.T) {
	portal := newFakePortal(t, loginResponse{
		cookie:   &http.Cookie{Name: "JSESSIONID", Value: "auth", Path: "/"},
		redirect: "/mypage/top",
	})

	opts := testOptions(portal.server.URL)
	opts.DumpDir = filepath.Join(t.TempDir(), "dump")
	client, err := NewClient(opts, telemetry.NewRecorder())
	require.NoError(t, err)

	_, err = client.Login(context.Background(), mustCredentials(t))
	require.NoError(t, err)

	entries, err := os.ReadDir(opts.DumpDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		contents, err := os.ReadFile(filepath.Join(opts.DumpDir, entry.Name()))
		require.NoError(t, err)
		require.NotContains(t, string(contents), "secret-1")
	}
}
