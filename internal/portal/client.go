// client.go contains the plumbing for talking to the portal like a browser would,
// the login handshake lives in login.go and the listing retrieval in listing.go.

package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"libreminder/internal/components/assert"
	"libreminder/internal/components/telemetry"
	"libreminder/pkg/restyutil"
	"libreminder/pkg/textutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch = "client.fetch"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// StepTimeouts bounds every request of a run, each step gets its own deadline.
type StepTimeouts struct {
	Entry   time.Duration
	Form    time.Duration
	Submit  time.Duration
	Landing time.Duration
	Listing time.Duration
}

type Options struct {
	BaseUrl string

	EntryPath   string
	LoginPath   string
	LandingPath string
	// ListingPath is used when no link to the loan listing can be found on the landing page.
	ListingPath string

	// IdentifierField and SecretField are used when the login form does not make the
	// field names discoverable.
	IdentifierField string
	SecretField     string

	// AuthenticatedSelectors and AuthenticatedTexts mark a page only a logged in
	// patron can see (logout links, account menus).
	AuthenticatedSelectors []string
	AuthenticatedTexts     []string

	ListingLinkKeywords []string
	// ListingLinkSimilarity is the minimum Jaro-Winkler similarity for a fuzzy
	// listing link match.
	ListingLinkSimilarity float64

	// TimeoutMarkers are matched against the title and, on pages without a table,
	// the body. TimeoutTitleMarkers and ErrorTitleMarkers are only matched against
	// the title.
	TimeoutMarkers      []string
	TimeoutTitleMarkers []string
	ErrorTitleMarkers   []string

	// RequireLoginCookie fails an attempt whose response did not set any cookie,
	// otherwise that is only reported as a warning.
	RequireLoginCookie bool

	MaxAttempts int
	RetryDelay  time.Duration
	Timeouts    StepTimeouts

	RequestsPerSecond float64
	MaxRedirects      int
	UserAgent         string
	// BrowserTransport wraps the transport so TLS fingerprints and default headers
	// resemble a real browser.
	BrowserTransport bool

	// DumpDir, when set, receives a copy of every page fetched.
	DumpDir string
}

func DefaultOptions(baseUrl string) Options {
	return Options{
		BaseUrl:         baseUrl,
		EntryPath:       "/",
		LoginPath:       "/login",
		ListingPath:     "/mypage/lending",
		IdentifierField: "usercd",
		SecretField:     "password",
		AuthenticatedSelectors: []string{
			"a[href*=logout]",
			"a[href*=Logout]",
			"form[action*=logout]",
			".account-menu",
			"#mypage-menu",
		},
		AuthenticatedTexts: []string{
			"ログアウト",
			"logout",
			"signout",
			"logoff",
		},
		ListingLinkKeywords: []string{
			"貸出状況",
			"貸出一覧",
			"貸出中",
			"借りている資料",
			"currentloans",
			"myloans",
			"checkedout",
			"borrowed",
		},
		ListingLinkSimilarity: 0.88,
		TimeoutMarkers: []string{
			"タイムアウトしました",
			"タイムアウトになりました",
			"セッションが切れ",
			"セッションの有効期限が切れ",
			"長時間操作がなかった",
			"sessiontimeout",
			"sessiontimedout",
			"sessionexpired",
			"sessionhasexpired",
		},
		TimeoutTitleMarkers: []string{
			"タイムアウト",
			"timeout",
			"timedout",
		},
		ErrorTitleMarkers: []string{
			"エラー",
			"システムエラー",
			"error",
		},
		MaxAttempts: 2,
		RetryDelay:  time.Second * 3,
		Timeouts: StepTimeouts{
			Entry:   time.Second * 15,
			Form:    time.Second * 15,
			Submit:  time.Second * 25,
			Landing: time.Second * 15,
			Listing: time.Second * 25,
		},
		RequestsPerSecond: 2,
		MaxRedirects:      10,
		UserAgent:         defaultUserAgent,
		BrowserTransport:  true,
	}
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := textutil.NormalizeName(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Client drives the portal for a single run. It owns its Session, clients must
// not be shared between runs.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	Session *Session

	opts  Options
	tel   telemetry.API
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseUrl)
	assert.Positive(opts.MaxAttempts)

	tel = telemetry.NewScopedAPI("portal", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %s", opts.BaseUrl)
	}

	opts.AuthenticatedTexts = normalizeAll(opts.AuthenticatedTexts)
	opts.ListingLinkKeywords = normalizeAll(opts.ListingLinkKeywords)
	opts.TimeoutMarkers = normalizeAll(opts.TimeoutMarkers)
	opts.TimeoutTitleMarkers = normalizeAll(opts.TimeoutTitleMarkers)
	opts.ErrorTitleMarkers = normalizeAll(opts.ErrorTitleMarkers)

	session := NewSession(baseUrl)

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl.String())
	httpClient.SetCookieJar(session)
	if opts.BrowserTransport {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpClient.SetHeader("accept-language", "ja,en-US;q=0.7,en;q=0.3")
	httpClient.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(opts.MaxRedirects),
		resty.DomainCheckRedirectPolicy(baseUrl.Hostname()),
	)
	httpClient.SetTimeout(time.Second * 30)

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)

	if opts.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DumpDir, tel)
		if err != nil {
			return nil, fmt.Errorf("dump dir: %w", err)
		}
		restyutil.InstrumentDump(httpClient, output)
	}

	return &Client{
		BaseUrl: baseUrl,
		Http:    httpClient,
		Session: session,
		opts:    opts,
		tel:     tel,
		sleep:   sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) resolve(ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return c.BaseUrl.ResolveReference(parsed), nil
}

// page is a fetched and parsed html document.
type page struct {
	// Url is the final url after redirects.
	Url    *url.URL
	Status int
	Doc    *goquery.Document
	Html   string
}

func (c *Client) toPage(res *resty.Response, requested *url.URL) (page, error) {
	finalUrl := requested
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalUrl = res.RawResponse.Request.URL
	}
	body := res.Body()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page{}, fmt.Errorf("parse %s: %w", finalUrl, err)
	}
	return page{
		Url:    finalUrl,
		Status: res.StatusCode(),
		Doc:    doc,
		Html:   string(body),
	}, nil
}

func withStepTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) get(ctx context.Context, timeout time.Duration, link *url.URL, referer *url.URL) (page, error) {
	ctx, cancel := withStepTimeout(ctx, timeout)
	defer cancel()

	req := c.Http.R().SetContext(ctx)
	if referer != nil {
		req.SetHeader("referer", referer.String())
	}
	res, err := req.Get(link.String())
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, fmt.Errorf("get: %w", err), link.String())
		return page{}, classifyRequestError(err)
	}
	return c.toPage(res, link)
}

func (c *Client) postForm(ctx context.Context, timeout time.Duration, link *url.URL, form url.Values, referer *url.URL) (page, error) {
	ctx, cancel := withStepTimeout(ctx, timeout)
	defer cancel()

	req := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetHeader("origin", fmt.Sprintf("%s://%s", c.BaseUrl.Scheme, c.BaseUrl.Host))
	if referer != nil {
		req.SetHeader("referer", referer.String())
	}
	res, err := req.Post(link.String())
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, fmt.Errorf("post: %w", err), link.String())
		return page{}, classifyRequestError(err)
	}
	return c.toPage(res, link)
}
