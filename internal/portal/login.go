package portal

import (
	"context"
	"fmt"
	"net/url"
)

const (
	report_client_login          = "client.login"
	report_client_login_attempt  = "client.login-attempt"
	report_client_discover_links = "client.discover-listing-link"
)

type AttemptOutcome int

const (
	OutcomePending AttemptOutcome = iota
	OutcomeSuccess
	OutcomeAmbiguous
	OutcomeFailed
)

func (o AttemptOutcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// LoginAttempt is one credential submission.
type LoginAttempt struct {
	Ordinal int
	Outcome AttemptOutcome
	// Session is the cookie set as it was after the attempt was evaluated.
	Session map[string]string
}

// Authenticated is the result of a successful login.
type Authenticated struct {
	Session    *Session
	ListingUrl *url.URL
	// ListingLinkFound is false if ListingUrl is the configured fallback.
	ListingLinkFound bool
}

type loginState int

const (
	stateAttempt loginState = iota
	stateEvaluate
	stateRetry
	stateSuccess
	stateExhausted
)

// evaluate classifies the response to a credential submission.
func (c *Client) evaluate(res page) AttemptOutcome {
	if hasLoginForm(res.Doc) {
		return OutcomeFailed
	}
	if !c.Session.Usable() {
		return OutcomeFailed
	}
	if hasAuthenticatedMarkers(res.Doc, c.opts.AuthenticatedSelectors, c.opts.AuthenticatedTexts) {
		return OutcomeSuccess
	}
	return OutcomeAmbiguous
}

// fetchLoginForm performs the entry page and login form page requests.
func (c *Client) fetchLoginForm(ctx context.Context) (loginForm, error) {
	entryUrl, err := c.resolve(c.opts.EntryPath)
	if err != nil {
		return loginForm{}, &LoginFailedError{Reason: "invalid entry path", Err: err}
	}
	entry, err := c.get(ctx, c.opts.Timeouts.Entry, entryUrl, nil)
	if err != nil {
		return loginForm{}, &LoginFailedError{Reason: "fetch entry page", Err: err}
	}
	if !c.Session.Usable() {
		c.tel.ReportWarning(
			report_client_login,
			fmt.Errorf("entry page did not set a session cookie"),
			entry.Url.String(),
		)
	}

	formUrl, err := c.resolve(c.opts.LoginPath)
	if err != nil {
		return loginForm{}, &LoginFailedError{Reason: "invalid login path", Err: err}
	}
	formPage, err := c.get(ctx, c.opts.Timeouts.Form, formUrl, entry.Url)
	if err != nil {
		return loginForm{}, &LoginFailedError{Reason: "fetch login form", Err: err}
	}

	form, ok := findLoginForm(formPage.Doc, formPage.Url, c.opts.IdentifierField, c.opts.SecretField)
	if !ok {
		err := fmt.Errorf("could not find a form with a password input")
		c.tel.ReportBroken(report_client_login, err, formPage.Url.String())
		return loginForm{}, &LoginFailedError{Reason: "login form not found", Err: err}
	}

	c.tel.ReportDebug(
		"discovered login form",
		form.Action.String(),
		form.IdentifierField,
		form.SecretField,
		fmt.Sprintf("hidden_fields=%d", len(form.Hidden)),
	)
	return form, nil
}

// Login performs the login handshake: entry page, login form discovery, credential
// submission with bounded retry, then a landing page refresh to pick up rotated
// cookies and the link to the loan listing.
func (c *Client) Login(ctx context.Context, creds Credentials) (Authenticated, error) {
	c.tel.ReportDebug("login", creds.String())

	form, err := c.fetchLoginForm(ctx)
	if err != nil {
		return Authenticated{}, err
	}

	var (
		state   = stateAttempt
		attempt = LoginAttempt{Ordinal: 1}
		res     page
		lastErr error
	)

	for {
		switch state {
		case stateAttempt:
			generation := c.Session.Generation()
			res, err = c.postForm(ctx, c.opts.Timeouts.Submit, form.Action, form.values(creds), form.Page)
			if err != nil {
				lastErr = err
				attempt.Outcome = OutcomeFailed
				attempt.Session = c.Session.Snapshot()
				c.tel.ReportWarning(report_client_login_attempt, attempt.Ordinal, err)
				state = c.next(attempt)
				continue
			}
			if c.Session.Generation() == generation {
				err := fmt.Errorf("login response did not set any cookie")
				c.tel.ReportWarning(report_client_login_attempt, err, attempt.Ordinal)
				if c.opts.RequireLoginCookie {
					lastErr = fmt.Errorf("attempt %d: %w", attempt.Ordinal, err)
					attempt.Outcome = OutcomeFailed
					attempt.Session = c.Session.Snapshot()
					state = c.next(attempt)
					continue
				}
			}
			state = stateEvaluate

		case stateEvaluate:
			attempt.Outcome = c.evaluate(res)
			attempt.Session = c.Session.Snapshot()
			c.tel.ReportDebug(
				"login attempt evaluated",
				attempt.Ordinal,
				attempt.Outcome.String(),
				fmt.Sprintf("cookies=%d", len(attempt.Session)),
			)
			if attempt.Outcome == OutcomeSuccess {
				state = stateSuccess
				continue
			}
			lastErr = fmt.Errorf("attempt %d: %s", attempt.Ordinal, attempt.Outcome)
			state = c.next(attempt)

		case stateRetry:
			err := c.sleep(ctx, c.opts.RetryDelay)
			if err != nil {
				return Authenticated{}, &LoginFailedError{Reason: "cancelled", Err: err}
			}
			attempt = LoginAttempt{Ordinal: attempt.Ordinal + 1}
			state = stateAttempt

		case stateSuccess:
			return c.finishLogin(ctx, form, res)

		case stateExhausted:
			c.tel.ReportWarning(report_client_login, "attempts exhausted", attempt.Ordinal, lastErr)
			return Authenticated{}, &LoginFailedError{Reason: "attempts exhausted", Err: lastErr}
		}
	}
}

func (c *Client) next(attempt LoginAttempt) loginState {
	if attempt.Ordinal >= c.opts.MaxAttempts {
		return stateExhausted
	}
	return stateRetry
}

// finishLogin re-fetches the landing page, the portal may rotate the session id
// after login, and looks for the loan listing link on it.
func (c *Client) finishLogin(ctx context.Context, form loginForm, res page) (Authenticated, error) {
	landingUrl := res.Url
	if res.Url.String() == form.Action.String() {
		var err error
		landingPath := c.opts.LandingPath
		if landingPath == "" {
			landingPath = c.opts.EntryPath
		}
		landingUrl, err = c.resolve(landingPath)
		if err != nil {
			return Authenticated{}, &LoginFailedError{Reason: "invalid landing path", Err: err}
		}
	}

	landing, err := c.get(ctx, c.opts.Timeouts.Landing, landingUrl, res.Url)
	if err != nil {
		return Authenticated{}, &LoginFailedError{Reason: "fetch landing page", Err: err}
	}
	if hasLoginForm(landing.Doc) && !hasAuthenticatedMarkers(landing.Doc, c.opts.AuthenticatedSelectors, c.opts.AuthenticatedTexts) {
		return Authenticated{}, &LoginFailedError{Reason: "session was not retained after login"}
	}

	listingUrl, found := c.discoverListingUrl(landing)
	return Authenticated{
		Session:          c.Session,
		ListingUrl:       listingUrl,
		ListingLinkFound: found,
	}, nil
}
