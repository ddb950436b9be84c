package portal

import (
	"net/url"
	"strings"

	"libreminder/pkg/htmlutil"
	"libreminder/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
)

func inputType(sel *goquery.Selection) string {
	t := strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "text")))
	if t == "" {
		return "text"
	}
	return t
}

// loginForm is what has to be echoed back to the portal to log in.
type loginForm struct {
	// Page is the url the form was found on, it is sent as the referer.
	Page   *url.URL
	Action *url.URL
	Hidden url.Values

	IdentifierField string
	SecretField     string
}

func passwordInputs(sel *goquery.Selection) *goquery.Selection {
	return sel.Find("input").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return inputType(s) == "password"
	})
}

// hasLoginForm reports whether the document contains a form asking for a password.
func hasLoginForm(doc *goquery.Document) bool {
	return passwordInputs(doc.Find("form")).Length() > 0
}

// findLoginForm locates the form containing a password input and collects everything
// needed to submit it. The action may be relative, it is resolved against pageUrl.
func findLoginForm(doc *goquery.Document, pageUrl *url.URL, fallbackIdentifier, fallbackSecret string) (loginForm, bool) {
	var form *goquery.Selection
	doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if passwordInputs(s).Length() > 0 {
			form = s
			return false
		}
		return true
	})
	if form == nil {
		return loginForm{}, false
	}

	action := pageUrl
	if raw := strings.TrimSpace(form.AttrOr("action", "")); raw != "" {
		parsed, err := url.Parse(raw)
		if err == nil {
			action = pageUrl.ResolveReference(parsed)
		}
	}

	result := loginForm{
		Page:            pageUrl,
		Action:          action,
		Hidden:          url.Values{},
		IdentifierField: fallbackIdentifier,
		SecretField:     fallbackSecret,
	}

	identifierFound := false
	form.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		switch inputType(s) {
		case "hidden":
			result.Hidden.Add(name, s.AttrOr("value", ""))
		case "password":
			result.SecretField = name
		case "text", "tel", "number", "email":
			if !identifierFound {
				result.IdentifierField = name
				identifierFound = true
			}
		}
	})

	// browsers send the name/value of the submit control that was clicked, some
	// portals dispatch on it
	form.Find("input[type=submit][name], input[type=image][name], button[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Is("button") {
			t := strings.ToLower(s.AttrOr("type", "submit"))
			if t != "submit" {
				return true
			}
		}
		name := s.AttrOr("name", "")
		if name == "" {
			return true
		}
		result.Hidden.Set(name, s.AttrOr("value", ""))
		return false
	})

	return result, true
}

// values builds the form body, hidden fields are echoed verbatim.
func (f loginForm) values(creds Credentials) url.Values {
	out := url.Values{}
	for k, v := range f.Hidden {
		out[k] = append([]string(nil), v...)
	}
	out.Set(f.IdentifierField, creds.Identifier())
	out.Set(f.SecretField, creds.Secret())
	return out
}

// hasAuthenticatedMarkers reports whether the page shows something only a logged in
// patron can see. authenticatedTexts must already be normalized.
func hasAuthenticatedMarkers(doc *goquery.Document, selectors, authenticatedTexts []string) bool {
	for _, selector := range selectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}

	found := false
	doc.Find("a, button, input[type=submit]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := htmlutil.SelectionText(s)
		if s.Is("input") {
			text = s.AttrOr("value", "")
		}
		if textutil.MatchName(text, authenticatedTexts) {
			found = true
			return false
		}
		return true
	})
	return found
}
