package portal

import (
	"net/http"
	"net/url"
	"sort"
	"sync"
)

// Session is the cookie state of one run against the portal. It implements
// http.CookieJar so cookies set on intermediate redirect responses are captured
// as well. A cookie name maps to exactly one value, later values replace earlier
// ones and cookies are never removed for the lifetime of the session.
type Session struct {
	mutex      sync.Mutex
	baseUrl    *url.URL
	cookies    map[string]string
	generation uint64
}

func NewSession(baseUrl *url.URL) *Session {
	return &Session{
		baseUrl: baseUrl,
		cookies: map[string]string{},
	}
}

func (s *Session) BaseUrl() *url.URL {
	return s.baseUrl
}

func (s *Session) appliesTo(u *url.URL) bool {
	return u != nil && u.Hostname() == s.baseUrl.Hostname()
}

func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !s.appliesTo(u) || len(cookies) == 0 {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	applied := false
	for _, c := range cookies {
		// deletions are ignored, a session only grows
		if c.Name == "" || c.MaxAge < 0 {
			continue
		}
		s.cookies[c.Name] = c.Value
		applied = true
	}
	if applied {
		s.generation++
	}
}

func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	if !s.appliesTo(u) {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*http.Cookie, len(names))
	for i, name := range names {
		out[i] = &http.Cookie{Name: name, Value: s.cookies[name]}
	}
	return out
}

// Usable reports whether at least one cookie has been captured.
func (s *Session) Usable() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.cookies) > 0
}

// Generation increments every time a response sets at least one cookie, it lets
// callers tell whether a specific exchange set cookies.
func (s *Session) Generation() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.generation
}

// Snapshot returns a copy of the current cookies.
func (s *Session) Snapshot() map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}
