package portal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

const publicPage = `<html><head><title>市立図書館</title></head><body>
<a href="/login">ログイン</a>
<a href="/search">蔵書検索</a>
</body></html>`

const loginFormPage = `<html><head><title>利用者ログイン</title></head><body>
<form method="post" action="auth/submit" name="loginForm">
	<input type="hidden" name="token" value="tok-123">
	<input type="hidden" name="history" value="h1">
	<label>利用者番号 <input type="text" name="userid"></label>
	<label>パスワード <input type="PASSWORD" name="passwd"></label>
	<input type="submit" name="btnLogin" value="ログイン">
</form>
</body></html>`

const landingPage = `<html><head><title>マイページ</title></head><body>
<div class="account-menu">
	<a href="/mypage/reserve">予約状況</a>
	<a href="/mypage/lending?mode=list">貸出状況一覧</a>
	<a href="/logout">ログアウト</a>
</div>
</body></html>`

const landingPageNoLink = `<html><head><title>マイページ</title></head><body>
<a href="/mypage/reserve">予約状況</a>
<a href="/logout">ログアウト</a>
</body></html>`

const listingPage = `<html><head><title>貸出状況一覧</title></head><body>
<table class="list">
	<tr><th>No</th><th>タイトル</th><th>著者</th><th>貸出日</th><th>返却予定日</th></tr>
	<tr><td>1</td><td><strong>吾輩は猫である</strong></td><td>夏目漱石</td><td>2024/05/21</td><td class="due">2024/06/04</td></tr>
</table>
<p>30分間操作がない場合はタイムアウトします。</p>
</body></html>`

const emptyListingPage = `<html><head><title>貸出状況一覧</title></head><body>
<table class="list">
	<tr><th>No</th><th>タイトル</th><th>返却予定日</th></tr>
</table>
<p>現在借りている資料はありません。</p>
<p>30分間操作がない場合はタイムアウトします。</p>
</body></html>`

const timeoutPage = `<html><head><title>エラー</title></head><body>
<p>セッションが切れました。もう一度ログインしてください。</p>
</body></html>`

// loginResponse is how the fake portal answers one credential submission.
type loginResponse struct {
	cookie   *http.Cookie
	html     string
	redirect string
	delay    time.Duration
}

type fakePortal struct {
	server *httptest.Server

	mutex          sync.Mutex
	loginResponses []loginResponse
	posts          []url.Values
	postHeaders    []http.Header
	requests       []string
	landingHtml    string
	landingCookie  *http.Cookie
	listingHtml    string
	listingStatus  int
}

func newFakePortal(t *testing.T, responses ...loginResponse) *fakePortal {
	f := &fakePortal{
		loginResponses: responses,
		landingHtml:    landingPage,
		listingHtml:    listingPage,
		listingStatus:  http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if _, err := r.Cookie("JSESSIONID"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "anon", Path: "/"})
		}
		fmt.Fprint(w, publicPage)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		fmt.Fprint(w, loginFormPage)
	})
	mux.HandleFunc("/auth/submit", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mutex.Lock()
		idx := len(f.posts)
		f.posts = append(f.posts, r.PostForm)
		f.postHeaders = append(f.postHeaders, r.Header.Clone())
		var res loginResponse
		if idx < len(f.loginResponses) {
			res = f.loginResponses[idx]
		} else {
			res = loginResponse{html: loginFormPage}
		}
		f.mutex.Unlock()

		if res.delay > 0 {
			select {
			case <-time.After(res.delay):
			case <-r.Context().Done():
				return
			}
		}
		if res.cookie != nil {
			http.SetCookie(w, res.cookie)
		}
		if res.redirect != "" {
			http.Redirect(w, r, res.redirect, http.StatusFound)
			return
		}
		fmt.Fprint(w, res.html)
	})
	mux.HandleFunc("/mypage/top", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mutex.Lock()
		cookie := f.landingCookie
		html := f.landingHtml
		f.mutex.Unlock()
		if cookie != nil {
			http.SetCookie(w, cookie)
		}
		fmt.Fprint(w, html)
	})
	mux.HandleFunc("/mypage/lending", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mutex.Lock()
		status := f.listingStatus
		html := f.listingHtml
		f.mutex.Unlock()
		w.WriteHeader(status)
		fmt.Fprint(w, html)
	})
	mux.HandleFunc("/mypage/lending/frame", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		fmt.Fprint(w, `<html><head><meta http-equiv="Refresh" content="0; URL='/mypage/lending'"></head><body>移動中...</body></html>`)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePortal) record(r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	cookies := []string{}
	for _, c := range r.Cookies() {
		cookies = append(cookies, c.Name+"="+c.Value)
	}
	f.requests = append(f.requests, fmt.Sprintf("%s %s [%s]", r.Method, r.URL.Path, strings.Join(cookies, ";")))
}

func (f *fakePortal) Requests() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakePortal) Posts() []url.Values {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]url.Values(nil), f.posts...)
}

func testOptions(baseUrl string) Options {
	opts := DefaultOptions(baseUrl)
	opts.RetryDelay = time.Millisecond
	opts.RequestsPerSecond = 0
	opts.BrowserTransport = false
	return opts
}
