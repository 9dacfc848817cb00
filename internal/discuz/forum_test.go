package discuz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	adhttp "github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/http"
)

const (
	routeUpdate  = "seccode-update"
	routeImage   = "seccode-image"
	routeCheck   = "seccode-check"
	routeLogin   = "login-page"
	routeSubmit  = "login-submit"
	routeForum   = "forum"
	routeCheckin = "checkin"
	routeLottery = "lottery"

	testFormhash  = "f0rmh4sh"
	testLoginhash = "Lh9Xq"
	testPostToken = "p0stt0ken"
	testUpdate    = "73311"
)

const loginPageHTML = `<html><body>
<div id="main_messaqge_` + testLoginhash + `">
<form method="post">
<input type="hidden" name="formhash" value="` + testFormhash + `" />
</form></div></body></html>`

const forumPageHTML = `<html><body><form>
<input type="hidden" name="formhash" value="` + testPostToken + `" />
</form></body></html>`

// fakeForum imitates the handful of Discuz endpoints the bot talks to and
// records the order in which they were hit.
type fakeForum struct {
	srv *httptest.Server

	mu    sync.Mutex
	calls []string

	// acceptFrom is the 1-based check call from which answers are accepted; 0 never.
	acceptFrom   int
	omitUpdate   bool
	emptyImage   bool
	loginPage    string
	loginAccepts bool
	forumPage    string
	forumStatus  int
	checkinBody  string
	checkinCode  int
	lotteryBody  string

	submitted     url.Values
	submitQuery   url.Values
	verifyAnswers []string
	imageHeaders  http.Header
	actionTokens  []string
}

func newFakeForum(t *testing.T) *fakeForum {
	t.Helper()
	f := &fakeForum{
		acceptFrom:   1,
		loginPage:    loginPageHTML,
		loginAccepts: true,
		forumPage:    forumPageHTML,
		forumStatus:  http.StatusOK,
		checkinBody:  `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[签到成功！获得奖励]]></root>`,
		checkinCode:  http.StatusOK,
		lotteryBody:  `{"tipname":"ok","tipvalue":"10 金币"}`,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeForum) hit(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, route)
	n := 0
	for _, c := range f.calls {
		if c == route {
			n++
		}
	}
	return n
}

func (f *fakeForum) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == route {
			n++
		}
	}
	return n
}

func (f *fakeForum) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeForum) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case r.URL.Path == "/misc.php" && q.Get("action") == "update":
		f.hit(routeUpdate)
		if f.omitUpdate {
			_, _ = fmt.Fprint(w, "if($('seccode_cSA')) {}")
			return
		}
		_, _ = fmt.Fprintf(w, `$('seccode_cSA').innerHTML = '<img src="misc.php?mod=seccode&update=%s&idhash=cSA" />';`, testUpdate)

	case r.URL.Path == "/misc.php" && q.Get("action") == "check":
		n := f.hit(routeCheck)
		f.mu.Lock()
		f.verifyAnswers = append(f.verifyAnswers, q.Get("secverify"))
		f.mu.Unlock()
		if f.acceptFrom > 0 && n >= f.acceptFrom {
			_, _ = fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[succeed]]></root>`)
			return
		}
		_, _ = fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[invalid]]></root>`)

	case r.URL.Path == "/misc.php" && q.Get("update") != "":
		f.hit(routeImage)
		f.mu.Lock()
		f.imageHeaders = r.Header.Clone()
		f.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		if !f.emptyImage {
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nseccode"))
		}

	case r.URL.Path == "/member.php" && q.Get("loginsubmit") == "yes":
		f.hit(routeSubmit)
		_ = r.ParseForm()
		f.mu.Lock()
		f.submitted = r.PostForm
		f.submitQuery = q
		f.mu.Unlock()
		if !f.loginAccepts {
			_, _ = fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[登录失败，您还可以尝试 4 次]]></root>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "auth", Value: "1", Path: "/"})
		_, _ = fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><root><![CDATA[<script>succeedhandle_login('/', '欢迎您回来', {});</script>]]></root>`)

	case r.URL.Path == "/member.php":
		f.hit(routeLogin)
		_, _ = fmt.Fprint(w, f.loginPage)

	case r.URL.Path == "/forum.php":
		f.hit(routeForum)
		if _, err := r.Cookie("auth"); err != nil {
			_, _ = fmt.Fprint(w, "<html>guest</html>")
			return
		}
		w.WriteHeader(f.forumStatus)
		_, _ = fmt.Fprint(w, f.forumPage)

	case r.URL.Path == "/k_misign-sign.html":
		f.hit(routeCheckin)
		f.mu.Lock()
		f.actionTokens = append(f.actionTokens, q.Get("formhash"))
		f.mu.Unlock()
		w.WriteHeader(f.checkinCode)
		_, _ = fmt.Fprint(w, f.checkinBody)

	case r.URL.Path == "/plugin.php":
		f.hit(routeLottery)
		f.mu.Lock()
		f.actionTokens = append(f.actionTokens, q.Get("formhash"))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, f.lotteryBody)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeForum) endpoints() Endpoints {
	return NewEndpoints(f.srv.URL)
}

func newTestTransport(t *testing.T) *adhttp.APIClient {
	t.Helper()
	client, err := adhttp.NewAPIClient(adhttp.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type stubRecognizer struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
}

func (s *stubRecognizer) Recognize(_ context.Context, image []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	return s.answer, s.err
}

func (s *stubRecognizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
