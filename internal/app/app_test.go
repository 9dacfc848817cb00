package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adhttp "github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/config"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/discuz"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/storage/signlog"
)

type countingRecognizer struct {
	calls  atomic.Int32
	closed atomic.Bool
}

func (c *countingRecognizer) Recognize(context.Context, []byte) (string, error) {
	c.calls.Add(1)
	return "abcd", nil
}

func (c *countingRecognizer) Close() error {
	c.closed.Store(true)
	return nil
}

func newForum(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		switch {
		case r.URL.Path == "/misc.php" && q.Get("action") == "update":
			_, _ = fmt.Fprint(w, "update=55&idhash=cSA")
		case r.URL.Path == "/misc.php" && q.Get("action") == "check":
			_, _ = fmt.Fprint(w, "succeed")
		case r.URL.Path == "/misc.php":
			_, _ = w.Write([]byte("\x89PNG"))
		case r.URL.Path == "/member.php" && q.Get("loginsubmit") == "yes":
			http.SetCookie(w, &http.Cookie{Name: "auth", Value: "1", Path: "/"})
			_, _ = fmt.Fprint(w, "succeedhandle_login")
		case r.URL.Path == "/member.php":
			_, _ = fmt.Fprint(w, `<div id="main_messaqge_LH"><input type="hidden" name="formhash" value="FH" /></div>`)
		case r.URL.Path == "/forum.php":
			if _, err := r.Cookie("auth"); err != nil {
				_, _ = fmt.Fprint(w, "guest")
				return
			}
			_, _ = fmt.Fprint(w, `<input type="hidden" name="formhash" value="POST" />`)
		case r.URL.Path == "/k_misign-sign.html":
			_, _ = fmt.Fprint(w, `<?xml version="1.0"?><root><![CDATA[您今天已签到]]></root>`)
		case r.URL.Path == "/plugin.php":
			_, _ = fmt.Fprint(w, `{"tipname":"ok","tipvalue":"1 金币"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func tlsClient(t *testing.T, srv *httptest.Server) *adhttp.APIClient {
	t.Helper()
	client, err := adhttp.NewAPIClient(adhttp.Options{})
	require.NoError(t, err)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client.HTTPClient = srv.Client()
	client.HTTPClient.Jar = jar
	return client
}

func TestRunWithoutCredentialsMakesNoRequests(t *testing.T) {
	var hits atomic.Int32
	srv := newForum(t, &hits)

	cfg, err := config.LoadFrom(map[string]string{"GAMEMALE_BASE_URL": srv.URL, "PASSWORD": "pw"})
	require.NoError(t, err)

	rec := &countingRecognizer{}
	_, err = New(cfg, WithTransport(tlsClient(t, srv)), WithRecognizer(rec)).Run(context.Background())

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Zero(t, hits.Load())
	assert.Zero(t, rec.calls.Load())
}

func TestRunEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := newForum(t, &hits)
	dbPath := filepath.Join(t.TempDir(), "sign.db")

	cfg, err := config.LoadFrom(map[string]string{
		"USERNAME":          "alice",
		"PASSWORD":          "pw",
		"GAMEMALE_BASE_URL": srv.URL,
		"SIGNLOG_PATH":      dbPath,
	})
	require.NoError(t, err)

	rec := &countingRecognizer{}
	summary, err := New(cfg, WithTransport(tlsClient(t, srv)), WithRecognizer(rec)).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, discuz.StatePostTokenFetched, summary.LoginState)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, model.StatusAlreadyDone, summary.Results[0].Status)
	assert.Equal(t, model.StatusSuccess, summary.Results[1].Status)
	assert.EqualValues(t, 1, rec.calls.Load())
	assert.True(t, rec.closed.Load())

	store, err := signlog.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()
	done, err := store.AllDone(context.Background(), "alice", summary.Day, model.ActionCheckin, model.ActionLottery)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRunRejectsPlainHTTP(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"USERNAME": "a", "PASSWORD": "b", "GAMEMALE_BASE_URL": "http://example.com"})
	require.NoError(t, err)

	_, err = New(cfg, WithRecognizer(&countingRecognizer{})).Run(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
