package discuz

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
)

var testCreds = model.Credentials{Username: "alice", Password: "s3cret", QuestionID: "0"}

func newNegotiator(t *testing.T, f *fakeForum, attempts int, log *zap.Logger) *Negotiator {
	transport := newTestTransport(t)
	solver := NewCaptchaSolver(transport, &stubRecognizer{answer: "k7pq"}, f.endpoints(), SolverOptions{MaxAttempts: attempts}, log)
	return NewNegotiator(transport, solver, f.endpoints(), testCreds, log)
}

func TestLoginHappyPath(t *testing.T) {
	f := newFakeForum(t)
	n := newNegotiator(t, f, 3, nil)

	session, err := n.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.True(t, session.Authenticated())
	assert.Equal(t, testPostToken, session.PostLoginToken())
	assert.Equal(t, StatePostTokenFetched, n.State())
	assert.True(t, n.State().Succeeded())

	assert.Equal(t, []string{routeUpdate, routeImage, routeCheck, routeLogin, routeSubmit, routeForum}, f.sequence())

	assert.Equal(t, testLoginhash, f.submitQuery.Get("loginhash"))
	assert.Equal(t, "1", f.submitQuery.Get("inajax"))

	form := f.submitted
	assert.Equal(t, testFormhash, form.Get("formhash"))
	assert.Equal(t, f.srv.URL+"/", form.Get("referer"))
	assert.Equal(t, "alice", form.Get("loginfield"))
	assert.Equal(t, "alice", form.Get("username"))
	assert.Equal(t, "s3cret", form.Get("password"))
	assert.Equal(t, "0", form.Get("questionid"))
	assert.Equal(t, "2592000", form.Get("cookietime"))
	assert.Equal(t, "cSA", form.Get("seccodehash"))
	assert.Equal(t, "member::logging", form.Get("seccodemodid"))
	assert.Equal(t, "k7pq", form.Get("seccodeverify"))
	_, hasAnswer := form["answer"]
	assert.False(t, hasAnswer, "empty security answer must be omitted")
}

func TestLoginSendsSecurityAnswer(t *testing.T) {
	f := newFakeForum(t)
	transport := newTestTransport(t)
	creds := model.Credentials{Username: "bob", Password: "pw", QuestionID: "3", Answer: "blue"}
	solver := NewCaptchaSolver(transport, &stubRecognizer{answer: "k7pq"}, f.endpoints(), SolverOptions{MaxAttempts: 1}, nil)

	_, err := NewNegotiator(transport, solver, f.endpoints(), creds, nil).Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", f.submitted.Get("questionid"))
	assert.Equal(t, "blue", f.submitted.Get("answer"))
}

func TestLoginCaptchaExhaustedStopsBeforeLoginPage(t *testing.T) {
	f := newFakeForum(t)
	f.acceptFrom = 0
	n := newNegotiator(t, f, 3, nil)

	session, err := n.Login(context.Background())
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrCaptchaExhausted)
	assert.True(t, IsLoginFailure(err))
	assert.Equal(t, StateFailed, n.State())

	assert.Equal(t, 3, f.count(routeCheck))
	assert.Zero(t, f.count(routeLogin))
	assert.Zero(t, f.count(routeSubmit))
	assert.Zero(t, f.count(routeForum))
}

func TestLoginStopsWhenRecognizerUnavailable(t *testing.T) {
	f := newFakeForum(t)
	transport := newTestTransport(t)
	rec := &stubRecognizer{err: fmt.Errorf("zero balance: %w", ErrRecognizerUnavailable)}
	solver := NewCaptchaSolver(transport, rec, f.endpoints(), SolverOptions{MaxAttempts: 10}, nil)
	n := NewNegotiator(transport, solver, f.endpoints(), testCreds, nil)

	_, err := n.Login(context.Background())
	assert.ErrorIs(t, err, ErrRecognizerUnavailable)
	assert.False(t, IsLoginFailure(err))
	assert.Equal(t, StateFailed, n.State())
	assert.Equal(t, 1, rec.callCount())
	assert.Zero(t, f.count(routeLogin))
}

func TestLoginPageWithoutTokensIsFatal(t *testing.T) {
	f := newFakeForum(t)
	f.loginPage = "<html>maintenance</html>"
	n := newNegotiator(t, f, 1, nil)

	_, err := n.Login(context.Background())
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.True(t, IsLoginFailure(err))
	assert.Equal(t, StateFailed, n.State())
	assert.Zero(t, f.count(routeSubmit))
}

func TestLoginRejectedNeverFetchesForum(t *testing.T) {
	f := newFakeForum(t)
	f.loginAccepts = false
	n := newNegotiator(t, f, 1, nil)

	session, err := n.Login(context.Background())
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrLoginRejected)
	assert.Equal(t, StateRejected, n.State())
	assert.Equal(t, 1, f.count(routeSubmit))
	assert.Zero(t, f.count(routeForum))
}

func TestLoginPostTokenMissingDegrades(t *testing.T) {
	cases := map[string]func(f *fakeForum){
		"no formhash on page": func(f *fakeForum) { f.forumPage = "<html>welcome</html>" },
		"forum page errors":   func(f *fakeForum) { f.forumStatus = http.StatusServiceUnavailable },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFakeForum(t)
			mutate(f)

			core, logs := observer.New(zapcore.WarnLevel)
			n := newNegotiator(t, f, 1, zap.New(core))

			session, err := n.Login(context.Background())
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.False(t, session.Authenticated())
			assert.Empty(t, session.PostLoginToken())
			assert.Equal(t, StatePostTokenMissing, n.State())
			assert.True(t, n.State().Succeeded())

			warned := logs.FilterMessage("authenticated actions disabled").All()
			require.Len(t, warned, 1)
			assert.Contains(t, warned[0].ContextMap()["error"], ErrPostTokenMissing.Error())
		})
	}
}

func TestLoginIsSingleUse(t *testing.T) {
	f := newFakeForum(t)
	n := newNegotiator(t, f, 1, nil)

	_, err := n.Login(context.Background())
	require.NoError(t, err)

	_, err = n.Login(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyNegotiated)
	assert.Equal(t, 1, f.count(routeSubmit))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "captcha pending", StateCaptchaPending.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.False(t, StateRejected.Succeeded())
}
