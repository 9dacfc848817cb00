package discuz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	adhttp "github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/gamemale-checkin-bot/pkg/utils"
)

const loginAccepted = "succeed"

type State int

const (
	StateStart State = iota
	StateCaptchaPending
	StateTokenPending
	StateSubmitting
	StateAuthenticated
	StateRejected
	StatePostTokenFetched
	StatePostTokenMissing
	StateFailed
)

var stateNames = map[State]string{
	StateStart:            "start",
	StateCaptchaPending:   "captcha pending",
	StateTokenPending:     "token pending",
	StateSubmitting:       "submitting",
	StateAuthenticated:    "authenticated",
	StateRejected:         "rejected",
	StatePostTokenFetched: "post token fetched",
	StatePostTokenMissing: "post token missing",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Succeeded reports whether the state is one of the two terminal-success states.
func (s State) Succeeded() bool {
	return s == StatePostTokenFetched || s == StatePostTokenMissing
}

var transitions = map[State][]State{
	StateStart:          {StateCaptchaPending},
	StateCaptchaPending: {StateTokenPending, StateFailed},
	StateTokenPending:   {StateSubmitting, StateFailed},
	StateSubmitting:     {StateAuthenticated, StateRejected, StateFailed},
	StateAuthenticated:  {StatePostTokenFetched, StatePostTokenMissing},
}

type loginForm struct {
	Formhash      string `url:"formhash"`
	Referer       string `url:"referer"`
	LoginField    string `url:"loginfield"`
	Username      string `url:"username"`
	Password      string `url:"password"`
	QuestionID    string `url:"questionid"`
	Answer        string `url:"answer,omitempty"`
	CookieTime    int    `url:"cookietime"`
	SeccodeHash   string `url:"seccodehash"`
	SeccodeModID  string `url:"seccodemodid"`
	SeccodeVerify string `url:"seccodeverify"`
}

// Session is an authenticated conversation with the forum. The post-login
// formhash is only ever set by a Negotiator after the server accepted the login.
type Session struct {
	transport      Transport
	endpoints      Endpoints
	postLoginToken string
}

func (s *Session) PostLoginToken() string {
	if s == nil {
		return ""
	}
	return s.postLoginToken
}

// Authenticated reports whether authenticated actions may be issued.
func (s *Session) Authenticated() bool {
	return s != nil && s.postLoginToken != ""
}

// Negotiator drives one login transaction. It is single use.
type Negotiator struct {
	transport Transport
	solver    *CaptchaSolver
	endpoints Endpoints
	creds     model.Credentials
	state     State
	log       *zap.Logger
}

func NewNegotiator(transport Transport, solver *CaptchaSolver, endpoints Endpoints, creds model.Credentials, log *zap.Logger) *Negotiator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Negotiator{
		transport: transport,
		solver:    solver,
		endpoints: endpoints,
		creds:     creds,
		state:     StateStart,
		log:       log,
	}
}

func (n *Negotiator) State() State {
	return n.state
}

func (n *Negotiator) advance(to State) {
	for _, allowed := range transitions[n.state] {
		if allowed == to {
			n.log.Debug("login state", zap.Stringer("from", n.state), zap.Stringer("to", to))
			n.state = to
			return
		}
	}
	panic(fmt.Sprintf("discuz: illegal login transition %s -> %s", n.state, to))
}

func (n *Negotiator) fail(err error) (*Session, error) {
	if n.state != StateFailed {
		n.advance(StateFailed)
	}
	return nil, err
}

// Login solves the seccode, submits credentials and fetches the post-login
// formhash. A missing post-login formhash is logged and returns a session
// that is not Authenticated, with a nil error.
func (n *Negotiator) Login(ctx context.Context) (*Session, error) {
	if n.state != StateStart {
		return nil, ErrAlreadyNegotiated
	}
	n.advance(StateCaptchaPending)

	answer, err := n.solver.Solve(ctx)
	if err != nil {
		return n.fail(fmt.Errorf("solve seccode: %w", err))
	}
	n.advance(StateTokenPending)

	page, err := n.transport.Fetch(ctx, n.endpoints.LoginPage(), nil)
	if err != nil {
		return n.fail(fmt.Errorf("fetch login page: %w", err))
	}
	tokens, err := ExtractLoginTokens(page.Text())
	if err != nil {
		return n.fail(fmt.Errorf("login page: %w", err))
	}
	n.advance(StateSubmitting)

	form, err := utils.EncodeURLParams(loginForm{
		Formhash:      tokens.Formhash,
		Referer:       n.endpoints.Referer(),
		LoginField:    n.creds.Username,
		Username:      n.creds.Username,
		Password:      n.creds.Password,
		QuestionID:    n.creds.QuestionID,
		Answer:        n.creds.Answer,
		CookieTime:    cookieTime,
		SeccodeHash:   seccodeIDHash,
		SeccodeModID:  seccodeModID,
		SeccodeVerify: answer,
	})
	if err != nil {
		return n.fail(err)
	}

	res, err := n.transport.Fetch(ctx, n.endpoints.LoginSubmit(tokens.Loginhash), &adhttp.FetchOptions{Form: form})
	if err != nil {
		return n.fail(fmt.Errorf("submit login: %w", err))
	}
	if !strings.Contains(res.Text(), loginAccepted) {
		n.advance(StateRejected)
		n.log.Error("login rejected",
			zap.String("user", n.creds.Username),
			zap.String("response", utils.TruncateForLog(res.Text(), 200)),
		)
		return nil, ErrLoginRejected
	}
	n.advance(StateAuthenticated)
	n.log.Info("login succeeded", zap.String("user", n.creds.Username))

	session := &Session{transport: n.transport, endpoints: n.endpoints}
	token, err := n.fetchPostLoginToken(ctx)
	if err != nil {
		n.advance(StatePostTokenMissing)
		n.log.Warn("authenticated actions disabled", zap.Error(err))
		return session, nil
	}
	session.postLoginToken = token
	n.advance(StatePostTokenFetched)
	return session, nil
}

func (n *Negotiator) fetchPostLoginToken(ctx context.Context) (string, error) {
	res, err := n.transport.Fetch(ctx, n.endpoints.Forum(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPostTokenMissing, err)
	}
	token, err := ExtractFormhash(res.Text())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPostTokenMissing, err)
	}
	return token, nil
}

// IsLoginFailure reports whether err ended a run at the login stage.
func IsLoginFailure(err error) bool {
	return errors.Is(err, ErrCaptchaExhausted) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrLoginRejected)
}
