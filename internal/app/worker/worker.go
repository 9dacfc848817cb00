package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/config"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/discuz"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/platform/ui"
)

const (
	statusWaiting    = "WAITING"
	statusInProgress = "IN PROGRESS"
	statusDone       = "DONE"
	statusDegraded   = "DONE (no formhash)"
	statusFailed     = "FAILED"
	statusSkipped    = "SKIPPED"
)

var dailyActions = []model.Action{model.ActionCheckin, model.ActionLottery}

// ResultStore persists the day's action outcomes. *signlog.Store satisfies it.
type ResultStore interface {
	Record(ctx context.Context, username string, day time.Time, result model.ActionResult) error
	AllDone(ctx context.Context, username string, day time.Time, actions ...model.Action) (bool, error)
}

// Deps is everything one run needs. Store may be nil.
type Deps struct {
	Config     config.Config
	Transport  discuz.Transport
	Recognizer discuz.Recognizer
	Store      ResultStore
	RunID      string
	Now        func() time.Time
}

// Summary is what a finished run reports back to the caller.
type Summary struct {
	RunID      string
	Username   string
	LoginState discuz.State
	Day        time.Time
	Skipped    bool
	Results    []model.ActionResult
}

type Worker struct {
	session *model.Session
	deps    Deps
	log     *zap.Logger
}

// handleError logs a run-ending failure and marks the UI. Login failures and
// cancellation are reported as such; anything else is unexpected.
func handleError(worker *Worker, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		worker.log.Warn("run interrupted", zap.Error(err))
		worker.finish(false, "Interrupted")
	case errors.Is(err, discuz.ErrRecognizerUnavailable):
		worker.log.Error("FATAL: captcha service unusable, check OCR backend balance and key", zap.Error(err))
		worker.finish(false, "Captcha service unusable")
	case discuz.IsLoginFailure(err):
		worker.log.Error("FATAL: login failed, no actions attempted", zap.Error(err))
		worker.finish(false, "Login failed")
	default:
		worker.log.Error("FATAL: run aborted", zap.Error(err))
		worker.finish(false, "Run aborted")
	}
	return err
}

// Run performs one complete pass for the configured account: optional skip
// check, login, daily actions and result recording.
func Run(ctx context.Context, deps Deps) (*Summary, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg := deps.Config
	site := cfg.Site()

	session := model.Session{
		RunID:         deps.RunID,
		Site:          site.Name,
		Username:      cfg.Username,
		LoginStatus:   statusWaiting,
		CheckinStatus: statusWaiting,
		LotteryStatus: statusWaiting,
	}
	worker := &Worker{
		session: &session,
		deps:    deps,
		log:     logger.Named("worker").With(zap.String("run_id", deps.RunID), zap.String("user", cfg.Username)),
	}
	summary := &Summary{RunID: deps.RunID, Username: cfg.Username, LoginState: discuz.StateStart}

	ui.UpdateStatus(session, "Starting")
	day := deps.Now()
	summary.Day = day

	if skip, err := worker.alreadyDone(ctx, day); err != nil {
		worker.log.Warn("could not read sign log, continuing", zap.Error(err))
	} else if skip {
		worker.log.Info("check-in and lottery already recorded for today, skipping")
		session.LoginStatus = statusSkipped
		session.CheckinStatus = string(model.StatusAlreadyDone)
		session.LotteryStatus = string(model.StatusAlreadyDone)
		worker.finish(true, "Already done today")
		summary.Skipped = true
		return summary, nil
	}

	endpoints := discuz.NewEndpoints(site.BaseURL)
	solver := discuz.NewCaptchaSolver(deps.Transport, deps.Recognizer, endpoints, discuz.SolverOptions{
		MaxAttempts:  cfg.CaptchaMaxAttempts,
		AttemptDelay: cfg.CaptchaAttemptDelay,
	}, logger.Named("seccode").With(zap.String("run_id", deps.RunID)))
	negotiator := discuz.NewNegotiator(deps.Transport, solver, endpoints, model.Credentials{
		Username:   cfg.Username,
		Password:   cfg.Password,
		QuestionID: cfg.QuestionID,
		Answer:     cfg.Answer,
	}, logger.Named("login").With(zap.String("run_id", deps.RunID)))

	worker.setLoginStatus(statusInProgress, "Solving seccode and logging in")
	forumSession, err := negotiator.Login(ctx)
	summary.LoginState = negotiator.State()
	if err != nil {
		worker.setLoginStatus(statusFailed, err.Error())
		return summary, handleError(worker, fmt.Errorf("login as %s: %w", cfg.Username, err))
	}

	if !forumSession.Authenticated() {
		worker.setLoginStatus(statusDegraded, "Logged in without formhash, actions skipped")
		worker.finish(true, "Logged in, actions unavailable")
		return summary, nil
	}
	worker.setLoginStatus(statusDone, "Running check-in and lottery")

	runner := discuz.NewRunner(site.Name, logger.Named("actions").With(zap.String("run_id", deps.RunID)))
	summary.Results = runner.Run(ctx, forumSession)

	for _, result := range summary.Results {
		session.Record(result)
		worker.recordResult(ctx, day, result)
	}
	if err := ctx.Err(); err != nil {
		return summary, handleError(worker, err)
	}

	worker.finish(true, "Completed")
	worker.log.Info("run finished",
		zap.Stringer("login", summary.LoginState),
		zap.String("checkin", session.CheckinStatus),
		zap.String("lottery", session.LotteryStatus),
	)
	return summary, nil
}

func (w *Worker) alreadyDone(ctx context.Context, day time.Time) (bool, error) {
	if !w.deps.Config.SkipWhenDone || w.deps.Store == nil {
		return false, nil
	}
	return w.deps.Store.AllDone(ctx, w.session.Username, day, dailyActions...)
}

func (w *Worker) recordResult(ctx context.Context, day time.Time, result model.ActionResult) {
	if w.deps.Store == nil {
		return
	}
	if err := w.deps.Store.Record(ctx, w.session.Username, day, result); err != nil {
		w.log.Warn("failed to write sign log", zap.String("action", string(result.Action)), zap.Error(err))
	}
}

func (w *Worker) setLoginStatus(status, message string) {
	w.session.LoginStatus = status
	ui.UpdateStatus(*w.session, message)
}

func (w *Worker) finish(ok bool, message string) {
	if ok {
		ui.SetSpinnerSuccess(*w.session, message)
		return
	}
	ui.SetSpinnerError(*w.session, message)
}
