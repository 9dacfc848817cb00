package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/captcha"
	adhttp "github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/app/worker"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/config"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/discuz"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/storage/signlog"
)

// ErrInvalidConfig wraps every configuration problem found before the run starts.
var ErrInvalidConfig = errors.New("invalid configuration")

type App struct {
	cfg        config.Config
	transport  discuz.Transport
	recognizer captcha.Recognizer
}

type Option func(*App)

// WithTransport replaces the HTTP client built from the configuration.
func WithTransport(t discuz.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithRecognizer replaces the OCR backend built from the configuration.
func WithRecognizer(r captcha.Recognizer) Option {
	return func(a *App) { a.recognizer = r }
}

func New(cfg config.Config, opts ...Option) *App {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run validates the configuration, acquires the run's resources and performs
// one worker pass. Nothing touches the network when validation fails.
func (app *App) Run(ctx context.Context) (*worker.Summary, error) {
	if err := app.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	runID := uuid.NewString()
	log := logger.Named("app").With(zap.String("run_id", runID))

	transport := app.transport
	if transport == nil {
		client, err := adhttp.NewAPIClient(adhttp.Options{
			Proxy:   app.cfg.Proxy,
			Timeout: app.cfg.RequestTimeout,
			Logger:  logger.Named("http"),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		defer client.Close()
		transport = client
	}

	recognizer := app.recognizer
	if recognizer == nil {
		r, err := captcha.New(app.cfg.OCR)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		recognizer = r
	}
	defer recognizer.Close()

	deps := worker.Deps{
		Config:     app.cfg,
		Transport:  transport,
		Recognizer: recognizer,
		RunID:      runID,
	}

	if app.cfg.SignLogPath != "" {
		store, err := signlog.NewStore(app.cfg.SignLogPath)
		if err != nil {
			log.Warn("sign log unavailable, results will not be persisted", zap.Error(err))
		} else {
			defer store.Close()
			deps.Store = store
		}
	}

	log.Info("starting run",
		zap.String("site", app.cfg.Site().BaseURL),
		zap.String("user", app.cfg.Username),
		zap.String("ocr", app.cfg.OCR.Backend),
	)
	return worker.Run(ctx, deps)
}
