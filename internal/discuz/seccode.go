package discuz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	adhttp "github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/http"
)

const (
	seccodeAccepted = "succeed"
	imageAccept     = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
)

var errAnswerRejected = errors.New("seccode answer rejected")

type SolverOptions struct {
	MaxAttempts  int
	AttemptDelay time.Duration
}

// CaptchaSolver obtains a seccode answer the server has already verified.
type CaptchaSolver struct {
	transport   Transport
	recognizer  Recognizer
	endpoints   Endpoints
	maxAttempts int
	delay       time.Duration
	log         *zap.Logger
}

func NewCaptchaSolver(transport Transport, recognizer Recognizer, endpoints Endpoints, opts SolverOptions, log *zap.Logger) *CaptchaSolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CaptchaSolver{
		transport:   transport,
		recognizer:  recognizer,
		endpoints:   endpoints,
		maxAttempts: opts.MaxAttempts,
		delay:       opts.AttemptDelay,
		log:         log,
	}
}

// Solve runs update, fetch, recognize and check until the server accepts an
// answer or the attempt bound is reached. Per-attempt failures are logged and
// retried; cancellation of ctx or an unavailable recognizer stops the loop early.
func (s *CaptchaSolver) Solve(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		answer, err := s.attempt(ctx)
		if err == nil {
			s.log.Info("seccode accepted", zap.Int("attempt", attempt))
			return answer, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, ErrRecognizerUnavailable) {
			return "", err
		}
		s.log.Warn("seccode attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max", s.maxAttempts),
			zap.Error(err),
		)

		if attempt < s.maxAttempts && s.delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCaptchaExhausted, s.maxAttempts)
}

func (s *CaptchaSolver) attempt(ctx context.Context) (string, error) {
	res, err := s.transport.Fetch(ctx, s.endpoints.SeccodeUpdate(), nil)
	if err != nil {
		return "", fmt.Errorf("update seccode: %w", err)
	}
	update, err := ExtractSeccodeUpdate(res.Text())
	if err != nil {
		return "", err
	}

	img, err := s.transport.Fetch(ctx, s.endpoints.SeccodeImage(update), &adhttp.FetchOptions{
		AdditionalHeaders: map[string]string{
			"Accept":  imageAccept,
			"Referer": s.endpoints.LoginPage(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("fetch seccode image: %w", err)
	}
	if len(img.Body) == 0 {
		return "", errors.New("empty seccode image")
	}

	answer, err := s.recognizer.Recognize(ctx, img.Body)
	if err != nil {
		return "", fmt.Errorf("recognize seccode: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("recognizer returned no text")
	}
	s.log.Debug("seccode recognized", zap.String("update", update), zap.String("answer", answer))

	check, err := s.transport.Fetch(ctx, s.endpoints.SeccodeCheck(answer), nil)
	if err != nil {
		return "", fmt.Errorf("check seccode: %w", err)
	}
	if !strings.Contains(check.Text(), seccodeAccepted) {
		return "", fmt.Errorf("%w: %q", errAnswerRejected, answer)
	}
	return answer, nil
}
