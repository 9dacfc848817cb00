package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/discuz"
)

const (
	CapErrZeroBalance       = "ERROR_ZERO_BALANCE"
	CapErrKeyDenied         = "ERROR_KEY_DENIED_ACCESS"
	CapErrTypeNotSupported  = "ERROR_TYPE_NOT_SUPPORTED"
	CapErrTaskNotFound      = "ERROR_TASK_NOT_FOUND"
	CapErrCaptchaUnsolvable = "ERROR_CAPTCHA_UNSOLVABLE"
)

const (
	TwoErrZeroBalance       = "ERROR_ZERO_BALANCE"
	TwoErrKeyDoesNotExist   = "ERROR_KEY_DOES_NOT_EXIST"
	TwoErrNoSlots           = "ERROR_NO_SLOT_AVAILABLE"
	TwoErrCaptchaUnsolvable = "ERROR_CAPTCHA_UNSOLVABLE"
	TwoErrImageTooBig       = "ERROR_TOO_BIG_CAPTCHA_FILESIZE"
)

const (
	imageToTextTask = "ImageToTextTask"
	// defaultSolveTimeout bounds one Recognize call including all polling.
	defaultSolveTimeout = 2 * time.Minute
)

var (
	// Fatal for the run: retrying cannot help.
	ErrZeroBalance     = fmt.Errorf("captcha solver zero balance: %w", discuz.ErrRecognizerUnavailable)
	ErrInvalidKey      = fmt.Errorf("captcha solver rejected api key: %w", discuz.ErrRecognizerUnavailable)
	ErrUnsupportedTask = fmt.Errorf("captcha solver does not support image tasks: %w", discuz.ErrRecognizerUnavailable)

	// Scoped to one image; the next seccode may succeed.
	ErrUnsolvable   = errors.New("captcha solver could not read the image")
	ErrNoCapacity   = errors.New("captcha solver has no free workers")
	ErrTaskNotFound = errors.New("captcha solver lost the task")
	ErrImageTooBig  = errors.New("captcha image too big for solver")
	ErrSolveTimeout = errors.New("captcha solver did not answer in time")

	ErrEmptyImage  = errors.New("captcha image is empty")
	ErrEmptyAnswer = errors.New("captcha recognizer returned empty text")
)

var capSolverErrors = map[string]error{
	CapErrZeroBalance:       ErrZeroBalance,
	CapErrKeyDenied:         ErrInvalidKey,
	CapErrTypeNotSupported:  ErrUnsupportedTask,
	CapErrTaskNotFound:      ErrTaskNotFound,
	CapErrCaptchaUnsolvable: ErrUnsolvable,
}

var twoCaptchaErrors = map[string]error{
	TwoErrZeroBalance:       ErrZeroBalance,
	TwoErrKeyDoesNotExist:   ErrInvalidKey,
	TwoErrNoSlots:           ErrNoCapacity,
	TwoErrCaptchaUnsolvable: ErrUnsolvable,
	TwoErrImageTooBig:       ErrImageTooBig,
}

// providerError maps a service error code onto one of the sentinels above,
// keeping the code and description for the log.
func providerError(known map[string]error, service, stage, code, description string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	msg := code
	if description != "" {
		msg += " - " + description
	}
	if sentinel, ok := known[code]; ok {
		return fmt.Errorf("%s %s: %w (%s)", service, stage, sentinel, msg)
	}
	return fmt.Errorf("%s %s error: %s", service, stage, msg)
}

// timeoutError reports ErrSolveTimeout when the per-call bound expired while
// the caller's own context is still live.
func timeoutError(parent, solveCtx context.Context, limit time.Duration, err error) error {
	if parent.Err() == nil && solveCtx.Err() != nil {
		return fmt.Errorf("%w after %s: %w", ErrSolveTimeout, limit, err)
	}
	return err
}
