package discuz

import "errors"

var (
	// ErrTokenNotFound: an expected anchor is absent from a page.
	ErrTokenNotFound = errors.New("token not found")
	// ErrCaptchaExhausted: no seccode answer was accepted within the attempt bound.
	ErrCaptchaExhausted = errors.New("captcha attempts exhausted")
	// ErrLoginRejected: the login submission did not report success.
	ErrLoginRejected = errors.New("login rejected")
	// ErrPostTokenMissing: login succeeded but the forum page had no formhash.
	ErrPostTokenMissing = errors.New("post-login formhash missing")
	// ErrActionRequestFailed: a check-in or lottery request failed in transport or parsing.
	ErrActionRequestFailed = errors.New("action request failed")
	// ErrRecognizerUnavailable: the OCR backend cannot serve any further attempt
	// (no balance, rejected key, unsupported task). Recognizer errors wrap it.
	ErrRecognizerUnavailable = errors.New("captcha recognizer unavailable")
	// ErrAlreadyNegotiated: Login was called twice on one negotiator.
	ErrAlreadyNegotiated = errors.New("login already negotiated")
)
