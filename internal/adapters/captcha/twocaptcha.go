package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	twoCaptchaBaseURL = "https://api.2captcha.com"
	createTaskPath    = "/createTask"
	getResultPath     = "/getTaskResult"
	defaultPollWait   = 5 * time.Second
)

// TwoCaptcha recognizes image captchas through 2Captcha's ImageToTextTask.
type TwoCaptcha struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	waitInterval time.Duration
	solveTimeout time.Duration
}

func NewTwoCaptcha(apiKey string) *TwoCaptcha {
	return &TwoCaptcha{
		client:       &http.Client{Timeout: 30 * time.Second},
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      twoCaptchaBaseURL,
		waitInterval: defaultPollWait,
		solveTimeout: defaultSolveTimeout,
	}
}

type createTaskRequest struct {
	ClientKey string      `json:"clientKey"`
	Task      interface{} `json:"task"`
}

type imageTask struct {
	Type string `json:"type"`
	Body string `json:"body"`
	Case bool   `json:"case,omitempty"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	TaskID           int64  `json:"taskId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

type resultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type getResultResponse struct {
	ErrorID  int    `json:"errorId"`
	Status   string `json:"status"`
	Solution struct {
		Text string `json:"text"`
	} `json:"solution"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

// Recognize submits the image and polls until it is read, the service reports
// an error, or solveTimeout elapses.
func (tc *TwoCaptcha) Recognize(ctx context.Context, image []byte) (string, error) {
	solveCtx, cancel := context.WithTimeout(ctx, tc.solveTimeout)
	defer cancel()

	text, err := tc.recognize(solveCtx, image)
	if err != nil {
		return "", timeoutError(ctx, solveCtx, tc.solveTimeout, err)
	}
	return text, nil
}

func (tc *TwoCaptcha) recognize(ctx context.Context, image []byte) (string, error) {
	if tc.apiKey == "" {
		return "", errors.New("2captcha api key not provided")
	}
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	createPayload := createTaskRequest{
		ClientKey: tc.apiKey,
		Task: imageTask{
			Type: imageToTextTask,
			Body: base64.StdEncoding.EncodeToString(image),
		},
	}
	var createResp createTaskResponse
	if err := tc.postJSON(ctx, createTaskPath, createPayload, &createResp); err != nil {
		return "", err
	}
	if createResp.ErrorID != 0 {
		return "", providerError(twoCaptchaErrors, "2captcha", "createTask", createResp.ErrorCode, createResp.ErrorDescription)
	}

	for {
		if err := sleepCtx(ctx, tc.waitInterval); err != nil {
			return "", err
		}

		var result getResultResponse
		req := resultRequest{ClientKey: tc.apiKey, TaskID: createResp.TaskID}
		if err := tc.postJSON(ctx, getResultPath, req, &result); err != nil {
			return "", err
		}

		if result.ErrorID != 0 {
			return "", providerError(twoCaptchaErrors, "2captcha", "getTaskResult", result.ErrorCode, result.ErrorDescription)
		}

		switch strings.ToLower(result.Status) {
		case "processing":
			continue
		case "ready":
			text := strings.TrimSpace(result.Solution.Text)
			if text == "" {
				return "", ErrEmptyAnswer
			}
			return text, nil
		default:
			return "", fmt.Errorf("unexpected 2captcha status: %s", result.Status)
		}
	}
}

func (tc *TwoCaptcha) Close() error {
	tc.client.CloseIdleConnections()
	return nil
}

func (tc *TwoCaptcha) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s", tc.baseURL, path)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("2captcha http error: %s", res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
