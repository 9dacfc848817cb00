package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	capsolverBaseURL    = "https://api.capsolver.com"
	capsolverCreateTask = "/createTask"
	capsolverGetResult  = "/getTaskResult"
	capsolverModule     = "common"
	defaultPollDelay    = 2 * time.Second
)

// CapSolver recognizes image captchas through CapSolver's ImageToTextTask.
// The task is usually answered synchronously by createTask; polling covers
// the queued case.
type CapSolver struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	solveTimeout time.Duration
}

func NewCapSolver(apiKey string) *CapSolver {
	return &CapSolver{
		client:       &http.Client{Timeout: 30 * time.Second},
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      capsolverBaseURL,
		pollInterval: defaultPollDelay,
		solveTimeout: defaultSolveTimeout,
	}
}

type capCreateTaskReq struct {
	ClientKey string      `json:"clientKey"`
	Task      interface{} `json:"task"`
}

type capImageTask struct {
	Type   string `json:"type"`
	Body   string `json:"body"`
	Module string `json:"module,omitempty"`
}

type capSolution struct {
	Text string `json:"text"`
}

type capCreateTaskResp struct {
	ErrorID          int         `json:"errorId"`
	ErrorCode        string      `json:"errorCode"`
	ErrorDescription string      `json:"errorDescription"`
	TaskID           string      `json:"taskId"`
	Status           string      `json:"status"`
	Solution         capSolution `json:"solution"`
}

type capResultReq struct {
	ClientKey string `json:"clientKey"`
	TaskID    string `json:"taskId"`
}

type capResultResp struct {
	ErrorID          int         `json:"errorId"`
	ErrorCode        string      `json:"errorCode"`
	ErrorDescription string      `json:"errorDescription"`
	Status           string      `json:"status"`
	Solution         capSolution `json:"solution"`
}

// Recognize submits the image and, when it is queued, polls until it is read,
// the service reports an error, or solveTimeout elapses.
func (c *CapSolver) Recognize(ctx context.Context, image []byte) (string, error) {
	solveCtx, cancel := context.WithTimeout(ctx, c.solveTimeout)
	defer cancel()

	text, err := c.recognize(solveCtx, image)
	if err != nil {
		return "", timeoutError(ctx, solveCtx, c.solveTimeout, err)
	}
	return text, nil
}

func (c *CapSolver) recognize(ctx context.Context, image []byte) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("capsolver api key not provided")
	}
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	createPayload := capCreateTaskReq{
		ClientKey: c.apiKey,
		Task: capImageTask{
			Type:   imageToTextTask,
			Body:   base64.StdEncoding.EncodeToString(image),
			Module: capsolverModule,
		},
	}
	var createResp capCreateTaskResp
	if err := c.postJSON(ctx, capsolverCreateTask, createPayload, &createResp); err != nil {
		return "", err
	}
	if createResp.ErrorID != 0 || createResp.ErrorCode != "" {
		return "", providerError(capSolverErrors, "capsolver", "createTask", createResp.ErrorCode, createResp.ErrorDescription)
	}
	if isReady(createResp.Status) {
		return solutionText(createResp.Solution)
	}
	if strings.TrimSpace(createResp.TaskID) == "" {
		return "", errors.New("capsolver returned empty task id")
	}

	for {
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return "", err
		}
		var result capResultResp
		if err := c.postJSON(ctx, capsolverGetResult, capResultReq{ClientKey: c.apiKey, TaskID: createResp.TaskID}, &result); err != nil {
			return "", err
		}
		if result.ErrorID != 0 || result.ErrorCode != "" {
			return "", providerError(capSolverErrors, "capsolver", "getTaskResult", result.ErrorCode, result.ErrorDescription)
		}
		switch {
		case isReady(result.Status):
			return solutionText(result.Solution)
		case strings.EqualFold(result.Status, "processing"), strings.EqualFold(result.Status, "idle"):
			continue
		default:
			return "", fmt.Errorf("unexpected capsolver status: %s", result.Status)
		}
	}
}

func (c *CapSolver) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func isReady(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return s == "ready" || s == "completed"
}

func solutionText(s capSolution) (string, error) {
	text := strings.TrimSpace(s.Text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

func (c *CapSolver) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s", c.baseURL, path)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("capsolver encode error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("capsolver request build error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("capsolver http error: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("capsolver read error: %w", err)
	}

	if res.StatusCode >= 400 {
		return fmt.Errorf("capsolver status %s body=%s", res.Status, strings.TrimSpace(string(resBody)))
	}

	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("capsolver decode error: %w", err)
	}
	return nil
}
