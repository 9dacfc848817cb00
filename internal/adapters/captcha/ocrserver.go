package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OCRServer talks to a self-hosted ddddocr HTTP service. The image is posted
// base64-encoded; the service answers either with the bare text or with a
// {"status":200,"result":"..."} envelope.
type OCRServer struct {
	client   *http.Client
	endpoint string
}

func NewOCRServer(endpoint string) *OCRServer {
	return &OCRServer{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: strings.TrimSpace(endpoint),
	}
}

type ocrEnvelope struct {
	Status int    `json:"status"`
	Result string `json:"result"`
	Msg    string `json:"msg"`
}

func (o *OCRServer) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	body := strings.NewReader(base64.StdEncoding.EncodeToString(image))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("ocr server request build error: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	res, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr server http error: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("ocr server read error: %w", err)
	}
	if res.StatusCode >= 400 {
		return "", fmt.Errorf("ocr server status %s body=%s", res.Status, strings.TrimSpace(string(resBody)))
	}

	text := strings.TrimSpace(string(resBody))
	if strings.HasPrefix(text, "{") {
		var env ocrEnvelope
		if err := json.Unmarshal(resBody, &env); err != nil {
			return "", fmt.Errorf("ocr server decode error: %w", err)
		}
		if env.Status != 0 && env.Status != http.StatusOK {
			return "", fmt.Errorf("ocr server error %d: %s", env.Status, env.Msg)
		}
		text = strings.TrimSpace(env.Result)
	}
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

func (o *OCRServer) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
