package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/ohmynofan/gamemale-checkin-bot/pkg/utils"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
	defaultTimeout   = 30 * time.Second
	maxLoggedBody    = 2048
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Status)
}

type FetchOptions struct {
	Method            string
	Form              url.Values
	RawBody           []byte
	AdditionalHeaders map[string]string
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

func (r *Response) JSON(out interface{}) error {
	if r == nil {
		return fmt.Errorf("nil response")
	}
	return json.Unmarshal(r.Body, out)
}

type Options struct {
	Proxy     string
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// APIClient is the run's transport. Its in-memory cookie jar is the forum
// session; nothing is written to disk.
type APIClient struct {
	Proxy      string
	UserAgent  string
	HTTPClient *http.Client
	Log        *zap.Logger
}

func NewAPIClient(opts Options) (*APIClient, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cookie jar: %w", err)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &APIClient{
		Proxy:     opts.Proxy,
		UserAgent: opts.UserAgent,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			Jar:       jar,
		},
		Log: opts.Logger,
	}, nil
}

// HasCookies reports whether the jar holds any cookie for rawURL.
func (c *APIClient) HasCookies(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || c.HTTPClient.Jar == nil {
		return false
	}
	return len(c.HTTPClient.Jar.Cookies(u)) > 0
}

// Close releases idle keep-alive connections held by the transport.
func (c *APIClient) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *APIClient) generateHeaders() map[string]string {
	return map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"User-Agent":      c.UserAgent,
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	}
}

func (c *APIClient) Fetch(ctx context.Context, endpoint string, opts *FetchOptions) (*Response, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}

	if opts.Method == "" {
		opts.Method = http.MethodGet
		if opts.Form != nil {
			opts.Method = http.MethodPost
		}
	}

	if opts.RawBody != nil && opts.Form != nil {
		return nil, fmt.Errorf("cannot specify both Form and RawBody")
	}

	var (
		reqBody     io.Reader
		contentType string
	)
	switch {
	case opts.Form != nil:
		reqBody = strings.NewReader(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case opts.RawBody != nil:
		reqBody = bytes.NewReader(opts.RawBody)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.generateHeaders() {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range opts.AdditionalHeaders {
		req.Header.Set(key, value)
	}

	fields := []zap.Field{zap.String("method", opts.Method), zap.String("url", endpoint)}
	if opts.Form != nil {
		fields = append(fields, zap.Strings("form_keys", formKeys(opts.Form)))
	}
	c.Log.Debug("request", fields...)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.Log.Debug("response",
		zap.String("url", endpoint),
		zap.Int("status", res.StatusCode),
		zap.String("body", truncateBody(res.Header.Get("Content-Type"), resBodyBytes)),
	)

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return &Response{
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       resBodyBytes,
		}, nil
	}

	return nil, &HTTPError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       resBodyBytes,
	}
}

// formKeys lists submitted field names only; values may hold credentials.
func formKeys(form url.Values) []string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	return keys
}

func truncateBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, "image/") {
		return fmt.Sprintf("<%d bytes of %s>", len(body), contentType)
	}
	return utils.TruncateForLog(utils.BeautifyJSON(body), maxLoggedBody)
}
