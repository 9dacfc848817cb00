package captcha

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	visionPrompt       = "This image is a forum login captcha. Reply with the characters shown in it and nothing else."
)

// OpenAIVision reads the captcha with a vision-capable chat model.
type OpenAIVision struct {
	client openai.Client
	model  string
}

type OpenAIOption func(*OpenAIVision)

func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAIVision) {
		if strings.TrimSpace(model) != "" {
			o.model = model
		}
	}
}

// WithOpenAIBaseURL points the client at a compatible endpoint.
func WithOpenAIBaseURL(baseURL string, apiKey string, httpClient *http.Client) OpenAIOption {
	return func(o *OpenAIVision) {
		opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)}
		if httpClient != nil {
			opts = append(opts, option.WithHTTPClient(httpClient))
		}
		o.client = openai.NewClient(opts...)
	}
}

func NewOpenAIVision(apiKey string, opts ...OpenAIOption) (*OpenAIVision, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key not provided")
	}
	o := &OpenAIVision{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *OpenAIVision) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSolveTimeout)
	defer cancel()

	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(visionPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}

	text := cleanAnswer(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

func (o *OpenAIVision) Close() error { return nil }

// cleanAnswer keeps letters and digits only; chat models like to add quotes
// and punctuation around the answer.
func cleanAnswer(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
