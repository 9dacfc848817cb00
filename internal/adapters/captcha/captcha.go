package captcha

import (
	"context"
	"fmt"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/config"
)

// Recognizer turns a captcha image into its text. Implementations give no
// accuracy guarantee.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
	Close() error
}

// New builds the recognizer selected by OCR_BACKEND.
func New(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Backend {
	case config.OCRBackendServer, "":
		return NewOCRServer(cfg.ServerURL), nil
	case config.OCRBackendTwoCaptcha:
		return NewTwoCaptcha(cfg.TwoCaptchaAPIKey), nil
	case config.OCRBackendCapSolver:
		return NewCapSolver(cfg.CapSolverAPIKey), nil
	case config.OCRBackendOpenAI:
		return NewOpenAIVision(cfg.OpenAIAPIKey, WithOpenAIModel(cfg.OpenAIModel))
	default:
		return nil, fmt.Errorf("unsupported ocr backend: %s", cfg.Backend)
	}
}
