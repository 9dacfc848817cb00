package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrMissingCredentials = errors.New("username and password are required (provide USERNAME and PASSWORD)")

const (
	OCRBackendServer     = "server"
	OCRBackendTwoCaptcha = "2captcha"
	OCRBackendCapSolver  = "capsolver"
	OCRBackendOpenAI     = "openai"
)

type Config struct {
	Username   string `env:"USERNAME"`
	Password   string `env:"PASSWORD"`
	QuestionID string `env:"QID" envDefault:"0"`
	Answer     string `env:"ANSWER"`

	BaseURL        string        `env:"GAMEMALE_BASE_URL" envDefault:"https://www.gamemale.com"`
	Proxy          string        `env:"HTTP_PROXY_URL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	CaptchaMaxAttempts  int           `env:"CAPTCHA_MAX_ATTEMPTS" envDefault:"10"`
	CaptchaAttemptDelay time.Duration `env:"CAPTCHA_ATTEMPT_DELAY" envDefault:"0s"`

	OCR OCRConfig

	SignLogPath  string `env:"SIGNLOG_PATH" envDefault:"data/gamemale.db"`
	SkipWhenDone bool   `env:"SKIP_WHEN_DONE" envDefault:"false"`

	Logger LoggerConfig `envPrefix:"LOG_"`
}

type OCRConfig struct {
	Backend          string `env:"OCR_BACKEND" envDefault:"server"`
	ServerURL        string `env:"OCR_SERVER_URL" envDefault:"http://127.0.0.1:9898/ocr/b64/text"`
	TwoCaptchaAPIKey string `env:"TWO_CAPTCHA_API_KEY"`
	CapSolverAPIKey  string `env:"CAPSOLVER_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

type LoggerConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"console"`
	File       string `env:"FILE" envDefault:"logs/app.log"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
}

// Load reads an optional .env file (envFile, or ./.env when empty) and parses
// the process environment.
func Load(envFile string) (Config, error) {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Println("No .env file found, using environment only")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// LoadFrom parses configuration from an explicit environment map and ignores
// the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Username = strings.TrimSpace(c.Username)
	c.QuestionID = strings.TrimSpace(c.QuestionID)
	if c.QuestionID == "" {
		c.QuestionID = "0"
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.OCR.Backend = strings.ToLower(strings.TrimSpace(c.OCR.Backend))
	c.OCR.TwoCaptchaAPIKey = strings.TrimSpace(c.OCR.TwoCaptchaAPIKey)
	c.OCR.CapSolverAPIKey = strings.TrimSpace(c.OCR.CapSolverAPIKey)
	c.OCR.OpenAIAPIKey = strings.TrimSpace(c.OCR.OpenAIAPIKey)
}

func (c Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid GAMEMALE_BASE_URL %q", c.BaseURL)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("GAMEMALE_BASE_URL must use https, got %q", u.Scheme)
	}

	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("invalid HTTP_PROXY_URL: %w", err)
		}
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.CaptchaMaxAttempts <= 0 {
		return errors.New("CAPTCHA_MAX_ATTEMPTS must be positive")
	}
	if c.CaptchaAttemptDelay < 0 {
		return errors.New("CAPTCHA_ATTEMPT_DELAY must not be negative")
	}

	switch c.OCR.Backend {
	case OCRBackendServer:
		if strings.TrimSpace(c.OCR.ServerURL) == "" {
			return errors.New("OCR_SERVER_URL required for the server OCR backend")
		}
	case OCRBackendTwoCaptcha:
		if c.OCR.TwoCaptchaAPIKey == "" {
			return errors.New("TWO_CAPTCHA_API_KEY required for the 2captcha OCR backend")
		}
	case OCRBackendCapSolver:
		if c.OCR.CapSolverAPIKey == "" {
			return errors.New("CAPSOLVER_API_KEY required for the capsolver OCR backend")
		}
	case OCRBackendOpenAI:
		if c.OCR.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY required for the openai OCR backend")
		}
	default:
		return fmt.Errorf("unknown OCR_BACKEND %q", c.OCR.Backend)
	}
	return nil
}
