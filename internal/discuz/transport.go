package discuz

import (
	"context"

	adhttp "github.com/ohmynofan/gamemale-checkin-bot/internal/adapters/http"
)

// Transport performs HTTP requests inside one cookie-bearing session. Every
// request of a run must go through the same Transport.
type Transport interface {
	Fetch(ctx context.Context, endpoint string, opts *adhttp.FetchOptions) (*adhttp.Response, error)
}

// Recognizer reads the text out of a captcha image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}
