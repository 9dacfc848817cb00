package discuz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/gamemale-checkin-bot/pkg/utils"
)

const (
	checkinSucceeded = "签到成功"
	checkinDone      = "已签"
	lotteryWon       = "ok"

	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// Runner performs the daily authenticated actions against one site.
type Runner struct {
	site string
	log  *zap.Logger
}

func NewRunner(site string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{site: site, log: log}
}

// Run issues check-in then lottery, each once. It returns nil without any
// request when the session carries no post-login formhash.
func (r *Runner) Run(ctx context.Context, session *Session) []model.ActionResult {
	if !session.Authenticated() {
		r.log.Warn("not authenticated, skipping actions")
		return nil
	}
	results := []model.ActionResult{
		r.checkin(ctx, session),
		r.lottery(ctx, session),
	}
	for _, res := range results {
		r.log.Info("action finished",
			zap.String("action", string(res.Action)),
			zap.String("status", string(res.Status)),
			zap.String("detail", res.Detail),
		)
	}
	return results
}

func (r *Runner) checkin(ctx context.Context, s *Session) model.ActionResult {
	result := model.ActionResult{Site: r.site, Action: model.ActionCheckin}

	res, err := s.transport.Fetch(ctx, s.endpoints.Checkin(s.postLoginToken), nil)
	if err != nil {
		r.log.Error("check-in request failed", zap.Error(fmt.Errorf("%w: %w", ErrActionRequestFailed, err)))
		result.Status = model.StatusRequestFailed
		return result
	}

	message := UnwrapCDATA(res.Text())
	result.Status = ClassifyCheckin(message)
	if result.Status == model.StatusUnknown {
		result.Detail = utils.TruncateForLog(strings.TrimSpace(message), 200)
	}
	return result
}

func (r *Runner) lottery(ctx context.Context, s *Session) model.ActionResult {
	result := model.ActionResult{Site: r.site, Action: model.ActionLottery}

	res, err := s.transport.Fetch(ctx, s.endpoints.Lottery(s.postLoginToken), nil)
	if err != nil {
		r.log.Error("lottery request failed", zap.Error(fmt.Errorf("%w: %w", ErrActionRequestFailed, err)))
		result.Status = model.StatusRequestFailed
		return result
	}

	status, detail, err := ClassifyLottery(res.Body)
	if err != nil {
		r.log.Error("lottery response unreadable", zap.Error(err))
	}
	result.Status = status
	result.Detail = detail
	return result
}

// UnwrapCDATA returns the CDATA payload of an ajax XML envelope, or the input
// unchanged when it is not one.
func UnwrapCDATA(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "<?xml") {
		return body
	}
	start := strings.Index(trimmed, cdataOpen)
	if start < 0 {
		return body
	}
	inner := trimmed[start+len(cdataOpen):]
	if end := strings.LastIndex(inner, cdataClose); end >= 0 {
		inner = inner[:end]
	}
	return inner
}

func ClassifyCheckin(message string) model.Status {
	switch {
	case strings.Contains(message, checkinSucceeded):
		return model.StatusSuccess
	case strings.Contains(message, checkinDone):
		return model.StatusAlreadyDone
	default:
		return model.StatusUnknown
	}
}

// ClassifyLottery maps the award plugin's JSON reply to a status. The detail is
// the prize on success and the raw payload when the shape is not recognised.
// Invalid JSON yields StatusRequestFailed and an error wrapping
// ErrActionRequestFailed.
func ClassifyLottery(body []byte) (model.Status, string, error) {
	if !json.Valid(body) {
		return model.StatusRequestFailed, "", fmt.Errorf("%w: invalid lottery json", ErrActionRequestFailed)
	}
	raw := utils.TruncateForLog(strings.TrimSpace(string(body)), 200)

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.StatusUnknown, raw, nil
	}
	var tipname string
	field, ok := payload["tipname"]
	if !ok || string(field) == "null" || json.Unmarshal(field, &tipname) != nil {
		return model.StatusUnknown, raw, nil
	}

	switch tipname {
	case "":
		return model.StatusAlreadyDone, "", nil
	case lotteryWon:
		var prize string
		if err := json.Unmarshal(payload["tipvalue"], &prize); err != nil {
			prize = strings.TrimSpace(string(payload["tipvalue"]))
		}
		return model.StatusSuccess, prize, nil
	default:
		return model.StatusUnknown, raw, nil
	}
}
