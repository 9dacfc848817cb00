package model

type Status string

const (
	StatusSuccess       Status = "success"
	StatusAlreadyDone   Status = "already done today"
	StatusUnknown       Status = "unknown"
	StatusRequestFailed Status = "request failed"
)

// Done reports whether the action needs no further attempt today.
func (s Status) Done() bool {
	return s == StatusSuccess || s == StatusAlreadyDone
}

type Action string

const (
	ActionCheckin Action = "checkin"
	ActionLottery Action = "lottery"
)

// ActionResult is the outcome of one authenticated action in one run. Detail
// carries the prize for a won lottery or the raw payload when unclassified.
type ActionResult struct {
	Site   string `json:"site"`
	Action Action `json:"action"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}
