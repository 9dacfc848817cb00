package model

// Credentials are supplied once per run and never change.
type Credentials struct {
	Username   string
	Password   string
	QuestionID string
	Answer     string
}

// Session is the display state of one run, rendered by the terminal UI.
type Session struct {
	RunID         string
	Site          string
	Username      string
	LoginStatus   string
	CheckinStatus string
	LotteryStatus string
	Results       []ActionResult
}

func (s *Session) Record(result ActionResult) {
	if s == nil {
		return
	}
	s.Results = append(s.Results, result)
	switch result.Action {
	case ActionCheckin:
		s.CheckinStatus = string(result.Status)
	case ActionLottery:
		s.LotteryStatus = string(result.Status)
	}
}
