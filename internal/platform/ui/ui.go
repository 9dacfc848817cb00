package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
)

var (
	multi   *pterm.MultiPrinter
	spinner *pterm.SpinnerPrinter
	mu      sync.Mutex
)

func StartUISystem() {
	mu.Lock()
	defer mu.Unlock()
	m, _ := pterm.DefaultMultiPrinter.Start()
	multi = m
}

func StopUISystem() {
	mu.Lock()
	defer mu.Unlock()
	if multi != nil {
		_, _ = multi.Stop()
		multi = nil
	}
	spinner = nil
}

func UpdateStatus(session model.Session, status string) {
	mu.Lock()
	defer mu.Unlock()
	updateStatus(session, status)
}

func updateStatus(session model.Session, status string) {
	content := renderStatus(session, status)

	if spinner != nil {
		spinner.UpdateText(content)
		return
	}
	printer := pterm.DefaultSpinner.WithRemoveWhenDone(false)
	if multi != nil {
		printer = printer.WithWriter(multi.NewWriter())
	}
	spinner, _ = printer.Start(content)
}

func SetSpinnerSuccess(session model.Session, finalMessage string) {
	mu.Lock()
	defer mu.Unlock()
	if spinner != nil {
		updateStatus(session, finalMessage)
		spinner.Success()
		spinner = nil
	}
}

func SetSpinnerError(session model.Session, finalMessage string) {
	mu.Lock()
	defer mu.Unlock()
	if spinner != nil {
		updateStatus(session, finalMessage)
		spinner.Fail()
		spinner = nil
	}
}

func renderStatus(session model.Session, status string) string {
	return fmt.Sprintf(`
=============== %s ================
Account  : %s
Run      : %s

Login    : %s
Check-in : %s
Lottery  : %s

Status   : %s
===========================================`,
		defaultString(session.Site, "Forum"),
		session.Username,
		session.RunID,
		defaultString(session.LoginStatus, "WAITING"),
		defaultString(session.CheckinStatus, "WAITING"),
		defaultString(session.LotteryStatus, "WAITING"),
		status)
}

// PrintSummary renders one row per action result. Nothing is printed when
// no action ran.
func PrintSummary(results []model.ActionResult) error {
	if len(results) == 0 {
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(summaryRows(results)).Render()
}

func summaryRows(results []model.ActionResult) pterm.TableData {
	rows := pterm.TableData{{"Site", "Action", "Status", "Detail"}}
	for _, r := range results {
		rows = append(rows, []string{r.Site, string(r.Action), string(r.Status), defaultString(r.Detail, "-")})
	}
	return rows
}

func defaultString(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
