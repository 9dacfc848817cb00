package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/app"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/discuz"
)

const (
	exitOK = iota
	exitConfig
	exitLogin
	exitRuntime
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrInvalidConfig):
		return exitConfig
	case discuz.IsLoginFailure(err):
		return exitLogin
	default:
		return exitRuntime
	}
}
