package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/cli"
	"github.com/cafebazaar/bundlesigner/internal/models"
)

func main() {
	// Setup logging format
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Cancel the run (and any external tool invocation) on interruption;
	// workspace cleanup runs on every exit path inside the commands.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the documented exit code contract. Untyped
// errors only come out of cobra's own flag and argument parsing, which makes
// them parameter errors.
func exitCode(err error) int {
	var terr *models.ToolError
	if errors.As(err, &terr) {
		return terr.Type.ExitCode()
	}
	return models.ErrParameter.ExitCode()
}
