// Command lambda runs a single poll cycle per invocation, for deployments
// where a scheduler such as EventBridge drives the polling.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/martout2002/JBbot/internal/app"
	"github.com/martout2002/JBbot/internal/config"
	"github.com/martout2002/JBbot/internal/model"
)

type cycleRunner interface {
	RunCycle(ctx context.Context) *model.CycleReport
}

func newHandler(runner cycleRunner) func(ctx context.Context, ev events.CloudWatchEvent) (*model.CycleReport, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (*model.CycleReport, error) {
		slog.Info("scheduled traffic check", "event_id", ev.ID, "source", ev.Source)
		return runner.RunCycle(ctx), nil
	}
}

func main() {
	slog.SetDefault(app.NewLogger(slog.LevelInfo))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(cfg.LogLevel))

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	lambda.Start(newHandler(a.Monitor))
}
