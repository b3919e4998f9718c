package main

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/martout2002/JBbot/internal/model"
)

type stubRunner struct {
	calls int
}

func (s *stubRunner) RunCycle(context.Context) *model.CycleReport {
	s.calls++
	return &model.CycleReport{ID: "cycle"}
}

func TestHandler_RunsOneCycle(t *testing.T) {
	runner := &stubRunner{}
	h := newHandler(runner)

	report, err := h(context.Background(), events.CloudWatchEvent{ID: "ev-1", Source: "aws.events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("RunCycle called %d times, want 1", runner.calls)
	}
	if report == nil || report.ID != "cycle" {
		t.Errorf("unexpected report %+v", report)
	}
}
