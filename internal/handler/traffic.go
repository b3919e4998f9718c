package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/martout2002/JBbot/internal/model"
)

type cycleRunner interface {
	RunCycle(ctx context.Context) *model.CycleReport
}

type checkpointStateStore interface {
	LoadAll(ctx context.Context) (map[string]string, error)
}

type TrafficHandler struct {
	cycles cycleRunner
	states checkpointStateStore
}

func NewTrafficHandler(cycles cycleRunner, states checkpointStateStore) *TrafficHandler {
	return &TrafficHandler{cycles: cycles, states: states}
}

func (h *TrafficHandler) RegisterRoutes(r chi.Router) {
	r.Get("/check", h.Check)
	r.Get("/checkpoints", h.Checkpoints)
}

// Check runs one poll cycle, notifying subscribers of any change, and
// returns its report. Meant for external schedulers. The cycle runs to
// completion even if the client goes away.
func (h *TrafficHandler) Check(w http.ResponseWriter, r *http.Request) {
	report := h.cycles.RunCycle(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Traffic check completed",
		"report": report,
	})
}

type checkpointState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Checkpoints lists the last stored status of every checkpoint.
func (h *TrafficHandler) Checkpoints(w http.ResponseWriter, r *http.Request) {
	states, err := h.states.LoadAll(r.Context())
	if err != nil {
		slog.Error("failed to load checkpoint states", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load checkpoint states")
		return
	}

	list := make([]checkpointState, 0, len(states))
	for name, status := range states {
		list = append(list, checkpointState{Name: name, Status: status})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": list})
}
