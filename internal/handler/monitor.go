package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/martout2002/JBbot/internal/model"
	"github.com/martout2002/JBbot/internal/service/monitor"
)

type monitorService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	LastReport() *model.CycleReport
}

type subscriberCounter interface {
	Count(ctx context.Context) (int, error)
}

type MonitorHandler struct {
	monitor     monitorService
	subscribers subscriberCounter
}

func NewMonitorHandler(mon monitorService, subscribers subscriberCounter) *MonitorHandler {
	return &MonitorHandler{monitor: mon, subscribers: subscribers}
}

func (h *MonitorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/monitor/status", h.Status)
	r.Post("/monitor/start", h.Start)
	r.Post("/monitor/stop", h.Stop)
}

type monitorStatus struct {
	IsRunning   bool               `json:"is_running"`
	Subscribers int                `json:"subscribers"`
	LastReport  *model.CycleReport `json:"last_report"`
}

func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.subscribers.Count(r.Context())
	if err != nil {
		slog.Error("failed to count subscribers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get monitor status")
		return
	}
	writeJSON(w, http.StatusOK, monitorStatus{
		IsRunning:   h.monitor.IsRunning(),
		Subscribers: count,
		LastReport:  h.monitor.LastReport(),
	})
}

func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Start(r.Context()); err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "monitor is already running")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start monitor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Monitor started"})
}

func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Stop(r.Context()); err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			writeError(w, http.StatusConflict, "monitor is not running")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to stop monitor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Monitor stopped"})
}
