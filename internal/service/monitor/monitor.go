package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/martout2002/JBbot/internal/model"
	"github.com/martout2002/JBbot/internal/service/notifier"
	"github.com/martout2002/JBbot/internal/service/ocr"
)

// persistTimeout bounds the status write that ends each checkpoint's
// processing. The write is detached from the cycle context so a cancellation
// after a broadcast cannot leave the notified change unrecorded.
const persistTimeout = 10 * time.Second

var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
)

type imageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type textExtractor interface {
	ExtractDetailed(ctx context.Context, data []byte, cp model.Checkpoint) (ocr.Result, error)
}

type stateStore interface {
	LoadAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, checkpoint, status string) error
}

type broadcaster interface {
	Broadcast(ctx context.Context, checkpoint, status string) notifier.BroadcastResult
}

type changePublisher interface {
	PublishChange(ctx context.Context, ev model.ChangeEvent) error
}

type Monitor struct {
	checkpoints []model.Checkpoint
	fetcher     imageFetcher
	extractor   textExtractor
	state       stateStore
	notifier    broadcaster
	events      changePublisher
	interval    time.Duration

	// cycleMu keeps poll cycles from overlapping when the timer and an
	// external trigger fire together.
	cycleMu sync.Mutex

	mu         sync.Mutex
	cancel     context.CancelFunc
	lastReport *model.CycleReport
}

func New(
	checkpoints []model.Checkpoint,
	fetcher imageFetcher,
	extractor textExtractor,
	state stateStore,
	n broadcaster,
	interval time.Duration,
) *Monitor {
	return &Monitor{
		checkpoints: checkpoints,
		fetcher:     fetcher,
		extractor:   extractor,
		state:       state,
		notifier:    n,
		interval:    interval,
	}
}

// WithEvents sets an optional sink that receives every detected change.
func (m *Monitor) WithEvents(p changePublisher) *Monitor {
	m.events = p
	return m
}

// Start launches the background polling loop.
// The goroutine uses a context derived from context.Background so it
// survives after the calling HTTP request completes.
func (m *Monitor) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	monCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go m.run(monCtx)
	return nil
}

// Stop halts the polling loop. A cycle already in progress is canceled.
func (m *Monitor) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return ErrNotRunning
	}

	m.cancel()
	m.cancel = nil
	return nil
}

// IsRunning returns whether the polling loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// LastReport returns the report of the most recent completed cycle, or nil.
func (m *Monitor) LastReport() *model.CycleReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// Checkpoints returns the configured checkpoints.
func (m *Monitor) Checkpoints() []model.Checkpoint {
	return m.checkpoints
}

func (m *Monitor) run(ctx context.Context) {
	slog.Info("monitor goroutine started", "checkpoints", len(m.checkpoints), "interval", m.interval)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("monitor goroutine panicked", "error", r, "stack", string(debug.Stack()))
			m.mu.Lock()
			m.cancel = nil
			m.mu.Unlock()
		}
	}()

	m.RunCycle(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor goroutine stopped")
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle performs one full poll over every checkpoint: fetch, extract,
// compare against the stored status, broadcast on change, persist. Failures
// are confined to the checkpoint they occur in and recorded in the report.
func (m *Monitor) RunCycle(ctx context.Context) *model.CycleReport {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	report := &model.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := slog.With("cycle_id", report.ID)

	baseline := model.Baseline{}
	states, err := m.state.LoadAll(ctx)
	if err != nil {
		logger.Error("failed to load previous states, treating all as unknown", "error", err)
	} else {
		baseline = states
		report.BaselineLoaded = true
	}

	results := make([]model.CheckpointResult, len(m.checkpoints))
	var g errgroup.Group
	for i, cp := range m.checkpoints {
		i, cp := i, cp
		g.Go(func() error {
			results[i] = m.processCheckpoint(ctx, logger.With("checkpoint", cp.Name), cp, baseline)
			return nil
		})
	}
	g.Wait()

	report.Results = results
	report.FinishedAt = time.Now()

	m.mu.Lock()
	m.lastReport = report
	m.mu.Unlock()

	logger.Info("poll cycle finished",
		"checkpoints", len(results),
		"changed", report.Changed(),
		"failed", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report
}

func (m *Monitor) processCheckpoint(
	ctx context.Context,
	logger *slog.Logger,
	cp model.Checkpoint,
	baseline model.Baseline,
) (res model.CheckpointResult) {
	previous, known := baseline.Previous(cp.Name)
	res = model.CheckpointResult{Checkpoint: cp.Name, Previous: previous}
	defer recoverCheckpoint(logger, &res)

	reading, err := m.observe(ctx, logger, cp)
	if err != nil {
		logger.Error("failed to read checkpoint, skipping", "error", err)
		res.Error = err.Error()
		return res
	}
	res.Current = reading.Status

	if known && previous != reading.Status {
		res.Changed = true
		logger.Info("traffic status changed", "previous", previous, "current", reading.Status)

		br := m.notifier.Broadcast(ctx, cp.Name, reading.Status)
		res.Notified = br.Delivered
		m.publishChange(ctx, logger, model.ChangeEvent{
			Checkpoint: cp.Name,
			Previous:   previous,
			Current:    reading.Status,
			ObservedAt: time.Now(),
		})
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.state.Upsert(persistCtx, cp.Name, reading.Status); err != nil {
		logger.Error("failed to persist checkpoint status", "error", err)
		res.Error = fmt.Sprintf("persist status: %v", err)
		return res
	}
	res.Persisted = true
	return res
}

// observe fetches the snapshot for a checkpoint and extracts its status.
func (m *Monitor) observe(ctx context.Context, logger *slog.Logger, cp model.Checkpoint) (ocr.Result, error) {
	data, err := m.fetcher.Fetch(ctx, cp.ImageURL)
	if err != nil {
		return ocr.Result{}, err
	}
	reading, err := m.extractor.ExtractDetailed(ctx, data, cp)
	if err != nil {
		return ocr.Result{}, err
	}
	logger.Debug("ocr output", "url", cp.ImageURL, "text", reading.Text, "status", reading.Status)
	return reading, nil
}

func (m *Monitor) publishChange(ctx context.Context, logger *slog.Logger, ev model.ChangeEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishChange(ctx, ev); err != nil {
		logger.Warn("failed to publish change event", "error", err)
	}
}

// Check reads the current status of every checkpoint without comparing,
// notifying or persisting. Used for on-demand lookups.
func (m *Monitor) Check(ctx context.Context) []model.CheckpointResult {
	results := make([]model.CheckpointResult, len(m.checkpoints))
	var g errgroup.Group
	for i, cp := range m.checkpoints {
		i, cp := i, cp
		g.Go(func() error {
			logger := slog.With("checkpoint", cp.Name)
			res := &results[i]
			res.Checkpoint = cp.Name
			defer recoverCheckpoint(logger, res)

			reading, err := m.observe(ctx, logger, cp)
			if err != nil {
				logger.Error("error checking checkpoint", "error", err)
				res.Error = err.Error()
				return nil
			}
			res.Current = reading.Status
			return nil
		})
	}
	g.Wait()
	return results
}

// recoverCheckpoint turns a panic while handling one checkpoint into an
// error on its result. Must be deferred directly.
func recoverCheckpoint(logger *slog.Logger, res *model.CheckpointResult) {
	if r := recover(); r != nil {
		logger.Error("checkpoint processing panicked", "error", r, "stack", string(debug.Stack()))
		res.Error = fmt.Sprintf("panic: %v", r)
	}
}
