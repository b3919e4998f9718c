package model

import "time"

// CheckpointResult is the outcome of processing one checkpoint.
type CheckpointResult struct {
	Checkpoint string `json:"checkpoint"`
	Previous   string `json:"previous,omitempty"`
	Current    string `json:"current,omitempty"`
	Changed    bool   `json:"changed"`
	Notified   int    `json:"notified"`
	Persisted  bool   `json:"persisted"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether no reading was obtained for the checkpoint.
func (r CheckpointResult) Failed() bool {
	return r.Current == "" && r.Error != ""
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	ID             string             `json:"id"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	BaselineLoaded bool               `json:"baseline_loaded"`
	Results        []CheckpointResult `json:"results"`
}

// Changed returns the number of checkpoints whose status changed.
func (r *CycleReport) Changed() int {
	n := 0
	for _, res := range r.Results {
		if res.Changed {
			n++
		}
	}
	return n
}

// Failed returns the number of checkpoints that produced no reading.
func (r *CycleReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed() {
			n++
		}
	}
	return n
}

// ChangeEvent describes a detected status change.
type ChangeEvent struct {
	Checkpoint string    `json:"checkpoint"`
	Previous   string    `json:"previous"`
	Current    string    `json:"current"`
	ObservedAt time.Time `json:"observed_at"`
}
