// Package models holds the wire types shared by the service internals, the
// HTTP layer and the Go client package.
package models

import "time"

// Kind identifies which long-running job a snapshot belongs to.
type Kind string

const (
	// KindScan is the library rescan job.
	KindScan Kind = "scan"
	// KindBatch is the batch poster-generation job.
	KindBatch Kind = "batch"
)

// State is the lifecycle state of an operation.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

// Snapshot is a complete, self-contained progress record. Every update
// overwrites the whole record server-side; readers always get a copy.
type Snapshot struct {
	Kind        Kind       `json:"kind"`
	State       State      `json:"state"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	CurrentItem string     `json:"current_item"`
	CurrentStep string     `json:"current_step"`
	Log         []string   `json:"log"`
	Error       string     `json:"error,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the snapshot describes a finished run.
func (s Snapshot) Terminal() bool {
	return s.State == StateDone || s.State == StateError
}
