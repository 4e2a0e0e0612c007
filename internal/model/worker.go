package model

// WorkerState is the lifecycle state of a generation worker
type WorkerState string

const (
	WorkerStatePending      WorkerState = "pending"
	WorkerStateInitializing WorkerState = "initializing"
	WorkerStateReady        WorkerState = "ready"
	WorkerStateFailed       WorkerState = "failed"
)

// Artifact is the output of one generation call
type Artifact struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
}
