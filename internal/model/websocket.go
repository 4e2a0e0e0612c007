package model

// WebSocket message types
const (
	WSMessageTypeWorker = "worker"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSWorkerMessage announces a worker lifecycle transition
type WSWorkerMessage struct {
	Type     string      `json:"type"`
	WorkerID string      `json:"workerId"`
	State    WorkerState `json:"state"`
	Error    string      `json:"error,omitempty"`
}
