package pool

import (
	"time"

	"github.com/google/uuid"
)

// Job is a single generation request handed to exactly one worker.
type Job struct {
	ID          string
	UserID      string
	Prompt      string
	Style       string
	SubmittedAt time.Time
	Sink        *ResultSink

	stop bool
}

// NewJob creates a job with a fresh ID. The sink is mandatory.
func NewJob(userID, prompt, style string, sink *ResultSink) *Job {
	return &Job{
		ID:          uuid.New().String(),
		UserID:      userID,
		Prompt:      prompt,
		Style:       style,
		SubmittedAt: time.Now(),
		Sink:        sink,
	}
}

func stopJob() *Job {
	return &Job{stop: true}
}
