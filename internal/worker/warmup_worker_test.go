package worker

import (
	"context"
	"testing"

	"github.com/SahanWeerasiri/genApp/internal/pool"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	err  error
	reqs []pool.Request
}

func (f *fakeSubmitter) SubmitAsync(req pool.Request) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.reqs = append(f.reqs, req)
	return "job-1", "worker-1", nil
}

func TestWarmupWorker_SubmitsNormalizedJob(t *testing.T) {
	sub := &fakeSubmitter{}
	w := NewWarmupWorker(sub, zerolog.Nop())

	task, err := NewWarmupTask("  lovely couple  ", "unknown-style")
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(context.Background(), task))

	require.Len(t, sub.reqs, 1)
	assert.Equal(t, "lovely couple", sub.reqs[0].Prompt)
	assert.Equal(t, "no style", sub.reqs[0].Style)
	assert.Equal(t, "system:warmup", sub.reqs[0].UserID)
}

func TestWarmupWorker_NoCapacitySkipsRetry(t *testing.T) {
	w := NewWarmupWorker(&fakeSubmitter{err: pool.ErrNoCapacity}, zerolog.Nop())

	task, err := NewWarmupTask("girl", "anime")
	require.NoError(t, err)

	err = w.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, pool.ErrNoCapacity)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWarmupWorker_BadPayload(t *testing.T) {
	w := NewWarmupWorker(&fakeSubmitter{}, zerolog.Nop())

	err := w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeWarmup, []byte(`{"prompt":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWarmupTask(t *testing.T) {
	task, err := NewWarmupTask("girl", "anime")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeWarmup, task.Type())
	assert.JSONEq(t, `{"prompt":"girl","style":"anime"}`, string(task.Payload()))
}
