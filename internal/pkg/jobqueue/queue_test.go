package jobqueue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil, 1), client
}

func TestEnqueueUsageCommit(t *testing.T) {
	queue, client := newTestQueue(t)
	ctx := context.Background()

	job, err := queue.EnqueueUsageCommit(42, 1)
	require.NoError(t, err)
	assert.Equal(t, JobTypeUsageCommit, job.Type)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)

	// Job data persisted under its key and the id pushed onto the queue.
	data, err := client.Get(ctx, JobKeyPrefix+job.ID).Result()
	require.NoError(t, err)
	var stored Job
	require.NoError(t, json.Unmarshal([]byte(data), &stored))
	assert.Equal(t, job.ID, stored.ID)

	ids, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, ids)
}

func TestCommitUsageEnqueues(t *testing.T) {
	queue, client := newTestQueue(t)

	require.NoError(t, queue.CommitUsage(7, 1))
	n, err := client.LLen(context.Background(), JobQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDequeueMovesJobToProcessing(t *testing.T) {
	queue, client := newTestQueue(t)
	ctx := context.Background()

	enqueued, err := queue.EnqueueUsageCommit(42, 2)
	require.NoError(t, err)

	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, enqueued.ID, job.ID)

	payload, err := UsageCommitPayloadFromMap(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(42), payload.AccountID)
	assert.Equal(t, int64(2), payload.Amount)

	// Pending queue drained, the id parked in the processing list.
	n, err := client.LLen(ctx, JobQueueKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	processing, err := client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, processing)
}

func TestQueueStartStopDrainsWorkers(t *testing.T) {
	queue, _ := newTestQueue(t)

	queue.Start()
	// Stop blocks until every worker exits; a second call is a no-op.
	queue.Stop()
	queue.Stop()
}

func TestJobRetryAccounting(t *testing.T) {
	job := &Job{MaxRetries: 2}

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("boom again")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable())
}

func TestUsageCommitPayloadRoundtrip(t *testing.T) {
	payload := UsageCommitPayload{AccountID: 9, Amount: 3}
	restored, err := UsageCommitPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}
