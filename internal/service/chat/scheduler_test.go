package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/queue"
)

type handlerFunc func(ctx context.Context, p *queue.CleanupPayload) error

func (f handlerFunc) HandleCleanup(ctx context.Context, p *queue.CleanupPayload) error { return f(ctx, p) }

type fakeQueue struct {
	tasks []*queue.Task
	err   error
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) SaveFinalStatus(ctx context.Context, s *queue.TaskStatus) error { return nil }

func (q *fakeQueue) Close() error { return nil }

func TestInlineScheduler_LogsFailures(t *testing.T) {
	log := logger.NewTestLogger()
	s := NewInlineScheduler(handlerFunc(func(ctx context.Context, p *queue.CleanupPayload) error {
		return errors.New("disk full")
	}), log)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Schedule(ctx, &queue.CleanupPayload{DocumentID: "d"}))
	cancel()

	require.NoError(t, s.Wait(context.Background()))
	assert.True(t, log.Has("ERROR", "Background pass failed"))
}

func TestInlineScheduler_DetachedFromCaller(t *testing.T) {
	var gotErr error
	s := NewInlineScheduler(handlerFunc(func(ctx context.Context, p *queue.CleanupPayload) error {
		gotErr = ctx.Err()
		return nil
	}), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Schedule(ctx, &queue.CleanupPayload{DocumentID: "d"}))
	require.NoError(t, s.Wait(context.Background()))
	assert.NoError(t, gotErr)
}

func TestQueueScheduler_Enqueues(t *testing.T) {
	q := &fakeQueue{}
	s := NewQueueScheduler(q, logger.NewTestLogger())

	p := &queue.CleanupPayload{DocumentID: "d", StorageKey: "uploads/d.pdf", Reextract: true}
	require.NoError(t, s.Schedule(context.Background(), p))
	require.Len(t, q.tasks, 1)

	got, err := queue.DecodeCleanupPayload(q.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestQueueScheduler_PropagatesError(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	s := NewQueueScheduler(q, logger.NewTestLogger())
	assert.Error(t, s.Schedule(context.Background(), &queue.CleanupPayload{DocumentID: "d"}))
}
