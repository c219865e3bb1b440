package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-chat/config"
)

const (
	TaskTypeDocumentCleanup = "document:cleanup"

	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"

	statusTTL = 24 * time.Hour
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Queues are the asynq priority queues with their weights.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
	Close() error
}

type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// CleanupPayload describes a staged document awaiting its background pass.
type CleanupPayload struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	StorageKey string `json:"storageKey"`
	Reextract  bool   `json:"reextract"`
}

type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// NewCleanupTask wraps p in a low priority task with a fresh id.
func NewCleanupTask(p *CleanupPayload) (*Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Task{
		ID:        uuid.NewString(),
		Type:      TaskTypeDocumentCleanup,
		Priority:  3,
		Payload:   data,
		Metadata:  map[string]string{"documentId": p.DocumentID, "filename": p.Filename},
		CreatedAt: time.Now(),
	}, nil
}

// DecodeCleanupPayload validates and unpacks a cleanup task.
func DecodeCleanupPayload(task *Task) (*CleanupPayload, error) {
	if task.Type != TaskTypeDocumentCleanup {
		return nil, fmt.Errorf("unexpected task type %q", task.Type)
	}
	var p CleanupPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.DocumentID == "" || p.StorageKey == "" {
		return nil, errors.New("invalid cleanup payload: missing required fields")
	}
	return &p, nil
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

// Backlog counts cleanup tasks by state across all priority queues.
// Archived tasks exhausted their retries and still hold a document.
type Backlog struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Scheduled int `json:"scheduled"`
	Retry     int `json:"retry"`
	Archived  int `json:"archived"`
}

type inspector interface {
	Queues() ([]string, error)
	GetQueueInfo(name string) (*asynq.QueueInfo, error)
	Close() error
}

type AsynqQueue struct {
	client    *asynq.Client
	inspector inspector
	redis     *redis.Client
	maxRetry  int
	timeout   time.Duration
}

// RedisOpt builds the asynq connection options for cfg.
func RedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewAsynqQueue(cfg *config.QueueConfig) (*AsynqQueue, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("queue: redis address is required")
	}
	redisOpt := RedisOpt(cfg)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		maxRetry:  cfg.MaxRetry,
		timeout:   cfg.Timeout,
	}, nil
}

func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(q.maxRetry),
		asynq.TaskID(task.ID),
		asynq.Queue(queueFor(task.Priority)),
		asynq.Retention(statusTTL),
	}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(task.Type, payload, opts...))
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	task.ID = info.ID

	return q.SaveFinalStatus(ctx, &TaskStatus{
		TaskID:    task.ID,
		Status:    StatusPending,
		StartedAt: task.CreatedAt,
	})
}

func queueFor(priority int) string {
	switch priority {
	case 1:
		return QueueCritical
	case 2:
		return QueueDefault
	default:
		return QueueLow
	}
}

// Backlog sums the task counts of the priority queues that exist in Redis.
func (q *AsynqQueue) Backlog() (*Backlog, error) {
	names, err := q.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	b := &Backlog{}
	for _, name := range names {
		if _, ok := Queues[name]; !ok {
			continue
		}
		info, err := q.inspector.GetQueueInfo(name)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect queue %s: %w", name, err)
		}
		b.Pending += info.Pending
		b.Active += info.Active
		b.Scheduled += info.Scheduled
		b.Retry += info.Retry
		b.Archived += info.Archived
	}
	return b, nil
}

func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redis.Close())
}
