package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redisc "github.com/contactly/core/internal/pkg/cache"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is a unit of background work stored in Redis. The request path enqueues
// and returns; delivery happens on the worker with a bounded retry budget.
// Handlers are not guaranteed idempotent: a crash between a handler's side
// effect and the status write can replay the effect once.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	keyPrefix  = "jobs:task:"
	keyPending = "jobs:pending"
	taskTTL    = 7 * 24 * time.Hour

	maxAttempts = 3
	baseBackoff = time.Second
)

// HandlerFunc processes one task payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Service manages the Redis-backed job queue and its worker.
type Service struct {
	rc       *redisc.Redis
	logger   *zap.Logger
	handlers map[string]HandlerFunc
}

func NewService(rc *redisc.Redis, logger *zap.Logger) *Service {
	return &Service{rc: rc, logger: logger, handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a task type. Call before Run.
func (s *Service) Register(taskType string, fn HandlerFunc) {
	s.handlers[taskType] = fn
}

func (s *Service) taskKey(id string) string { return keyPrefix + id }

// Enqueue stores a task and pushes it onto the pending list. Cheap enough for
// the request path; callers log failures rather than surfacing them.
func (s *Service) Enqueue(ctx context.Context, taskType string, payload interface{}) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Payload:   payloadBytes,
		Status:    TaskPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	pipe := s.rc.Raw().TxPipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, taskTTL)
	pipe.LPush(ctx, keyPending, task.ID)
	_, err = pipe.Exec(ctx)
	return task, err
}

// GetByID retrieves a task record, or nil when unknown/expired.
func (s *Service) GetByID(ctx context.Context, id string) (*Task, error) {
	data, err := s.rc.Raw().Get(ctx, s.taskKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task Task
	return &task, json.Unmarshal(data, &task)
}

// Run consumes the pending list until ctx is cancelled. One worker per process
// is enough: handlers are I/O bound (mail, one mongo insert).
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := s.rc.Raw().BRPop(ctx, time.Second, keyPending).Result()
		if err != nil {
			if err == redis.Nil || errors.Is(err, context.Canceled) {
				continue
			}
			s.logger.Warn("taskqueue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		s.process(ctx, res[1])
	}
}

func (s *Service) process(ctx context.Context, id string) {
	task, err := s.GetByID(ctx, id)
	if err != nil || task == nil {
		s.logger.Warn("taskqueue task record missing", zap.String("id", id), zap.Error(err))
		return
	}

	handler, ok := s.handlers[task.Type]
	if !ok {
		s.persist(ctx, task, TaskFailed, fmt.Sprintf("no handler for type %q", task.Type))
		return
	}

	s.persist(ctx, task, TaskRunning, "")
	for task.Attempts < maxAttempts {
		task.Attempts++
		err = handler(ctx, task.Payload)
		if err == nil {
			s.persist(ctx, task, TaskCompleted, "")
			return
		}
		s.logger.Warn("task attempt failed",
			zap.String("id", task.ID),
			zap.String("type", task.Type),
			zap.Int("attempt", task.Attempts),
			zap.Error(err),
		)
		if task.Attempts < maxAttempts {
			select {
			case <-ctx.Done():
				s.persist(ctx, task, TaskFailed, "shutdown during retry")
				return
			case <-time.After(baseBackoff << (task.Attempts - 1)):
			}
		}
	}
	s.persist(ctx, task, TaskFailed, err.Error())
}

func (s *Service) persist(ctx context.Context, task *Task, status TaskStatus, errMsg string) {
	task.Status = status
	task.Error = errMsg
	task.UpdatedAt = time.Now()
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := s.rc.Raw().Set(ctx, s.taskKey(task.ID), data, taskTTL).Err(); err != nil {
		s.logger.Warn("taskqueue status write failed", zap.String("id", task.ID), zap.Error(err))
	}
}
