package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/pkg/config"
	"github.com/uniport/uap-leave-api/pkg/jobs"
)

// NotifierService delivers leave events to the Redis stream list consumed by
// downstream notification workers. Delivery runs through the in-process job
// queue so a slow Redis never blocks the request path, and failed pushes are
// retried by the queue before being dropped.
type NotifierService struct {
	client  *redis.Client
	queue   *jobs.Queue
	stream  string
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewNotifierService constructs NotifierService. client may be nil when the
// notifier is disabled; Publish then degrades to a log line.
func NewNotifierService(client *redis.Client, cfg config.NotifierConfig, metrics *MetricsService, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{
		client:  client,
		stream:  cfg.Stream,
		metrics: metrics,
		logger:  logger,
		enabled: cfg.Enabled && client != nil,
	}
	s.queue = jobs.NewQueue("leave-events", s.deliver, jobs.Options{
		Workers:     cfg.Workers,
		Buffer:      cfg.BufferSize,
		MaxAttempts: cfg.MaxRetries,
		Logger:      logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotifierService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotifierService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// Publish enqueues a leave event for delivery. It never fails the caller; a
// full queue is logged and the event dropped.
func (s *NotifierService) Publish(ctx context.Context, event models.LeaveEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if !s.enabled {
		s.logger.Debug("leave event (notifier disabled)",
			zap.String("type", string(event.Type)),
			zap.String("leave_id", event.LeaveID))
		return
	}
	err := s.queue.Submit(jobs.Task{
		ID:      event.ID,
		Kind:    string(event.Type),
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue leave event",
			zap.String("type", string(event.Type)),
			zap.String("leave_id", event.LeaveID),
			zap.Error(err))
	}
}

func (s *NotifierService) deliver(ctx context.Context, task jobs.Task) error {
	event, ok := task.Payload.(models.LeaveEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type for task %s", task.ID)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal leave event: %w", err)
	}
	if err := s.client.LPush(ctx, s.stream, body).Err(); err != nil {
		return fmt.Errorf("push leave event: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordLeaveEvent(event.Type)
	}
	return nil
}
