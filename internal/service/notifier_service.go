package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	"github.com/campushq/registrar-api/pkg/jobs"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

const notificationJobType = "notification.deliver"

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, ts time.Time) error
}

// NotifierService delivers enrollment notifications off the request path.
// Notify returns immediately; delivery happens on the queue's workers and a
// failed delivery never affects the enrollment that triggered it.
type NotifierService struct {
	store  notificationStore
	queue  *jobs.Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewNotifierService constructs NotifierService and its backing queue.
func NewNotifierService(store notificationStore, cfg jobs.QueueConfig, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start launches the delivery workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification. Enqueue failures are logged and swallowed;
// the caller has already committed its own work.
func (s *NotifierService) Notify(studentID string, kind models.NotificationKind, title, body, link string) {
	notification := models.Notification{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Link:      link,
		CreatedAt: s.now(),
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      notification.ID,
		Type:    notificationJobType,
		Payload: notification,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("student_id", studentID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// ListByStudent returns a student's notification inbox, newest first.
func (s *NotifierService) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error) {
	notifications, err := s.store.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead stamps a notification as read.
func (s *NotifierService) MarkRead(ctx context.Context, id string) error {
	if err := s.store.MarkRead(ctx, id, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("notification %s not found", id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

func (s *NotifierService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.store.Create(ctx, &notification); err != nil {
		return fmt.Errorf("deliver notification %s: %w", notification.ID, err)
	}
	return nil
}
