package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	Deliver(ctx context.Context, notificationID string, userIDs []string) error
	ListInbox(ctx context.Context, userID string) ([]models.Inbox, error)
	MarkRead(ctx context.Context, inboxID, userID string, readAt time.Time) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type notificationUserRepository interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

type fanoutPayload struct {
	NotificationID string
	Targets        []string
}

// NotificationService creates announcements and fans them out to
// recipient inboxes through a background worker queue.
type NotificationService struct {
	notifications notificationRepository
	users         notificationUserRepository
	queue         *jobs.Queue
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewNotificationService constructs a NotificationService. Call Start
// before enqueueing deliveries.
func NewNotificationService(notifications notificationRepository, users notificationUserRepository, queueCfg jobs.QueueConfig, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &NotificationService{
		notifications: notifications,
		users:         users,
		validator:     validate,
		logger:        logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notification-fanout", s.handleFanout, queueCfg)
	return s
}

// Start launches the fan-out workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the fan-out workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Create persists a notification and enqueues delivery. Empty targets
// means broadcast to every active account.
func (s *NotificationService) Create(ctx context.Context, createdBy string, req models.CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	n := &models.Notification{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Body:         req.Body,
		AttachmentID: req.AttachmentID,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create notification")
	}

	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "fanout",
		Payload: fanoutPayload{NotificationID: n.ID, Targets: req.Targets},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue fan-out, delivering inline", zap.Error(err))
		if err := s.handleFanout(ctx, job); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to deliver notification")
		}
	}

	s.logger.Info("notification created", zap.String("notification_id", n.ID), zap.Int("targets", len(req.Targets)))
	return n, nil
}

// Inbox returns the caller's notification copies, newest first.
func (s *NotificationService) Inbox(ctx context.Context, userID string) ([]models.Inbox, error) {
	items, err := s.notifications.ListInbox(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load inbox")
	}
	return items, nil
}

// MarkRead stamps a single inbox entry as read. Idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, inboxID, userID string) error {
	if err := s.notifications.MarkRead(ctx, inboxID, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inbox entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to mark entry read")
	}
	return nil
}

// UnreadCount returns the caller's unread entry count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to count unread entries")
	}
	return count, nil
}

func (s *NotificationService) handleFanout(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(fanoutPayload)
	if !ok {
		s.logger.Error("fan-out job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	targets := payload.Targets
	if len(targets) == 0 {
		ids, err := s.users.ListActiveIDs(ctx)
		if err != nil {
			return err
		}
		targets = ids
	}
	if len(targets) == 0 {
		return nil
	}

	if err := s.notifications.Deliver(ctx, payload.NotificationID, targets); err != nil {
		return err
	}
	s.logger.Info("notification delivered",
		zap.String("notification_id", payload.NotificationID),
		zap.Int("recipients", len(targets)))
	return nil
}
