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
)

type contactRepository interface {
	Create(ctx context.Context, c *models.ContactSubmission) error
	List(ctx context.Context) ([]models.ContactSubmission, error)
	MarkRead(ctx context.Context, id string) error
}

// ContactService records public enquiries and exposes them to admins.
type ContactService struct {
	contacts  contactRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContactService constructs a ContactService.
func NewContactService(contacts contactRepository, validate *validator.Validate, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ContactService{contacts: contacts, validator: validate, logger: logger}
}

// Submit records an anonymous contact form submission.
func (s *ContactService) Submit(ctx context.Context, req models.CreateContactRequest) (*models.ContactSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}
	c := &models.ContactSubmission{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Email:       req.Email,
		Message:     req.Message,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to record submission")
	}
	s.logger.Info("contact submission received", zap.String("submission_id", c.ID))
	return c, nil
}

// List returns every submission, newest first.
func (s *ContactService) List(ctx context.Context) ([]models.ContactSubmission, error) {
	items, err := s.contacts.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list submissions")
	}
	return items, nil
}

// MarkRead flags a submission as handled.
func (s *ContactService) MarkRead(ctx context.Context, id string) error {
	if err := s.contacts.MarkRead(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update submission")
	}
	return nil
}
