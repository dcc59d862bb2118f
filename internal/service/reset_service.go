package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/pkg/crypto"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/mail"
)

type resetRepository interface {
	Create(ctx context.Context, req *models.PasswordResetRequest) error
	FindByID(ctx context.Context, id string) (*models.PasswordResetRequest, error)
	List(ctx context.Context, status models.ResetStatus) ([]models.PasswordResetRequest, error)
	Approve(ctx context.Context, id, code string, decidedAt, expiresAt time.Time) error
	Reject(ctx context.Context, id string, decidedAt time.Time) error
	FindApproved(ctx context.Context, email, code string) (*models.PasswordResetRequest, error)
	MarkUsed(ctx context.Context, id string) error
}

type resetUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// ResetService runs the admin-mediated password reset flow: request,
// approve or reject, then completion with the issued code.
type ResetService struct {
	resets     resetRepository
	users      resetUserRepository
	mailer     mail.Sender
	policy     ExpiryPolicy
	codeDigits int
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewResetService constructs a ResetService.
func NewResetService(resets resetRepository, users resetUserRepository, mailer mail.Sender, policy ExpiryPolicy, codeDigits int, validate *validator.Validate, logger *zap.Logger) *ResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResetService{
		resets:     resets,
		users:      users,
		mailer:     mailer,
		policy:     policy,
		codeDigits: codeDigits,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Request records a pending reset for the account. It answers the same
// way whether or not the email exists to avoid account enumeration.
func (s *ResetService) Request(ctx context.Context, req models.RequestResetRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("reset requested for unknown email", zap.String("email", req.Email))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to look up account")
	}

	reset := &models.PasswordResetRequest{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		Status:      models.ResetPending,
		RequestedAt: s.now(),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to record reset request")
	}

	s.logger.Info("password reset requested", zap.String("reset_id", reset.ID), zap.String("user_id", user.ID))
	return nil
}

// List returns reset requests in the given status for admin review.
func (s *ResetService) List(ctx context.Context, status models.ResetStatus) ([]models.PasswordResetRequest, error) {
	items, err := s.resets.List(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list reset requests")
	}
	return items, nil
}

// Approve transitions a pending request to approved, generating the
// reset code at this moment and mailing it to the account owner. The
// code's lifetime starts at approval, not at request.
func (s *ResetService) Approve(ctx context.Context, id string) (*models.PasswordResetRequest, error) {
	reset, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if reset.Status != models.ResetPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reset request has already been decided")
	}

	code, err := crypto.GenerateNumericCode(s.codeDigits)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset code")
	}

	decidedAt := s.now()
	expiresAt := ComputeExpiry(decidedAt, s.policy.ResetCodeTTL)
	if err := s.resets.Approve(ctx, id, code, decidedAt, expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "reset request has already been decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to approve reset request")
	}

	msg := mail.Message{
		ToEmail: reset.Email,
		Subject: "Your password reset code",
		Body:    fmt.Sprintf("Your password reset code is %s. It expires at %s.", code, expiresAt.Format(time.RFC1123)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("failed to send reset code", zap.String("reset_id", id), zap.Error(err))
	}

	s.logger.Info("reset request approved", zap.String("reset_id", id), zap.Time("expires_at", expiresAt))
	return s.findRequest(ctx, id)
}

// Reject declines a pending request without issuing a code.
func (s *ResetService) Reject(ctx context.Context, id string) (*models.PasswordResetRequest, error) {
	reset, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if reset.Status != models.ResetPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reset request has already been decided")
	}
	if err := s.resets.Reject(ctx, id, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "reset request has already been decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to reject reset request")
	}
	s.logger.Info("reset request rejected", zap.String("reset_id", id))
	return s.findRequest(ctx, id)
}

// Complete redeems an approved, unexpired code for a new password. The
// code is single use: completion marks the request used.
func (s *ResetService) Complete(ctx context.Context, req models.CompleteResetRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}

	reset, err := s.resets.FindApproved(ctx, req.Email, req.ResetCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "invalid or unapproved reset code")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to look up reset request")
	}

	if reset.ExpiresAt != nil && IsExpired(*reset.ExpiresAt, s.now()) {
		return appErrors.Clone(appErrors.ErrGone, "reset code has expired")
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, hash, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update password")
	}
	if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to consume reset code")
	}

	s.logger.Info("password reset completed", zap.String("reset_id", reset.ID), zap.String("user_id", reset.UserID))
	return nil
}

func (s *ResetService) findRequest(ctx context.Context, id string) (*models.PasswordResetRequest, error) {
	reset, err := s.resets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reset request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load reset request")
	}
	return reset, nil
}
