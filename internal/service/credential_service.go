package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/pkg/crypto"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

type credentialRepository interface {
	Create(ctx context.Context, c *models.Credential) error
	List(ctx context.Context) ([]models.Credential, error)
}

// CredentialService seals client login material before persistence and
// unseals it only for admin reads.
type CredentialService struct {
	credentials credentialRepository
	sealer      *crypto.Sealer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(credentials credentialRepository, sealer *crypto.Sealer, validate *validator.Validate, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CredentialService{credentials: credentials, sealer: sealer, validator: validate, logger: logger}
}

// Create seals the secrets and stores the record.
func (s *CredentialService) Create(ctx context.Context, createdBy string, req models.CreateCredentialRequest) (*models.Credential, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid credential payload")
	}

	sealedEmail, err := s.sealer.Seal(req.EmailPassword)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal secret")
	}
	sealedPIN, err := s.sealer.Seal(req.TaxPIN)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal secret")
	}
	sealedTax, err := s.sealer.Seal(req.TaxPassword)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal secret")
	}

	c := &models.Credential{
		ID:                  uuid.NewString(),
		FirstName:           req.FirstName,
		Email:               req.Email,
		SealedEmailPassword: sealedEmail,
		SealedTaxPIN:        sealedPIN,
		SealedTaxPassword:   sealedTax,
		CreatedBy:           createdBy,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.credentials.Create(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store credential")
	}

	s.logger.Info("credential stored", zap.String("credential_id", c.ID))
	return c, nil
}

// List unseals every stored credential for admin consumption. Entries
// that fail to unseal are skipped rather than failing the whole read.
func (s *CredentialService) List(ctx context.Context) ([]models.CredentialView, error) {
	items, err := s.credentials.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list credentials")
	}

	views := make([]models.CredentialView, 0, len(items))
	for _, c := range items {
		emailPassword, err := s.sealer.Open(c.SealedEmailPassword)
		if err != nil {
			s.logger.Error("failed to unseal credential", zap.String("credential_id", c.ID), zap.Error(err))
			continue
		}
		taxPIN, err := s.sealer.Open(c.SealedTaxPIN)
		if err != nil {
			s.logger.Error("failed to unseal credential", zap.String("credential_id", c.ID), zap.Error(err))
			continue
		}
		taxPassword, err := s.sealer.Open(c.SealedTaxPassword)
		if err != nil {
			s.logger.Error("failed to unseal credential", zap.String("credential_id", c.ID), zap.Error(err))
			continue
		}
		views = append(views, models.CredentialView{
			ID:            c.ID,
			FirstName:     c.FirstName,
			Email:         c.Email,
			EmailPassword: emailPassword,
			TaxPIN:        taxPIN,
			TaxPassword:   taxPassword,
			CreatedBy:     c.CreatedBy,
			CreatedAt:     c.CreatedAt,
		})
	}
	return views, nil
}
