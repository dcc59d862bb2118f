package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

type catalogRepository interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, entry *models.ServiceEntry) error
	ListActive(ctx context.Context) ([]models.ServiceEntry, error)
	Patch(ctx context.Context, id string, patch models.ServiceEntryPatch) error
}

// CatalogService serves the public services catalog and seeds the
// default offerings on first start.
type CatalogService struct {
	catalog catalogRepository
	logger  *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(catalog catalogRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, logger: logger}
}

// List returns active catalog entries.
func (s *CatalogService) List(ctx context.Context) ([]models.ServiceEntry, error) {
	items, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list catalog")
	}
	return items, nil
}

// Patch edits or toggles a catalog entry.
func (s *CatalogService) Patch(ctx context.Context, id string, patch models.ServiceEntryPatch) error {
	if err := s.catalog.Patch(ctx, id, patch); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update catalog entry")
	}
	return nil
}

// Seed inserts the default offerings when the catalog is empty.
func (s *CatalogService) Seed(ctx context.Context) error {
	count, err := s.catalog.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []models.ServiceEntry{
		{Name: "eCitizen Services", Category: "Government", Description: "Applications, renewals and payments on the eCitizen portal."},
		{Name: "iTax & KRA Services", Category: "Government", Description: "PIN registration, tax returns and compliance certificates."},
		{Name: "Printing & Photocopy", Category: "Office", Description: "Document printing, copying, scanning and lamination."},
		{Name: "Internet & Cyber Access", Category: "Office", Description: "Browsing, email and online application assistance."},
		{Name: "Design & Branding", Category: "Creative", Description: "Posters, business cards, funeral programmes and banners."},
	}
	now := time.Now().UTC()
	for i := range defaults {
		entry := defaults[i]
		entry.ID = uuid.NewString()
		entry.IsActive = true
		entry.CreatedAt = now
		if err := s.catalog.Create(ctx, &entry); err != nil {
			return err
		}
	}
	s.logger.Info("catalog seeded", zap.Int("entries", len(defaults)))
	return nil
}
