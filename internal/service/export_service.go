package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/export"
	"github.com/twoem/portal-api/pkg/storage"
)

// Export types and formats accepted by Generate.
const (
	ExportTypeRoster  = "roster"
	ExportTypeFinance = "finance"

	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type exportStudentRepository interface {
	ListRoster(ctx context.Context) ([]models.RosterRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string    `json:"relative_path"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	Format       string    `json:"format"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExportService renders admin exports (student roster, finance
// statements) and serves them through signed download URLs.
type ExportService struct {
	students exportStudentRepository
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(students exportStudentRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		students: students,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders the requested export and stores the file.
func (s *ExportService) Generate(ctx context.Context, exportType, format string) (*ExportResult, error) {
	dataset, title, err := s.buildDataset(ctx, exportType)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := fmt.Sprintf("%s-%s", exportType, time.Now().UTC().Format("20060102150405"))
	filename := fmt.Sprintf("%s.%s", exportID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("export generated",
		zap.String("type", exportType),
		zap.String("format", format),
		zap.String("path", relPath))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/admin/exports/download?token=%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token and returns the file path.
func (s *ExportService) ParseToken(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	return relPath, nil
}

// Open returns a handle to the stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return f, nil
}

// Cleanup removes export files older than the configured TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, exportType string) (export.Dataset, string, error) {
	students, err := s.students.ListRoster(ctx)
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}

	switch exportType {
	case ExportTypeRoster:
		rows := make([]map[string]string, 0, len(students))
		for _, st := range students {
			status := "active"
			if !st.Active {
				status = "inactive"
			}
			rows = append(rows, map[string]string{
				"Admission No": st.AdmissionNo,
				"Full Name":    st.FullName,
				"Status":       status,
				"Registered":   st.CreatedAt.Format("2006-01-02"),
			})
		}
		dataset := export.Dataset{
			Headers: []string{"Admission No", "Full Name", "Status", "Registered"},
			Rows:    rows,
		}
		return dataset, "Student Roster", nil

	case ExportTypeFinance:
		rows := make([]map[string]string, 0, len(students))
		for _, st := range students {
			finance := st.Finance()
			cleared := "no"
			if finance.IsCleared() {
				cleared = "yes"
			}
			rows = append(rows, map[string]string{
				"Admission No": st.AdmissionNo,
				"Full Name":    st.FullName,
				"Total Fees":   fmt.Sprintf("%.2f", finance.TotalFees),
				"Paid":         fmt.Sprintf("%.2f", finance.PaidAmount),
				"Balance":      fmt.Sprintf("%.2f", finance.Balance()),
				"Cleared":      cleared,
			})
		}
		dataset := export.Dataset{
			Headers: []string{"Admission No", "Full Name", "Total Fees", "Paid", "Balance", "Cleared"},
			Rows:    rows,
		}
		return dataset, "Finance Statement", nil

	default:
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export type %q", exportType))
	}
}
