package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/pkg/crypto"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

type studentRepository interface {
	Create(ctx context.Context, profile *models.StudentProfile) error
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentProfile, int, error)
	Patch(ctx context.Context, id string, patch models.StudentPatch) error
	UpsertScores(ctx context.Context, studentID string, scores []models.SubjectScorePatch) error
	GetFinance(ctx context.Context, studentID string) (*models.FinanceRecord, error)
	PatchFinance(ctx context.Context, studentID string, patch models.FinancePatch) error
	UpsertCertificate(ctx context.Context, cert *models.Certificate) error
	GetCertificate(ctx context.Context, studentID string) (*models.Certificate, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type studentUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// StudentService manages student profiles, academic records, finance
// records and certificates.
type StudentService struct {
	students  studentRepository
	users     studentUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(students studentRepository, users studentUserRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{students: students, users: users, validator: validate, logger: logger}
}

// Create provisions a portal account with the STUDENT role together
// with its profile and a zero-initialized finance record.
func (s *StudentService) Create(ctx context.Context, req models.CreateStudentRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to check existing account")
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         models.RoleStudent,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create account")
	}

	profile := &models.StudentProfile{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		FullName:    req.FullName,
		AdmissionNo: req.AdmissionNo,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.students.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create student profile")
	}

	s.logger.Info("student provisioned",
		zap.String("student_id", profile.ID),
		zap.String("admission_no", profile.AdmissionNo))
	return profile, nil
}

// Get loads a profile with its finance, scores and certificate metadata.
// Students may only read their own profile.
func (s *StudentService) Get(ctx context.Context, caller models.Caller, id string) (*models.StudentProfile, error) {
	profile, err := s.findProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && profile.UserID != caller.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot read another student's profile")
	}
	return profile, nil
}

// GetOwn resolves the profile linked to the calling user.
func (s *StudentService) GetOwn(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student")
	}
	return profile, nil
}

// List returns paginated student profiles.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentProfile, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Patch applies a partial profile update. Deactivating a student also
// deactivates the linked portal account.
func (s *StudentService) Patch(ctx context.Context, id string, patch models.StudentPatch) (*models.StudentProfile, error) {
	profile, err := s.findProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.students.Patch(ctx, id, patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update student")
	}
	if patch.Active != nil && *patch.Active != profile.Active {
		if err := s.users.SetActive(ctx, profile.UserID, *patch.Active); err != nil {
			s.logger.Warn("failed to sync account active flag", zap.String("student_id", id), zap.Error(err))
		}
	}
	return s.findProfile(ctx, id)
}

// PatchAcademic upserts subject scores for a student.
func (s *StudentService) PatchAcademic(ctx context.Context, id string, patch models.AcademicPatch) (*models.StudentProfile, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic payload")
	}
	if _, err := s.findProfile(ctx, id); err != nil {
		return nil, err
	}
	if err := s.students.UpsertScores(ctx, id, patch.Scores); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to record scores")
	}
	return s.findProfile(ctx, id)
}

// PatchFinance updates fee totals; balance and clearance stay derived.
func (s *StudentService) PatchFinance(ctx context.Context, id string, patch models.FinancePatch) (*models.FinanceRecord, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finance payload")
	}
	if _, err := s.findProfile(ctx, id); err != nil {
		return nil, err
	}
	if err := s.students.PatchFinance(ctx, id, patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update finance record")
	}
	finance, err := s.students.GetFinance(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load finance record")
	}
	return finance, nil
}

// UploadCertificate stores (or replaces) the student's certificate as a
// targeted artifact so retrieval flows through the release pipeline.
func (s *StudentService) UploadCertificate(ctx context.Context, id, uploadedBy string, req models.UploadFileRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}
	if _, err := s.findProfile(ctx, id); err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content must be base64 encoded")
	}
	cert := &models.Certificate{
		ArtifactID: uuid.NewString(),
		StudentID:  id,
		Filename:   req.Filename,
		Payload:    payload,
		UploadedBy: uploadedBy,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.students.UpsertCertificate(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store certificate")
	}
	s.logger.Info("certificate uploaded", zap.String("student_id", id), zap.String("artifact_id", cert.ArtifactID))
	cert.Payload = nil
	return cert, nil
}

// Eligibility evaluates the certificate release gate for a student at
// the time of the call.
func (s *StudentService) Eligibility(ctx context.Context, caller models.Caller, id string) (*models.EligibilityResult, error) {
	profile, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	result := EvaluateEligibility(profile)
	return &result, nil
}

// Delete removes a student profile and its dependent records.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.students.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

func (s *StudentService) findProfile(ctx context.Context, id string) (*models.StudentProfile, error) {
	profile, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student")
	}
	return profile, nil
}
