package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/twoem/portal-api/internal/models"
)

// StudentRepository manages persistence for student profiles, their
// academic scores, finance record and certificate.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts the profile together with its zero-initialized finance
// record in one transaction; a student never exists without one.
func (r *StudentRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO students (id, user_id, full_name, admission_no, active, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.ID, profile.UserID, profile.FullName, profile.AdmissionNo, profile.Active, profile.CreatedAt, profile.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO finance_records (student_id, total_fees, paid_amount, updated_at) VALUES ($1, 0, 0, $2)`,
		profile.ID, now,
	); err != nil {
		return fmt.Errorf("create finance record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	profile.Finance = models.FinanceRecord{StudentID: profile.ID, UpdatedAt: now}
	return nil
}

// FindByID fetches a profile with its finance record, scores and
// certificate metadata.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, "SELECT * FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return r.hydrate(ctx, &profile)
}

// FindByUserID resolves the profile linked to a portal account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, "SELECT * FROM students WHERE user_id = $1", userID); err != nil {
		return nil, err
	}
	return r.hydrate(ctx, &profile)
}

func (r *StudentRepository) hydrate(ctx context.Context, profile *models.StudentProfile) (*models.StudentProfile, error) {
	finance, err := r.GetFinance(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	profile.Finance = *finance

	if err := r.db.SelectContext(ctx, &profile.Scores,
		"SELECT student_id, subject, score FROM student_scores WHERE student_id = $1 ORDER BY subject", profile.ID,
	); err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	cert, err := r.GetCertificate(ctx, profile.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	profile.Certificate = cert
	return profile, nil
}

// List returns student profiles matching the filter, without hydrating
// per-student detail rows.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentProfile, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(admission_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT * FROM students WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", where, size, offset)
	var students []models.StudentProfile
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListRoster returns every student joined with its finance record.
func (r *StudentRepository) ListRoster(ctx context.Context) ([]models.RosterRow, error) {
	query := `SELECT s.admission_no, s.full_name, s.active, s.created_at,
		COALESCE(f.total_fees, 0) AS total_fees, COALESCE(f.paid_amount, 0) AS paid_amount
		FROM students s
		LEFT JOIN finance_records f ON f.student_id = s.id
		ORDER BY s.admission_no`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return rows, nil
}

// Patch merges provided profile fields into the stored row.
func (r *StudentRepository) Patch(ctx context.Context, id string, patch models.StudentPatch) error {
	sets := []string{}
	args := []interface{}{id}

	if patch.FullName != nil {
		sets = append(sets, fmt.Sprintf("full_name = $%d", len(args)+1))
		args = append(args, *patch.FullName)
	}
	if patch.AdmissionNo != nil {
		sets = append(sets, fmt.Sprintf("admission_no = $%d", len(args)+1))
		args = append(args, *patch.AdmissionNo)
	}
	if patch.Active != nil {
		sets = append(sets, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *patch.Active)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf("UPDATE students SET %s WHERE id = $1", strings.Join(sets, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch student: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertScores writes score entries subject-by-subject.
func (r *StudentRepository) UpsertScores(ctx context.Context, studentID string, scores []models.SubjectScorePatch) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert scores: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, s := range scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO student_scores (student_id, subject, score) VALUES ($1, $2, $3)
             ON CONFLICT (student_id, subject) DO UPDATE SET score = EXCLUDED.score`,
			studentID, s.Subject, s.Score,
		); err != nil {
			return fmt.Errorf("upsert score %s: %w", s.Subject, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert scores: %w", err)
	}
	return nil
}

// GetFinance fetches the finance record for a student.
func (r *StudentRepository) GetFinance(ctx context.Context, studentID string) (*models.FinanceRecord, error) {
	var finance models.FinanceRecord
	if err := r.db.GetContext(ctx, &finance,
		"SELECT student_id, total_fees, paid_amount, updated_at FROM finance_records WHERE student_id = $1", studentID,
	); err != nil {
		return nil, err
	}
	return &finance, nil
}

// PatchFinance merges provided fee fields; balance and clearance stay
// derived and are never written.
func (r *StudentRepository) PatchFinance(ctx context.Context, studentID string, patch models.FinancePatch) error {
	sets := []string{}
	args := []interface{}{studentID}

	if patch.TotalFees != nil {
		sets = append(sets, fmt.Sprintf("total_fees = $%d", len(args)+1))
		args = append(args, *patch.TotalFees)
	}
	if patch.PaidAmount != nil {
		sets = append(sets, fmt.Sprintf("paid_amount = $%d", len(args)+1))
		args = append(args, *patch.PaidAmount)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf("UPDATE finance_records SET %s WHERE student_id = $1", strings.Join(sets, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch finance: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertCertificate overwrites the student's certificate wholesale.
// The certificate is an artifact row targeted at the student so the
// release pipeline and download counter apply to it unchanged; the
// previous row (and its counter) is replaced, matching the wholesale
// overwrite contract.
func (r *StudentRepository) UpsertCertificate(ctx context.Context, cert *models.Certificate) error {
	if cert.UploadedAt.IsZero() {
		cert.UploadedAt = time.Now().UTC()
	}
	if cert.ArtifactID == "" {
		cert.ArtifactID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert certificate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM artifacts WHERE kind = $1 AND $2 = ANY(targets)",
		models.KindCertificate, cert.StudentID,
	); err != nil {
		return fmt.Errorf("replace certificate: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifacts
         (id, kind, title, deceased_name, description, filename, media_type, file_size, payload,
          visibility, is_public, targets, uploaded_by, created_at, expires_at, download_count, is_active)
         VALUES ($1, $2, $3, '', '', $4, $5, $6, $7, $8, FALSE, $9, $10, $11, NULL, 0, TRUE)`,
		cert.ArtifactID, models.KindCertificate, "Certificate", cert.Filename, "application/pdf",
		len(cert.Payload), cert.Payload, models.VisibilityTargeted,
		pq.StringArray{cert.StudentID}, cert.UploadedBy, cert.UploadedAt,
	); err != nil {
		return fmt.Errorf("upsert certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert certificate: %w", err)
	}
	return nil
}

// GetCertificate fetches the certificate artifact for a student.
func (r *StudentRepository) GetCertificate(ctx context.Context, studentID string) (*models.Certificate, error) {
	var cert models.Certificate
	query := `SELECT id AS artifact_id, filename, payload, uploaded_by, created_at AS uploaded_at
        FROM artifacts WHERE kind = $1 AND $2 = ANY(targets) AND is_active = TRUE`
	if err := r.db.GetContext(ctx, &cert, query, models.KindCertificate, studentID); err != nil {
		return nil, err
	}
	cert.StudentID = studentID
	return &cert, nil
}

// Delete removes the student, its dependent rows and the linked portal
// account. Removing the account is what revokes login access; without
// it the orphaned user could keep signing in.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var userID string
	if err := tx.GetContext(ctx, &userID, "SELECT user_id FROM students WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("resolve student account: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM artifacts WHERE kind = $1 AND $2 = ANY(targets)",
		models.KindCertificate, id,
	); err != nil {
		return false, fmt.Errorf("delete student certificate: %w", err)
	}

	for _, query := range []string{
		"DELETE FROM student_scores WHERE student_id = $1",
		"DELETE FROM finance_records WHERE student_id = $1",
		"DELETE FROM students WHERE id = $1",
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return false, fmt.Errorf("delete student detail: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userID); err != nil {
		return false, fmt.Errorf("delete student account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete student: %w", err)
	}
	return true, nil
}
