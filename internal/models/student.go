package models

import "time"

// StudentProfile is the academic identity linked one-to-one with a
// portal user of role STUDENT. The finance record is always present
// (zero-initialized); the academic record and certificate are optional.
type StudentProfile struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FullName    string    `db:"full_name" json:"full_name"`
	AdmissionNo string    `db:"admission_no" json:"admission_no"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Finance     FinanceRecord  `db:"-" json:"finance"`
	Scores      []SubjectScore `db:"-" json:"scores,omitempty"`
	Certificate *Certificate   `db:"-" json:"certificate,omitempty"`
}

// SubjectScore is a single graded subject. A nil Score means the
// subject has not been graded yet and is excluded from the average.
type SubjectScore struct {
	StudentID string   `db:"student_id" json:"-"`
	Subject   string   `db:"subject" json:"subject"`
	Score     *float64 `db:"score" json:"score,omitempty"`
}

// AverageScore returns the mean over graded subjects only. The second
// return is false when no subject carries a score, in which case the
// average is undefined rather than zero.
func AverageScore(scores []SubjectScore) (float64, bool) {
	var sum float64
	var n int
	for _, s := range scores {
		if s.Score == nil {
			continue
		}
		sum += *s.Score
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// FinanceRecord tracks fees for a student. Balance and clearance are
// always derived from the stored totals, never persisted directly.
type FinanceRecord struct {
	StudentID  string    `db:"student_id" json:"-"`
	TotalFees  float64   `db:"total_fees" json:"total_fees"`
	PaidAmount float64   `db:"paid_amount" json:"paid_amount"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Balance is the outstanding amount; negative means overpayment.
func (f FinanceRecord) Balance() float64 {
	return f.TotalFees - f.PaidAmount
}

// IsCleared reports whether no balance is outstanding.
func (f FinanceRecord) IsCleared() bool {
	return f.Balance() <= 0
}

// Certificate is the single releasable certificate for a student. It
// is backed by an artifact row targeted at the student and overwritten
// wholesale on re-upload.
type Certificate struct {
	ArtifactID string    `db:"artifact_id" json:"artifact_id"`
	StudentID  string    `db:"-" json:"-"`
	Filename   string    `db:"filename" json:"filename"`
	Payload    []byte    `db:"payload" json:"-"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// CreateStudentRequest provisions a student profile and its portal account.
type CreateStudentRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	AdmissionNo string `json:"admission_no" validate:"required"`
}

// StudentPatch updates only the provided profile fields.
type StudentPatch struct {
	FullName    *string `json:"full_name,omitempty"`
	AdmissionNo *string `json:"admission_no,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// AcademicPatch upserts scores for the named subjects; a null score
// clears the grade without removing the subject.
type AcademicPatch struct {
	Scores []SubjectScorePatch `json:"scores" validate:"required,min=1,dive"`
}

// SubjectScorePatch is one subject entry in an AcademicPatch.
type SubjectScorePatch struct {
	Subject string   `json:"subject" validate:"required"`
	Score   *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
}

// FinancePatch updates only the provided finance fields.
type FinancePatch struct {
	TotalFees  *float64 `json:"total_fees,omitempty" validate:"omitempty,gte=0"`
	PaidAmount *float64 `json:"paid_amount,omitempty" validate:"omitempty,gte=0"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// RosterRow is the flat export shape joining a student with its
// finance record.
type RosterRow struct {
	AdmissionNo string    `db:"admission_no"`
	FullName    string    `db:"full_name"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	TotalFees   float64   `db:"total_fees"`
	PaidAmount  float64   `db:"paid_amount"`
}

// Finance views the row's fee columns as a FinanceRecord.
func (r RosterRow) Finance() FinanceRecord {
	return FinanceRecord{TotalFees: r.TotalFees, PaidAmount: r.PaidAmount}
}

// EligibilityResult reports the certificate release decision for a student.
type EligibilityResult struct {
	Eligible       bool     `json:"eligible"`
	Reason         string   `json:"reason,omitempty"`
	AverageScore   *float64 `json:"average_score,omitempty"`
	Balance        float64  `json:"balance"`
	HasCertificate bool     `json:"has_certificate"`
}
