package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func eligibleProfile() *models.StudentProfile {
	return &models.StudentProfile{
		ID: "stu-1",
		Finance: models.FinanceRecord{
			TotalFees:  1000,
			PaidAmount: 1000,
		},
		Scores: []models.SubjectScore{
			{Subject: "Mathematics", Score: f64(70)},
			{Subject: "English", Score: f64(80)},
		},
		Certificate: &models.Certificate{
			ArtifactID: "art-1",
			Payload:    []byte("%PDF-1.4"),
		},
	}
}

func TestEvaluateEligibilityAllConditionsMet(t *testing.T) {
	result := EvaluateEligibility(eligibleProfile())

	assert.True(t, result.Eligible)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.AverageScore)
	assert.InDelta(t, 75, *result.AverageScore, 0.001)
	assert.True(t, result.HasCertificate)
}

func TestEvaluateEligibilityNoCertificate(t *testing.T) {
	profile := eligibleProfile()
	profile.Certificate = nil

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.False(t, result.HasCertificate)
}

func TestEvaluateEligibilityEmptyCertificatePayload(t *testing.T) {
	profile := eligibleProfile()
	profile.Certificate.Payload = nil

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.False(t, result.HasCertificate)
}

func TestEvaluateEligibilityAverageBelowThreshold(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics", Score: f64(55)},
	}

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.Equal(t, appErrors.ReasonScore, result.Reason)
}

func TestEvaluateEligibilityJustBelowThreshold(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics", Score: f64(59.999)},
	}

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.Equal(t, appErrors.ReasonScore, result.Reason)
}

func TestEvaluateEligibilityExactThresholdPasses(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics", Score: f64(60)},
	}

	result := EvaluateEligibility(profile)

	assert.True(t, result.Eligible)
}

func TestEvaluateEligibilityNoGradedSubjects(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = nil

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.Equal(t, appErrors.ReasonScore, result.Reason)
	assert.Nil(t, result.AverageScore)
}

func TestEvaluateEligibilityUngradedSubjectsOnly(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics"},
		{Subject: "English"},
	}

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.Equal(t, appErrors.ReasonScore, result.Reason)
	assert.Nil(t, result.AverageScore)
}

func TestEvaluateEligibilityUngradedSubjectsExcludedFromAverage(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics", Score: f64(90)},
		{Subject: "English"},
	}

	result := EvaluateEligibility(profile)

	require.NotNil(t, result.AverageScore)
	assert.InDelta(t, 90, *result.AverageScore, 0.001)
	assert.True(t, result.Eligible)
}

func TestEvaluateEligibilityOutstandingBalance(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics", Score: f64(75)},
	}
	profile.Finance = models.FinanceRecord{TotalFees: 1000, PaidAmount: 500}

	result := EvaluateEligibility(profile)

	assert.False(t, result.Eligible)
	assert.Equal(t, appErrors.ReasonFinance, result.Reason)
	assert.InDelta(t, 500, result.Balance, 0.001)
}

func TestEvaluateEligibilityScoreReasonTakesPrecedence(t *testing.T) {
	profile := eligibleProfile()
	profile.Scores = []models.SubjectScore{
		{Subject: "Mathematics", Score: f64(40)},
	}
	profile.Finance = models.FinanceRecord{TotalFees: 1000, PaidAmount: 0}

	result := EvaluateEligibility(profile)

	assert.Equal(t, appErrors.ReasonScore, result.Reason)
}

func TestEvaluateEligibilityOverpaymentIsCleared(t *testing.T) {
	profile := eligibleProfile()
	profile.Finance = models.FinanceRecord{TotalFees: 1000, PaidAmount: 1200}

	result := EvaluateEligibility(profile)

	assert.True(t, result.Eligible)
	assert.InDelta(t, -200, result.Balance, 0.001)
}

func TestFinanceRecordDerivedFields(t *testing.T) {
	cases := []struct {
		name    string
		total   float64
		paid    float64
		balance float64
		cleared bool
	}{
		{"unpaid", 1000, 0, 1000, false},
		{"partial", 1000, 400, 600, false},
		{"exact", 1000, 1000, 0, true},
		{"overpaid", 1000, 1500, -500, true},
		{"zero fees", 0, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := models.FinanceRecord{TotalFees: tc.total, PaidAmount: tc.paid}
			assert.InDelta(t, tc.balance, f.Balance(), 0.001)
			assert.Equal(t, tc.cleared, f.IsCleared())
		})
	}
}
