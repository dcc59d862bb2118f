package service

import (
	appErrors "github.com/twoem/portal-api/pkg/errors"

	"github.com/twoem/portal-api/internal/models"
)

// EvaluateEligibility decides whether a student may retrieve their
// certificate. All conditions must hold: the certificate payload
// exists, the academic average is defined and at least 60, and the
// finance record is cleared. Pure and safe to call repeatedly.
func EvaluateEligibility(profile *models.StudentProfile) models.EligibilityResult {
	result := models.EligibilityResult{
		Balance:        profile.Finance.Balance(),
		HasCertificate: profile.Certificate != nil && len(profile.Certificate.Payload) > 0,
	}

	if avg, ok := models.AverageScore(profile.Scores); ok {
		result.AverageScore = &avg
	}

	if !result.HasCertificate {
		return result
	}
	// An undefined average fails the threshold by definition.
	if result.AverageScore == nil || *result.AverageScore < 60 {
		result.Reason = appErrors.ReasonScore
		return result
	}
	if !profile.Finance.IsCleared() {
		result.Reason = appErrors.ReasonFinance
		return result
	}

	result.Eligible = true
	return result
}
