package generation

import "slideflow/internal/models"

// DeriveSetStatus folds child image statuses into the set-level status.
// While any child is still pending or generating the set is processing.
// Once every child is terminal the set is partial when at least one child
// failed, completed otherwise. failed at the set level is reserved for
// chain-level breakage and never derived from child rows.
func DeriveSetStatus(statuses []models.ImageStatus) models.SetStatus {
	anyFailed := false
	for _, status := range statuses {
		switch status {
		case models.ImageStatusPending, models.ImageStatusGenerating:
			return models.SetStatusProcessing
		case models.ImageStatusFailed:
			anyFailed = true
		}
	}
	if anyFailed {
		return models.SetStatusPartial
	}
	return models.SetStatusCompleted
}
