package generation

import (
	"testing"

	"slideflow/internal/models"
)

func TestDeriveSetStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.ImageStatus
		want     models.SetStatus
	}{
		{
			name:     "all completed",
			statuses: []models.ImageStatus{models.ImageStatusCompleted, models.ImageStatusCompleted},
			want:     models.SetStatusCompleted,
		},
		{
			name:     "one failed among completed",
			statuses: []models.ImageStatus{models.ImageStatusCompleted, models.ImageStatusFailed, models.ImageStatusCompleted},
			want:     models.SetStatusPartial,
		},
		{
			name:     "all failed",
			statuses: []models.ImageStatus{models.ImageStatusFailed, models.ImageStatusFailed},
			want:     models.SetStatusPartial,
		},
		{
			name:     "pending outranks failures",
			statuses: []models.ImageStatus{models.ImageStatusFailed, models.ImageStatusPending},
			want:     models.SetStatusProcessing,
		},
		{
			name:     "generating keeps set in flight",
			statuses: []models.ImageStatus{models.ImageStatusCompleted, models.ImageStatusGenerating},
			want:     models.SetStatusProcessing,
		},
		{
			name:     "no children",
			statuses: nil,
			want:     models.SetStatusCompleted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveSetStatus(tc.statuses); got != tc.want {
				t.Errorf("DeriveSetStatus(%v) = %s, want %s", tc.statuses, got, tc.want)
			}
		})
	}
}

func TestDeriveSetStatusNeverQueued(t *testing.T) {
	terminal := []models.ImageStatus{
		models.ImageStatusCompleted,
		models.ImageStatusFailed,
	}
	for _, a := range terminal {
		for _, b := range terminal {
			got := DeriveSetStatus([]models.ImageStatus{a, b})
			if got != models.SetStatusCompleted && got != models.SetStatusPartial {
				t.Errorf("terminal children %v/%v derived %s, want completed or partial", a, b, got)
			}
		}
	}
}
