package models

import "time"

type HookVideoStatus string

const (
	HookVideoStatusPending    HookVideoStatus = "pending"
	HookVideoStatusGenerating HookVideoStatus = "generating"
	HookVideoStatusCompleted  HookVideoStatus = "completed"
	HookVideoStatusFailed     HookVideoStatus = "failed"
)

func (s HookVideoStatus) Terminal() bool {
	return s == HookVideoStatusCompleted || s == HookVideoStatusFailed
}

type HookSessionStatus string

const (
	HookSessionStatusPending    HookSessionStatus = "pending"
	HookSessionStatusProcessing HookSessionStatus = "processing"
	HookSessionStatusCompleted  HookSessionStatus = "completed"
	HookSessionStatusFailed     HookSessionStatus = "failed"
)

// HookSession groups the hook videos submitted together in one request.
type HookSession struct {
	ID        string
	Status    HookSessionStatus
	CreatedAt time.Time
}

// HookGeneratedVideo is one image-to-video generation delegated to
// Replicate. PredictionID is the sole correlation key the webhook
// reconciler uses and is unique across rows.
type HookGeneratedVideo struct {
	ID             string
	SessionID      string
	SourceImageURL string
	PredictionID   *string
	Status         HookVideoStatus
	VideoURL       *string
	ErrorMessage   string
	UsedAt         *time.Time
	CreatedAt      time.Time
}
