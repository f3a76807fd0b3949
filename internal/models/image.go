package models

import "time"

type ImageStatus string

const (
	ImageStatusPending    ImageStatus = "pending"
	ImageStatusGenerating ImageStatus = "generating"
	ImageStatusCompleted  ImageStatus = "completed"
	ImageStatusFailed     ImageStatus = "failed"
)

func (s ImageStatus) Terminal() bool {
	return s == ImageStatusCompleted || s == ImageStatusFailed
}

// GeneratedImage is one slide's regenerated output within a set. SlideIndex
// is the position in the source video's original slide ordering, so a set
// that selected slides 0, 2 and 4 holds three rows with those indexes.
type GeneratedImage struct {
	ID             string
	SetID          string
	SlideIndex     int
	ImageURL       *string
	PromptOverride *string
	OverlayURL     *string
	Status         ImageStatus
	ErrorMessage   string
	CreatedAt      time.Time
}
