package models

import "time"

type SetStatus string

const (
	SetStatusQueued      SetStatus = "queued"
	SetStatusProcessing  SetStatus = "processing"
	SetStatusCompleted   SetStatus = "completed"
	SetStatusPartial     SetStatus = "partial"
	SetStatusFailed      SetStatus = "failed"
	SetStatusEditorDraft SetStatus = "editor_draft"
)

// Terminal reports whether the status can no longer change through the
// generation pipeline. editor_draft counts: drafts are operator-owned and
// never touched by the queue.
func (s SetStatus) Terminal() bool {
	switch s {
	case SetStatusCompleted, SetStatusPartial, SetStatusFailed, SetStatusEditorDraft:
		return true
	}
	return false
}

// GenerationSet is one requested run of slide regeneration for a source
// video. Sets created by the same request share a BatchID.
type GenerationSet struct {
	ID                string
	SourceVideoID     *string
	BatchID           string
	PromptFirstSlide  string
	PromptOtherSlides string
	QualityInput      string
	QualityOutput     string
	OutputFormat      string
	SelectedIndexes   []int
	Status            SetStatus
	ProgressCurrent   int
	ProgressTotal     int
	Channel           string
	ScheduledAt       *time.Time
	PostedAt          *time.Time
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
