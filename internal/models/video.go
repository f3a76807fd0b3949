package models

import "time"

// SourceVideo is one ingested TikTok carousel post. OriginalImages holds the
// slide image URLs in carousel order; slide_index on generated images refers
// into this list.
type SourceVideo struct {
	ID             string
	ShareURL       string
	AuthorHandle   string
	Caption        string
	CoverURL       string
	OriginalImages []string
	CreatedAt      time.Time
}
