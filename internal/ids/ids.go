package ids

import "github.com/segmentio/ksuid"

// New returns a sortable unique identifier for a row.
func New() string {
	return ksuid.New().String()
}
