package domain

import "time"

// Resolution tags which side won a conflict.
type Resolution string

const (
	ResolutionLocal  Resolution = "local"
	ResolutionRemote Resolution = "remote"
	ResolutionMerge  Resolution = "merge"
)

// Conflict pairs a local record with its remote counterpart.
type Conflict struct {
	Local  Record
	Remote Record
}

// Resolved is the authoritative payload chosen for a conflict.
type Resolved struct {
	Payload    map[string]any
	UpdatedAt  time.Time
	Resolution Resolution
}
