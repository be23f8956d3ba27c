package models

import "time"

// CycleReport is the outcome of one repost cycle. It is handed to the
// notifier once and then discarded.
type CycleReport struct {
	StartedAt   time.Time
	Duration    time.Duration
	Success     bool
	Selected    *VideoCandidate
	Caption     string
	VideoURL    string
	MediaID     string
	ErrorReason string
}
