package entity

// Status is the lifecycle state of a queue item. Progression is monotonic
// except the retry path: processing goes back to pending while retry budget
// remains. Completed, Failed and Unroutable are terminal.
type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"

	// Unroutable marks items whose (source, event) pair has no registered
	// handler. Terminal on first attempt — the retry budget is not spent
	// on events no route can ever appear for.
	Unroutable Status = "unroutable"
)

// Terminal reports whether no further worker sweep may mutate the item.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == Unroutable
}
