package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a ledger entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusCompleted, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Entry represents one ledger row.
type Entry struct {
	ID           int64
	AttachmentID int64
	OptimizedID  int64
	Status       Status
	ProcessedAt  *time.Time
}

// Summary aggregates entry counts per status.
type Summary struct {
	Pending   int
	Completed int
	Failed    int
}

// Total returns the sum across all statuses.
func (s Summary) Total() int {
	return s.Pending + s.Completed + s.Failed
}
