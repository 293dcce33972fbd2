// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// UnknownLogin is the identity assigned to items whose author cannot be
// resolved to a platform login or a commit author name.
const UnknownLogin = "unknown"

// ContributorStats holds the activity counters for a single contributor.
// It is the core domain entity of this application.
//
// LinesChanged accumulates both pull-request file-change totals and commit
// addition+deletion totals; the two sources are additive and never
// deduplicated, so a commit that also belongs to a counted pull request
// contributes its line delta twice.
type ContributorStats struct {
	Login        string
	PullRequests int
	Commits      int
	LinesChanged int
}

// DateWindow is an inclusive pair of calendar dates bounding a query.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Since returns the lower bound of the window as a UTC instant at midnight
// of the start date. This is the value sent as the `since` query parameter.
func (w DateWindow) Since() time.Time {
	return time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
}

// Until returns the upper bound of the window as a UTC instant at 23:59:59
// of the end date. This is the value sent as the `until` query parameter.
func (w DateWindow) Until() time.Time {
	return time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 23, 59, 59, 0, time.UTC)
}
