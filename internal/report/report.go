// Package report renders the per-contributor statistics as a text report.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/oss-insights/contrib-stats/internal/domain"
)

// Render writes the contributor report. Contributors are ordered by the
// tuple (pull requests, commits, lines changed), descending; a tie on pull
// requests is broken by commits, then by lines changed. An empty map
// produces a single no-contributions message instead of the table.
func Render(w io.Writer, contribs map[string]*domain.ContributorStats) {
	if len(contribs) == 0 {
		fmt.Fprintln(w, "No contributions found between the specified dates.")
		return
	}

	fmt.Fprintln(w, "\nContributor Statistics:")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, s := range SortContributors(contribs) {
		fmt.Fprintf(w, "- %s: %d pull requests, %d commits, %d lines of code changed\n",
			s.Login, s.PullRequests, s.Commits, s.LinesChanged)
	}
}

// RenderSummary writes aggregate figures across all contributors: totals
// for each counter and the mean and median lines changed per contributor.
// It writes nothing for an empty map.
func RenderSummary(w io.Writer, contribs map[string]*domain.ContributorStats) {
	if len(contribs) == 0 {
		return
	}

	var totalPRs, totalCommits, totalLines int
	lines := make([]float64, 0, len(contribs))
	for _, s := range contribs {
		totalPRs += s.PullRequests
		totalCommits += s.Commits
		totalLines += s.LinesChanged
		lines = append(lines, float64(s.LinesChanged))
	}

	mean, _ := stats.Mean(lines)
	median, _ := stats.Median(lines)

	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "contributors: %d\n", len(contribs))
	fmt.Fprintf(w, "totals: %d pull requests, %d commits, %d lines of code changed\n",
		totalPRs, totalCommits, totalLines)
	fmt.Fprintf(w, "lines changed per contributor: mean %.1f, median %.1f\n", mean, median)
}

// SortContributors flattens the map into a slice ordered by the report's
// descending sort key. Fully tied contributors keep an unspecified relative
// order.
func SortContributors(contribs map[string]*domain.ContributorStats) []*domain.ContributorStats {
	sorted := make([]*domain.ContributorStats, 0, len(contribs))
	for _, s := range contribs {
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PullRequests != sorted[j].PullRequests {
			return sorted[i].PullRequests > sorted[j].PullRequests
		}
		if sorted[i].Commits != sorted[j].Commits {
			return sorted[i].Commits > sorted[j].Commits
		}
		return sorted[i].LinesChanged > sorted[j].LinesChanged
	})
	return sorted
}
