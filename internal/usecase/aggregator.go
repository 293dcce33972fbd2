// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oss-insights/contrib-stats/internal/domain"
	"github.com/oss-insights/contrib-stats/internal/gateway"
)

// defaultDetailWorkers bounds the fan-out of per-item detail calls
// (pull-request files, commit stats).
const defaultDetailWorkers = 4

// Aggregator is the use case for tallying per-contributor activity.
// It orchestrates the fetching and folding of data.
type Aggregator struct {
	fetcher       gateway.Fetcher
	logger        *logrus.Logger
	detailWorkers int
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		fetcher:       fetcher,
		logger:        logger,
		detailWorkers: defaultDetailWorkers,
	}
}

// Aggregate fetches pull-request and commit activity for the repository
// within the window and returns the merged per-contributor counters.
// The two endpoint aggregations are independent and run concurrently;
// folding is commutative over items, so the result is identical to a
// sequential run.
func (a *Aggregator) Aggregate(ctx context.Context, owner, repo string, window domain.DateWindow) (map[string]*domain.ContributorStats, error) {
	a.logger.Debugf("aggregating contributions for %s/%s", owner, repo)

	var prStats, commitStats map[string]*domain.ContributorStats

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		prStats, err = a.AggregatePullRequests(egCtx, owner, repo, window)
		return err
	})
	eg.Go(func() error {
		var err error
		commitStats, err = a.AggregateCommits(egCtx, owner, repo, window)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return MergeStats(prStats, commitStats), nil
}

// AggregatePullRequests folds the repository's pull requests into
// per-contributor counters. Each pull request counts once for its author
// (the platform login, or "unknown" when absent) and contributes the sum of
// its changed files' change counts to LinesChanged, fetched one call per
// item with bounded concurrency.
func (a *Aggregator) AggregatePullRequests(ctx context.Context, owner, repo string, window domain.DateWindow) (map[string]*domain.ContributorStats, error) {
	prs, err := a.fetcher.FetchPullRequests(ctx, owner, repo, window)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*domain.ContributorStats)
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.detailWorkers)

	for _, pr := range prs {
		login := pr.GetUser().GetLogin()
		if login == "" {
			login = domain.UnknownLogin
		}

		mu.Lock()
		entry := ensureEntry(stats, login)
		entry.PullRequests++
		mu.Unlock()

		number := pr.GetNumber()
		eg.Go(func() error {
			files, err := a.fetcher.FetchPullRequestFiles(egCtx, owner, repo, number)
			if err != nil {
				return err
			}
			changed := 0
			for _, f := range files {
				changed += f.GetChanges()
			}
			mu.Lock()
			entry.LinesChanged += changed
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debugf("aggregated %d pull requests across %d contributors", len(prs), len(stats))
	return stats, nil
}

// AggregateCommits folds the repository's commits into per-contributor
// counters. The identity is the platform author login when present, the raw
// commit author name otherwise, and "unknown" as the last resort. Each
// commit counts once and contributes additions+deletions to LinesChanged,
// fetched one detail call per item with bounded concurrency.
func (a *Aggregator) AggregateCommits(ctx context.Context, owner, repo string, window domain.DateWindow) (map[string]*domain.ContributorStats, error) {
	commits, err := a.fetcher.FetchCommits(ctx, owner, repo, window)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*domain.ContributorStats)
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.detailWorkers)

	for _, c := range commits {
		login := c.GetAuthor().GetLogin()
		if login == "" {
			login = c.GetCommit().GetAuthor().GetName()
		}
		if login == "" {
			login = domain.UnknownLogin
		}

		mu.Lock()
		entry := ensureEntry(stats, login)
		entry.Commits++
		mu.Unlock()

		sha := c.GetSHA()
		eg.Go(func() error {
			additions, deletions, err := a.fetcher.FetchCommitStats(egCtx, owner, repo, sha)
			if err != nil {
				return err
			}
			mu.Lock()
			entry.LinesChanged += additions + deletions
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debugf("aggregated %d commits across %d contributors", len(commits), len(stats))
	return stats, nil
}

// MergeStats combines per-endpoint counter maps by union of keys, adding
// counters field by field. A contributor present in only one source keeps
// zero values for the other's fields.
func MergeStats(sources ...map[string]*domain.ContributorStats) map[string]*domain.ContributorStats {
	merged := make(map[string]*domain.ContributorStats)
	for _, source := range sources {
		for login, s := range source {
			entry := ensureEntry(merged, login)
			entry.PullRequests += s.PullRequests
			entry.Commits += s.Commits
			entry.LinesChanged += s.LinesChanged
		}
	}
	return merged
}

func ensureEntry(stats map[string]*domain.ContributorStats, login string) *domain.ContributorStats {
	if _, ok := stats[login]; !ok {
		stats[login] = &domain.ContributorStats{Login: login}
	}
	return stats[login]
}
