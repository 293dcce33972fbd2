// Package gateway provides a gateway to the GitHub REST API,
// abstracting away the underlying HTTP client.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/oss-insights/contrib-stats/internal/domain"
)

const (
	// pageSize is the fixed page size used on every list request.
	pageSize = 100

	// defaultRateLimitWait is how long a paged fetch blocks after a
	// rate-limited response before re-requesting the same page.
	defaultRateLimitWait = 60 * time.Second
)

// Fetcher defines the behavior of a gateway for fetching repository
// activity from GitHub.
type Fetcher interface {
	// FetchPullRequests returns every pull request the list endpoint
	// reports for the repository within the window, in API order.
	FetchPullRequests(ctx context.Context, owner, repo string, window domain.DateWindow) ([]*github.PullRequest, error)
	// FetchCommits returns every commit the list endpoint reports for the
	// repository within the window, in API order.
	FetchCommits(ctx context.Context, owner, repo string, window domain.DateWindow) ([]*github.RepositoryCommit, error)
	// FetchPullRequestFiles returns the changed files of one pull request,
	// or nil if the call fails.
	FetchPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error)
	// FetchCommitStats returns the addition and deletion counts of one
	// commit, or (0, 0) if the call fails or the fields are absent.
	FetchCommitStats(ctx context.Context, owner, repo, sha string) (additions, deletions int, err error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	client        *github.Client
	logger        *logrus.Logger
	rateLimitWait time.Duration
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// An empty token means unauthenticated requests.
func NewGitHubGateway(token string, logger *logrus.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	httpClient := &http.Client{Transport: rateLimitWaiter}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient.Transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		}
	}
	return &GitHubGateway{
		client:        github.NewClient(httpClient),
		logger:        logger,
		rateLimitWait: defaultRateLimitWait,
	}, nil
}

// FetchPullRequests lists the repository's pull requests page by page.
func (g *GitHubGateway) FetchPullRequests(ctx context.Context, owner, repo string, window domain.DateWindow) ([]*github.PullRequest, error) {
	g.logger.Debugf("fetching pull requests for %s/%s", owner, repo)
	return fetchAllPages[*github.PullRequest](ctx, g, fmt.Sprintf("repos/%s/%s/pulls", owner, repo), window)
}

// FetchCommits lists the repository's commits page by page.
func (g *GitHubGateway) FetchCommits(ctx context.Context, owner, repo string, window domain.DateWindow) ([]*github.RepositoryCommit, error) {
	g.logger.Debugf("fetching commits for %s/%s", owner, repo)
	return fetchAllPages[*github.RepositoryCommit](ctx, g, fmt.Sprintf("repos/%s/%s/commits", owner, repo), window)
}

// FetchPullRequestFiles fetches the changed-file list of a single pull
// request in one call. A failed call is logged and treated as an empty
// list; there is no retry.
func (g *GitHubGateway) FetchPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error) {
	files, _, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, &github.ListOptions{PerPage: pageSize})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warnf("failed to fetch files for pull request #%d: %v", number, err)
		return nil, nil
	}
	return files, nil
}

// FetchCommitStats fetches a single commit's detail resource and extracts
// its addition and deletion counts. A failed call is logged and counted as
// zero contribution; there is no retry.
func (g *GitHubGateway) FetchCommitStats(ctx context.Context, owner, repo, sha string) (int, int, error) {
	commit, _, err := g.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		g.logger.Warnf("failed to fetch details for commit %s: %v", sha, err)
		return 0, 0, nil
	}
	stats := commit.GetStats()
	return stats.GetAdditions(), stats.GetDeletions(), nil
}

// fetchAllPages accumulates every item of a paginated list endpoint,
// requesting fixed-size pages until one comes back short. A rate-limited
// response blocks for the gateway's wait interval and retries the same page
// indefinitely; any other non-success response ends the loop early and the
// items gathered so far are returned without error.
func fetchAllPages[T any](ctx context.Context, g *GitHubGateway, path string, window domain.DateWindow) ([]T, error) {
	items := make([]T, 0, pageSize)
	page := 1
	for {
		req, err := g.client.NewRequest(http.MethodGet, listURL(path, window, page), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
		}

		var pageItems []T
		resp, err := g.client.Do(ctx, req, &pageItems)
		if err != nil {
			if isRateLimited(resp) {
				g.logger.Warnf("rate limit exceeded on %s, waiting %s before retrying page %d", path, g.rateLimitWait, page)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(g.rateLimitWait):
				}
				continue // re-request the same page
			}
			if resp != nil {
				g.logger.Warnf("request for %s page %d failed with status %d, keeping %d items fetched so far", path, page, resp.StatusCode, len(items))
				return items, nil
			}
			return nil, fmt.Errorf("request for %s failed: %w", path, err)
		}

		items = append(items, pageItems...)
		if len(pageItems) < pageSize {
			return items, nil
		}
		page++
		g.logger.Debugf("fetching page %d of %s", page, path)
	}
}

// listURL builds the relative URL for one page of a list endpoint. The same
// four query parameters are sent to every list endpoint.
func listURL(path string, window domain.DateWindow, page int) string {
	q := url.Values{}
	q.Set("since", window.Since().Format(time.RFC3339))
	q.Set("until", window.Until().Format(time.RFC3339))
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	return path + "?" + q.Encode()
}

// isRateLimited reports whether a response indicates rate limiting. The API
// answers both primary and secondary limits with 403, so the status code is
// the signal rather than the typed error.
func isRateLimited(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusForbidden
}
