package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss-insights/contrib-stats/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
// The rate-limit wait is shrunk so retry tests run fast.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gateway := &GitHubGateway{
		client:        restClient,
		logger:        logger,
		rateLimitWait: 5 * time.Millisecond,
	}
	return gateway, server
}

func testWindow() domain.DateWindow {
	return domain.DateWindow{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

// writeItemPage writes a JSON array of n minimal list items.
func writeItemPage(t *testing.T, w http.ResponseWriter, n int) {
	t.Helper()
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"number": i + 1,
			"user":   map[string]any{"login": "alice"},
		}
	}
	require.NoError(t, json.NewEncoder(w).Encode(items))
}

func TestGitHubGateway_FetchPullRequests_Pagination(t *testing.T) {
	testCases := []struct {
		name          string
		pageSizes     map[string]int // page number -> item count
		expectedItems int
		expectedCalls int
	}{
		{
			name:          "full pages followed by a short page",
			pageSizes:     map[string]int{"1": 100, "2": 100, "3": 7},
			expectedItems: 207,
			expectedCalls: 3,
		},
		{
			name:          "short first page stops after one request",
			pageSizes:     map[string]int{"1": 3},
			expectedItems: 3,
			expectedCalls: 1,
		},
		{
			name:          "empty first page",
			pageSizes:     map[string]int{"1": 0},
			expectedItems: 0,
			expectedCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			handler := func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, "/repos/any-owner/any-repo/pulls", r.URL.Path)
				q := r.URL.Query()
				assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("since"))
				assert.Equal(t, "2024-01-31T23:59:59Z", q.Get("until"))
				assert.Equal(t, "100", q.Get("per_page"))
				writeItemPage(t, w, tc.pageSizes[q.Get("page")])
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			prs, err := gateway.FetchPullRequests(context.Background(), "any-owner", "any-repo", testWindow())

			assert.NoError(t, err)
			assert.Len(t, prs, tc.expectedItems)
			assert.Equal(t, tc.expectedCalls, calls)
		})
	}
}

func TestGitHubGateway_FetchPullRequests_RateLimitRetry(t *testing.T) {
	// The first request is rate limited; the retry must target the same page.
	calls := 0
	var pagesRequested []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		pagesRequested = append(pagesRequested, r.URL.Query().Get("page"))
		if calls == 1 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			return
		}
		writeItemPage(t, w, 2)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	prs, err := gateway.FetchPullRequests(context.Background(), "any-owner", "any-repo", testWindow())

	assert.NoError(t, err)
	assert.Len(t, prs, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"1", "1"}, pagesRequested)
}

func TestGitHubGateway_FetchPullRequests_RateLimitWaitIsCancellable(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()
	gateway.rateLimitWait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gateway.FetchPullRequests(ctx, "any-owner", "any-repo", testWindow())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGitHubGateway_FetchCommits_PartialResultsOnServerError(t *testing.T) {
	// A non-success, non-rate-limit status ends pagination early and keeps
	// whatever was accumulated, without surfacing an error.
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/any-owner/any-repo/commits", r.URL.Path)
		if r.URL.Query().Get("page") == "1" {
			writeItemPage(t, w, 100)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "Internal Server Error"}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	commits, err := gateway.FetchCommits(context.Background(), "any-owner", "any-repo", testWindow())

	assert.NoError(t, err)
	assert.Len(t, commits, 100)
}

func TestGitHubGateway_FetchCommitStats(t *testing.T) {
	testCases := []struct {
		name              string
		handlerFunc       func(w http.ResponseWriter, r *http.Request)
		expectedAdditions int
		expectedDeletions int
	}{
		{
			name: "happy path - stats extracted from the detail resource",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/any-owner/any-repo/commits/abc123", r.URL.Path)
				fmt.Fprint(w, `{"sha": "abc123", "stats": {"additions": 5, "deletions": 3}}`)
			},
			expectedAdditions: 5,
			expectedDeletions: 3,
		},
		{
			name: "absent stats field counts as zero",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"sha": "abc123"}`)
			},
		},
		{
			name: "failed call counts as zero with no error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			additions, deletions, err := gateway.FetchCommitStats(context.Background(), "any-owner", "any-repo", "abc123")

			assert.NoError(t, err)
			assert.Equal(t, tc.expectedAdditions, additions)
			assert.Equal(t, tc.expectedDeletions, deletions)
		})
	}
}

func TestGitHubGateway_FetchPullRequestFiles(t *testing.T) {
	testCases := []struct {
		name          string
		handlerFunc   func(w http.ResponseWriter, r *http.Request)
		expectedFiles int
	}{
		{
			name: "happy path - one call returns the changed files",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/any-owner/any-repo/pulls/7/files", r.URL.Path)
				assert.Equal(t, strconv.Itoa(pageSize), r.URL.Query().Get("per_page"))
				fmt.Fprint(w, `[{"filename": "a.go", "changes": 7}, {"filename": "b.go", "changes": 4}]`)
			},
			expectedFiles: 2,
		},
		{
			name: "failed call yields no files and no error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectedFiles: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			files, err := gateway.FetchPullRequestFiles(context.Background(), "any-owner", "any-repo", 7)

			assert.NoError(t, err)
			assert.Len(t, files, tc.expectedFiles)
		})
	}
}
