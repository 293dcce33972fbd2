// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oss-insights/contrib-stats/internal/domain"
	"github.com/oss-insights/contrib-stats/internal/gateway"
	"github.com/oss-insights/contrib-stats/internal/report"
	"github.com/oss-insights/contrib-stats/internal/usecase"
)

const dateLayout = "2006-01-02"

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Tallies contributor activity and prints a text report",
	Long: `Tallies per-contributor pull requests, commits and lines changed for a
GitHub repository within an inclusive date range, and prints the
contributors sorted by activity.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		// Warnings (rate-limit waits, abandoned calls) always print;
		// verbose adds page-by-page progress.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.WarnLevel)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		// Get other flags.
		repoURL, _ := cmd.Flags().GetString("repo")
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		summary, _ := cmd.Flags().GetBool("summary")
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN") // empty means unauthenticated
		}

		start, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Invalid --from date format. Please use YYYY-MM-DD.")
			os.Exit(1)
		}
		end, err := time.Parse(dateLayout, toStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Invalid --to date format. Please use YYYY-MM-DD.")
			os.Exit(1)
		}
		window := domain.DateWindow{Start: start, End: end}

		owner, repo, err := splitRepoURL(repoURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid repository URL: %v\n", err)
			os.Exit(1)
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		aggregator := usecase.NewAggregator(githubGateway, logger)

		merged, err := aggregator.Aggregate(ctx, owner, repo, window)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to aggregate contributions: %v\n", err)
			os.Exit(1)
		}

		report.Render(os.Stdout, merged)
		if summary {
			report.RenderSummary(os.Stdout, merged)
		}
	},
}

// splitRepoURL derives owner and repository name from the last two
// path segments of the URL.
func splitRepoURL(raw string) (string, string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("expected at least <owner>/<repo> in %q", raw)
	}
	owner, repo := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("expected at least <owner>/<repo> in %q", raw)
	}
	return owner, repo, nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("repo", "r", "", "Repository URL, e.g. https://github.com/owner/repo (required)")
	reportCmd.Flags().String("from", "", "Start date, inclusive (YYYY-MM-DD, required)")
	reportCmd.Flags().String("to", "", "End date, inclusive (YYYY-MM-DD, required)")
	reportCmd.Flags().String("token", "", "GitHub access token (defaults to GITHUB_TOKEN, empty means unauthenticated)")
	reportCmd.Flags().Bool("summary", false, "Print aggregate figures after the report")
	reportCmd.MarkFlagRequired("repo")
	reportCmd.MarkFlagRequired("from")
	reportCmd.MarkFlagRequired("to")
}
