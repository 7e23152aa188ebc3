package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	gh "github.com/google/go-github/v60/github"
	"github.com/spf13/cobra"

	"github.com/drewdunne/prsentry/internal/github"
)

var (
	prsCommitFlag     string
	statusContextFlag string
)

var filesCmd = &cobra.Command{
	Use:   "files OWNER/REPO SHA",
	Short: "List the files of the pull requests containing a commit",
	Long: `Search the pull requests that contain SHA and print every changed file
of those whose latest commit is SHA. Pull requests that have moved past SHA
are reported as stale.`,
	Args: cobra.ExactArgs(2),
	RunE: runFiles,
}

var prsCmd = &cobra.Command{
	Use:   "prs OWNER/REPO",
	Short: "List open pull requests",
	Args:  cobra.ExactArgs(1),
	RunE:  runPRs,
}

var statusCmd = &cobra.Command{
	Use:   "status OWNER/REPO REF",
	Short: "Show the commit statuses of a ref",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

var compareCmd = &cobra.Command{
	Use:   "compare OWNER/REPO BASE HEAD",
	Short: "Compare two commits",
	Args:  cobra.ExactArgs(3),
	RunE:  runCompare,
}

func init() {
	prsCmd.Flags().StringVar(&prsCommitFlag, "commit", "", "Only list pull requests containing this commit")
	statusCmd.Flags().StringVar(&statusContextFlag, "context", "", "Only show the status reported under this context")

	rootCmd.AddCommand(filesCmd, prsCmd, statusCmd, compareCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	owner, repo, err := splitRepo(args[0])
	if err != nil {
		return err
	}
	client, stop, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer stop()

	results, err := client.SearchPullRequestsWithFiles(cmd.Context(), owner, repo, args[1])
	if err != nil {
		return err
	}
	return printPullRequestFiles(cmd.OutOrStdout(), results)
}

// printPullRequestFiles writes one header line per pull request followed by
// its indented file paths.
func printPullRequestFiles(w io.Writer, results []github.PullRequestFiles) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No pull requests found.")
		return err
	}
	for _, pr := range results {
		if pr.Stale() {
			if _, err := fmt.Fprintf(w, "#%d stale (latest commit %s)\n", pr.Number, shortSHA(pr.LatestCommit)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "#%d %d files\n", pr.Number, len(pr.Files)); err != nil {
			return err
		}
		for _, f := range pr.Files {
			if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
				return err
			}
		}
	}
	return nil
}

func runPRs(cmd *cobra.Command, args []string) error {
	owner, repo, err := splitRepo(args[0])
	if err != nil {
		return err
	}
	client, stop, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer stop()

	ctx := cmd.Context()
	var prs []*gh.PullRequest
	if prsCommitFlag != "" {
		numbers, err := client.SearchPullRequestsByCommit(ctx, owner, repo, prsCommitFlag)
		if err != nil {
			return err
		}
		for _, n := range numbers {
			pr, err := client.GetPullRequest(ctx, owner, repo, n)
			if err != nil {
				return err
			}
			prs = append(prs, pr)
		}
	} else {
		for pr, err := range client.ListOpenPullRequests(ctx, owner, repo) {
			if err != nil {
				return err
			}
			prs = append(prs, pr)
		}
	}

	return renderPullRequests(cmd.OutOrStdout(), prs)
}

// renderPullRequests renders a lipgloss table of pull requests.
func renderPullRequests(w io.Writer, prs []*gh.PullRequest) error {
	if len(prs) == 0 {
		_, err := fmt.Fprintln(w, "No pull requests found.")
		return err
	}

	purple := lipgloss.Color("99")
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, len(prs))
	for i, pr := range prs {
		updated := ""
		if !pr.GetUpdatedAt().IsZero() {
			updated = humanize.Time(pr.GetUpdatedAt().Time)
		}
		rows[i] = []string{
			fmt.Sprintf("%d", pr.GetNumber()),
			truncate(pr.GetTitle(), 40),
			pr.GetUser().GetLogin(),
			shortSHA(pr.GetHead().GetSHA()),
			pr.GetState(),
			updated,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("#", "Title", "Author", "Head", "State", "Updated").
		Rows(rows...)

	_, err := fmt.Fprintln(w, t)
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	owner, repo, err := splitRepo(args[0])
	if err != nil {
		return err
	}
	client, stop, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer stop()

	combined, err := client.GetCommitStatus(cmd.Context(), owner, repo, args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusContextFlag != "" {
		status := github.FindStatus(combined, statusContextFlag)
		if status == nil {
			return fmt.Errorf("no %q status on %s", statusContextFlag, args[1])
		}
		_, err := fmt.Fprintf(out, "%s: %s %s\n", status.GetContext(), status.GetState(), status.GetDescription())
		return err
	}

	return printCombinedStatus(out, args[1], combined)
}

func printCombinedStatus(w io.Writer, ref string, combined *gh.CombinedStatus) error {
	if _, err := fmt.Fprintf(w, "%s is %s\n", ref, combined.GetState()); err != nil {
		return err
	}
	for _, s := range combined.Statuses {
		if _, err := fmt.Fprintf(w, "  %s: %s %s\n", s.GetContext(), s.GetState(), s.GetDescription()); err != nil {
			return err
		}
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	owner, repo, err := splitRepo(args[0])
	if err != nil {
		return err
	}
	client, stop, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	defer stop()

	ctx := cmd.Context()
	base, head := args[1], args[2]
	cmp, err := client.CompareCommits(ctx, owner, repo, base, head)
	if err != nil {
		return err
	}
	date, err := client.CommitDate(ctx, owner, repo, head)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s...%s: %s, %d ahead, %d behind (head committed %s)\n",
		base, head, cmp.Status, cmp.AheadBy, cmp.BehindBy, humanize.Time(date))
	return err
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
