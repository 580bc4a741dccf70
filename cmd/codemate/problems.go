package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codemate/codemate/internal/problem"
	"github.com/codemate/codemate/internal/tier"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "Browse solved.ac problems",
}

var (
	searchQuery string
	searchTags  []string
	searchMin   int
	searchMax   int
	searchPage  int
	searchSize  int
)

var problemsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search problems",
	RunE:  runProblemsSearch,
}

var problemsShowCmd = &cobra.Command{
	Use:   "show <problemId>",
	Short: "Show one problem",
	Args:  cobra.ExactArgs(1),
	RunE:  runProblemsShow,
}

var problemsTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List searchable tags",
	RunE:  runProblemsTags,
}

var todayRefresh bool

var problemsTodayCmd = &cobra.Command{
	Use:   "today <teamId>",
	Short: "Show a team's recommended problems for today",
	Args:  cobra.ExactArgs(1),
	RunE:  runProblemsToday,
}

func init() {
	problemsSearchCmd.Flags().StringVar(&searchQuery, "query", "", "title search")
	problemsSearchCmd.Flags().StringSliceVar(&searchTags, "tags", nil, "filter by tags")
	problemsSearchCmd.Flags().IntVar(&searchMin, "min", 0, "minimum tier")
	problemsSearchCmd.Flags().IntVar(&searchMax, "max", 0, "maximum tier")
	problemsSearchCmd.Flags().IntVar(&searchPage, "page", 0, "result page")
	problemsSearchCmd.Flags().IntVar(&searchSize, "size", 0, "page size")
	problemsTodayCmd.Flags().BoolVar(&todayRefresh, "refresh", false, "regenerate the batch (leader only)")

	problemsCmd.AddCommand(problemsSearchCmd, problemsShowCmd, problemsTagsCmd, problemsTodayCmd)
	rootCmd.AddCommand(problemsCmd)
}

func runProblemsSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	result, err := a.problems.Search(cmd.Context(), problem.SearchRequest{
		Query:    searchQuery,
		Tags:     searchTags,
		MinLevel: searchMin,
		MaxLevel: searchMax,
		Page:     searchPage,
		Size:     searchSize,
	})
	if err != nil {
		return err
	}
	if len(result.Problems) == 0 {
		fmt.Println("No problems found.")
		return nil
	}
	printProblems(result.Problems)
	fmt.Printf("\nPage %d of %d (%d problems)\n", result.Page+1, result.TotalPages, result.TotalElements)
	return nil
}

func printProblems(problems []problem.Problem) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tTITLE\tTAGS")
	for _, p := range problems {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ProblemID, tier.Name(p.Level), p.Title, strings.Join(p.Tags, ","))
	}
	w.Flush()
}

func runProblemsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid problem id %q", args[0])
	}
	p, err := a.problems.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Problem %d: %s\n", p.ProblemID, p.Title)
	fmt.Printf("Tier:     %s\n", tier.Name(p.Level))
	if len(p.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Printf("Solvers:  %d (avg %.1f tries)\n", p.AcceptedUserCount, p.AverageTries)
	fmt.Printf("Link:     https://www.acmicpc.net/problem/%d\n", p.ProblemID)
	return nil
}

func runProblemsTags(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	tags, err := a.problems.Tags(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tPROBLEMS")
	for _, tag := range tags {
		fmt.Fprintf(w, "%s\t%s\t%d\n", tag.Key, tag.DisplayName, tag.Count)
	}
	w.Flush()
	return nil
}

func runProblemsToday(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireVerified(); err != nil {
		return err
	}

	id, err := parseTeamID(args[0])
	if err != nil {
		return err
	}

	var batch problem.TodayProblems
	if todayRefresh {
		batch, err = a.problems.RefreshToday(cmd.Context(), id)
	} else {
		batch, err = a.problems.Today(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	if len(batch.Problems) == 0 {
		fmt.Println("No problems recommended today.")
		return nil
	}
	printProblems(batch.Problems)
	return nil
}
