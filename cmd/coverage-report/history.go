package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-report/pkg/history"
	"github.com/jupierce/coverage-report/pkg/report"
)

var (
	showFormat string

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect runs recorded with --history-db",
	}

	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}

	historyShowCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Render a recorded run",
		Example: `  # Print run 3 as Markdown
  coverage-report history show 3 --history-db .cov/history.db

  # Write run 3 to coverage.md
  coverage-report history show 3 --format md`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryShow,
	}
)

func init() {
	historyShowCmd.Flags().StringVar(&showFormat, "format", "stdout", "Output target (md, html, stdout)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory(p *pipeline) (*history.Store, error) {
	if p.cfg.History.DB == "" {
		return nil, errors.New("no history database configured (use --history-db or history.db)")
	}
	return history.Open(p.cfg.History.DB)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	p, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer p.logger.Close()

	store, err := openHistory(p)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		p.logger.Info("No runs recorded in %s", p.cfg.History.DB)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-6s  %-19s  %6s  %9s  %s\n", "ID", "GENERATED", "FILES", "FUNCTIONS", "MODULE")
	for _, run := range runs {
		fmt.Fprintf(out, "%-6d  %-19s  %6d  %9d  %s\n",
			run.ID, run.GeneratedAt.Local().Format(report.TimestampLayout), run.Files, run.Records, run.Module)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}
	target, err := report.ParseTarget(showFormat)
	if err != nil {
		return err
	}

	p, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer p.logger.Close()

	if target != report.Markdown {
		p.logger.SetOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	}

	store, err := openHistory(p)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Load(cmd.Context(), id)
	if err != nil {
		return err
	}

	out, err := p.render(run.Table, target)
	if err != nil {
		return err
	}

	switch target {
	case report.Markdown:
		p.logger.Success("Run %d written to %s", run.ID, p.cfg.Markdown.Output)
	case report.HTML, report.StdOut:
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}
