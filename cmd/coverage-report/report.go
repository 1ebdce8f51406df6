package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-report/pkg/report"
)

var (
	markdownCmd = &cobra.Command{
		Use:   "markdown [profile]",
		Short: "Write the Markdown report to coverage.md",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTarget(cmd, args, report.Markdown)
		},
	}

	stdoutCmd = &cobra.Command{
		Use:   "stdout [profile]",
		Short: "Print the Markdown report without writing any file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTarget(cmd, args, report.StdOut)
		},
	}

	jsonCmd = &cobra.Command{
		Use:   "json [profile]",
		Short: "Write coverage.html and print the coverage table as JSON",
		Long: `Render the HTML report without capturing it, then print the parsed
coverage table as JSON for tooling that wants machine-readable output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTarget(cmd, args, report.HTML)
		},
	}
)

func init() {
	rootCmd.AddCommand(markdownCmd)
	rootCmd.AddCommand(stdoutCmd)
	rootCmd.AddCommand(jsonCmd)
}

// setup loads config and logger and builds the pipeline for a command.
func setup(cmd *cobra.Command, args []string) (*pipeline, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	logger, err := createLogger(cfg)
	if err != nil {
		return nil, err
	}
	return newPipeline(cfg, logger), nil
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	p, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer p.logger.Close()

	ctx := cmd.Context()

	p.logger.Progress("Parsing %s", p.cfg.Profile)
	table, _, err := p.parse(ctx)
	if err != nil {
		return err
	}

	p.logger.Progress("Rendering %s", p.cfg.HTML.Output)
	image, err := p.screenshot(ctx, table)
	if err != nil {
		return err
	}

	p.logger.Success("Coverage screenshot saved to %s", image)
	return nil
}

func runTarget(cmd *cobra.Command, args []string, target report.Target) error {
	p, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer p.logger.Close()

	if target != report.Markdown {
		// stdout carries the report itself
		p.logger.SetOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	}

	table, _, err := p.parse(cmd.Context())
	if err != nil {
		return err
	}

	out, err := p.render(table, target)
	if err != nil {
		return err
	}

	switch target {
	case report.Markdown:
		p.logger.Success("Markdown report written to %s", p.cfg.Markdown.Output)
	case report.HTML:
		p.logger.Info("HTML report written to %s", p.cfg.HTML.Output)
		fmt.Fprintln(cmd.OutOrStdout(), out)
	case report.StdOut:
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}
