package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	analyzeBusiness businessFlags
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [competitor-domain]",
	Short: "Analyze a single competitor against your business",
	Example: `  compscout analyze rival.com -d mybiz.com -c https://mybiz.com/menu`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAnalyze,
}

func init() {
	analyzeBusiness.register(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	business, err := p.competitors.BusinessContext(ctx, analyzeBusiness.request())
	if err != nil {
		return fmt.Errorf("failed to load your catalog: %w", err)
	}

	insight, err := p.competitors.AnalyzeCompetitor(ctx, strings.TrimSpace(args[0]), business, nil)
	if err != nil {
		return fmt.Errorf("competitor analysis failed: %w", err)
	}

	if analyzeJSON {
		return printJSON(cmd.OutOrStdout(), insight)
	}
	printInsight(cmd.OutOrStdout(), 0, insight)
	return nil
}
