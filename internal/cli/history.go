package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyDomain string
	historyLimit  int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse stored discovery runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Competitors seen most often across runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryTop,
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyTopCmd)

	historyCmd.PersistentFlags().StringVarP(&historyDomain, "domain", "d", "", "only runs for this business domain")
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "l", 10, "limit number of results")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "print the result as JSON")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	results, err := store.ListDiscoveries(ctx, historyDomain, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list discoveries: %w", err)
	}

	if historyJSON {
		return printJSON(cmd.OutOrStdout(), results)
	}
	if len(results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%sNo discovery runs stored yet. Run 'compscout discover' first!%s\n", WarningStyle, Reset)
		return nil
	}
	printHistory(cmd.OutOrStdout(), results)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	result, err := store.GetDiscovery(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get discovery: %w", err)
	}

	if historyJSON {
		return printJSON(cmd.OutOrStdout(), result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func runHistoryTop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	top, err := store.TopCompetitors(ctx, historyDomain, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to get top competitors: %w", err)
	}

	if historyJSON {
		return printJSON(cmd.OutOrStdout(), top)
	}
	if len(top) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%sNo competitors recorded yet.%s\n", WarningStyle, Reset)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s📊 Top Competitors%s\n", HeaderStyle, Reset)
	fmt.Fprintf(cmd.OutOrStdout(), "%s=================%s\n", DimStyle, Reset)
	printTop(cmd.OutOrStdout(), top)
	return nil
}
