package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	modelsAPIKey  string
	modelsBaseURL string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the models the router can use",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured models with their budgets",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

var modelsAvailableCmd = &cobra.Command{
	Use:   "available [provider]",
	Short: "List the models a provider offers",
	Long: `Query a provider (openai, anthropic, google, ollama, perplexity) for its text models.
Credentials default to the first configured model of that provider.`,
	Args: cobra.ExactArgs(1),
	RunE: runModelsAvailable,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsAvailableCmd)

	modelsAvailableCmd.Flags().StringVar(&modelsAPIKey, "api-key", "", "API key (overrides config)")
	modelsAvailableCmd.Flags().StringVar(&modelsBaseURL, "base-url", "", "base URL (overrides config)")
}

func runModelsList(cmd *cobra.Command, args []string) error {
	if len(cfg.Models) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%sNo models configured. Add entries under 'models' in %s%s\n", WarningStyle, cfgFile, Reset)
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sPROVIDER\tMODEL\tTOKENS/MIN\tREQUESTS/MIN\tQUALITY\tCONTEXT%s\n", LabelStyle, Reset)
	for _, m := range cfg.Models {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%d\n",
			m.Provider, m.ModelID, m.TokensPerMinute, m.RequestsPerMinute, m.QualityScore, m.ContextWindow)
	}
	return tw.Flush()
}

func runModelsAvailable(cmd *cobra.Command, args []string) error {
	name := args[0]
	apiKey, baseURL := modelsAPIKey, modelsBaseURL
	for _, m := range cfg.Models {
		if m.Provider != name {
			continue
		}
		if apiKey == "" {
			apiKey = m.APIKey
		}
		if baseURL == "" {
			baseURL = m.BaseURL
		}
	}

	provider, err := newProvider(name, apiKey, baseURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	list, err := provider.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s models: %w", name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s🤖 %s models (%s)%s\n", HeaderStyle, name, FormatCount(len(list)), Reset)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, m := range list {
		fmt.Fprintf(tw, "  %s\t%s\n", m.ID, m.Description)
	}
	return tw.Flush()
}
