package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AI2HU/compscout/internal/config"
	"github.com/AI2HU/compscout/internal/models"
)

var initDefaults bool

// providerPreset is what the wizard suggests for each provider
type providerPreset struct {
	model   string
	keyEnv  string
	tpm     int
	rpm     int
	quality float64
}

var providerPresets = map[string]providerPreset{
	"openai":     {model: "gpt-4o-mini", keyEnv: "OPENAI_API_KEY", tpm: 200000, rpm: 500, quality: 0.8},
	"anthropic":  {model: "claude-3-5-haiku-latest", keyEnv: "ANTHROPIC_API_KEY", tpm: 50000, rpm: 50, quality: 0.85},
	"google":     {model: "gemini-2.0-flash", keyEnv: "GOOGLE_API_KEY", tpm: 1000000, rpm: 15, quality: 0.8},
	"perplexity": {model: "sonar", keyEnv: "PERPLEXITY_API_KEY", tpm: 50000, rpm: 50, quality: 0.7},
	"ollama":     {model: "llama3.1", tpm: 100000, rpm: 60, quality: 0.6},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize CompScout configuration",
	Long:  `Interactive wizard to set up the model, search API and result store configuration.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write the default configuration without prompting")
}

func defaultModel(provider string) models.ModelDescriptor {
	preset := providerPresets[provider]
	d := models.ModelDescriptor{
		Provider:          provider,
		ModelID:           preset.model,
		TokensPerMinute:   preset.tpm,
		RequestsPerMinute: preset.rpm,
		QualityScore:      preset.quality,
	}
	if preset.keyEnv != "" {
		d.APIKey = "${" + preset.keyEnv + "}"
	}
	if provider == "ollama" {
		d.BaseURL = "http://localhost:11434"
	}
	return d
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	configPath := cfgFile
	if configPath == "" {
		configPath = config.GetConfigPath()
	}

	cfg := config.DefaultConfig()
	cfg.Models = []models.ModelDescriptor{defaultModel("openai")}
	cfg.Search.APIKey = "${SERPAPI_API_KEY}"

	if initDefaults {
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(out, "✅ Default configuration saved to: %s\n", configPath)
		return nil
	}

	fmt.Fprintln(out, "🚀 Welcome to CompScout Setup")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintln(out)

	if config.Exists(configPath) {
		fmt.Fprintf(out, "Configuration file already exists at: %s\n", configPath)
		confirmed, err := promptYesNo(out, reader, "Do you want to overwrite it? (y/N): ")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	// Model configuration
	fmt.Fprintln(out, "\n🤖 Model Configuration")
	fmt.Fprintln(out, "----------------------")

	provider, err := promptWithRetry(out, reader, "Provider (openai/anthropic/google/ollama/perplexity) [openai]: ", func(input string) (string, error) {
		if input == "" {
			return "openai", nil
		}
		input = strings.ToLower(input)
		if _, ok := providerPresets[input]; !ok {
			return "", fmt.Errorf("unsupported provider: %s", input)
		}
		return input, nil
	})
	if err != nil {
		return err
	}
	model := defaultModel(provider)

	model.ModelID, err = promptOptional(out, reader, fmt.Sprintf("Model ID [%s]: ", model.ModelID), model.ModelID)
	if err != nil {
		return err
	}
	if provider == "ollama" {
		model.BaseURL, err = promptOptional(out, reader, fmt.Sprintf("Ollama URL [%s]: ", model.BaseURL), model.BaseURL)
	} else {
		model.APIKey, err = promptOptional(out, reader, fmt.Sprintf("API key, or ${ENV_VAR} reference [%s]: ", model.APIKey), model.APIKey)
	}
	if err != nil {
		return err
	}
	cfg.Models = []models.ModelDescriptor{model}

	// Search configuration
	fmt.Fprintln(out, "\n🔎 Search Configuration")
	fmt.Fprintln(out, "-----------------------")
	cfg.Search.APIKey, err = promptOptional(out, reader, fmt.Sprintf("SerpApi key, or ${ENV_VAR} reference [%s]: ", cfg.Search.APIKey), cfg.Search.APIKey)
	if err != nil {
		return err
	}

	// Database configuration
	fmt.Fprintln(out, "\n📊 Database Configuration")
	fmt.Fprintln(out, "--------------------------")

	dbProvider, err := promptWithRetry(out, reader, "Database provider (sqlite/mongodb) [sqlite]: ", func(input string) (string, error) {
		switch strings.ToLower(input) {
		case "", "sqlite":
			return "sqlite", nil
		case "mongodb":
			return "mongodb", nil
		}
		return "", fmt.Errorf("unsupported database provider: %s", input)
	})
	if err != nil {
		return err
	}
	cfg.Database.Provider = dbProvider
	if dbProvider == "mongodb" {
		cfg.Database.URI = "mongodb://localhost:27017"
	}

	cfg.Database.URI, err = promptOptional(out, reader, fmt.Sprintf("Database URI [%s]: ", cfg.Database.URI), cfg.Database.URI)
	if err != nil {
		return err
	}

	// Test database connection
	fmt.Fprintln(out, "\n🔌 Testing database connection...")
	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		fmt.Fprintln(out, "\nPlease check your database configuration and try again.")
		return err
	}
	pingErr := store.Ping(ctx)
	closeStore(store)
	if pingErr != nil {
		fmt.Fprintf(out, "❌ Failed to ping database: %v\n", pingErr)
		return pingErr
	}
	fmt.Fprintln(out, "✅ Database connection successful!")

	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n💾 Saving configuration...")
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "✅ Configuration saved to: %s\n", configPath)

	fmt.Fprintln(out, "\n📋 Configuration Summary")
	fmt.Fprintln(out, "========================")
	fmt.Fprintf(out, "Model: %s/%s\n", model.Provider, model.ModelID)
	fmt.Fprintf(out, "Database: %s (%s)\n", cfg.Database.Provider, cfg.Database.URI)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Crawl your site: compscout crawl mybiz.com")
	fmt.Fprintln(out, "  2. Find competitors: compscout discover -d mybiz.com -t \"coffee shop\"")
	fmt.Fprintln(out, "  3. Serve the API: compscout serve")

	return nil
}
