package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/logger"
)

// businessFlags are shared by discover and analyze
type businessFlags struct {
	domain   string
	kind     string
	catalog  string
	known    []string
	location string
}

func (f *businessFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "your business domain (required)")
	cmd.Flags().StringVarP(&f.kind, "type", "t", "", "business type, e.g. \"coffee shop\"")
	cmd.Flags().StringVarP(&f.catalog, "catalog", "c", "", "URL of your product catalog (defaults to the domain)")
	cmd.Flags().StringSliceVarP(&f.known, "known", "k", nil, "competitors you already know (comma-separated)")
	cmd.Flags().StringVarP(&f.location, "location", "l", "", "location for local search, e.g. \"Austin, TX\"")
	_ = cmd.MarkFlagRequired("domain")
}

func (f *businessFlags) request() competitor.Request {
	return competitor.Request{
		Domain:            f.domain,
		BusinessType:      f.kind,
		ProductCatalogURL: f.catalog,
		KnownCompetitors:  f.known,
		Location:          f.location,
	}
}

var (
	discoverBusiness businessFlags
	discoverJSON     bool
	discoverNoSave   bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover and analyze competitors of a business",
	Long: `Crawl your catalog, search for competitors, analyze each one and rank them
by match score. The run is saved to the result store unless --no-save is set.`,
	Example: `  compscout discover -d mybiz.com -t "coffee shop" -c https://mybiz.com/menu -k rival.com
  compscout discover -d mybiz.com -l "Austin, TX" --json`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverBusiness.register(discoverCmd)
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print the result as JSON")
	discoverCmd.Flags().BoolVar(&discoverNoSave, "no-save", false, "do not store the result")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.competitors.DiscoverCompetitors(ctx, discoverBusiness.request())
	if err != nil {
		return fmt.Errorf("competitor discovery failed: %w", err)
	}

	if !discoverNoSave {
		store, err := openStore(ctx, cfg.Database)
		if err != nil {
			logger.Warning("Result not saved: %v", err)
		} else {
			defer closeStore(store)
			if err := store.SaveDiscovery(ctx, result); err != nil {
				logger.Warning("Result not saved: %v", err)
			} else {
				logger.Info("Saved discovery run %s", result.ID)
			}
		}
	}

	if discoverJSON {
		return printJSON(cmd.OutOrStdout(), result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}
