package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI2HU/compscout/internal/shared"
)

var crawlJSON bool

var crawlCmd = &cobra.Command{
	Use:   "crawl [url]",
	Short: "Crawl a website and show what it offers",
	Long: `Crawl a website through its sitemap, extract products, services, prices
and contact details, and print the merged result.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "print the result as JSON")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	target := shared.EnsureScheme(args[0])

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	content := p.websites.DiscoverWebsiteContent(ctx, target)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}

	if crawlJSON {
		return printJSON(cmd.OutOrStdout(), content)
	}
	printContent(cmd.OutOrStdout(), content)
	return nil
}
