package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/models"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printContent(w io.Writer, c *models.WebsiteContent) {
	fmt.Fprintf(w, "%s🌐 %s%s\n", HeaderStyle, c.URL, Reset)
	fmt.Fprintf(w, "%s%s%s\n", DimStyle, strings.Repeat("=", len(c.URL)+3), Reset)
	fmt.Fprintln(w, FormatLabelValue("Title:", c.Title))
	if c.Description != "" {
		fmt.Fprintln(w, FormatLabelValue("Description:", c.Description))
	}
	if len(c.Categories) > 0 {
		fmt.Fprintln(w, FormatLabelValue("Categories:", strings.Join(c.Categories, ", ")))
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintln(w, FormatLabelValue("Keywords:", strings.Join(c.Keywords, ", ")))
	}
	contact := c.Metadata.ContactInfo
	if !contact.IsEmpty() {
		parts := append(append([]string{}, contact.Emails...), contact.Phones...)
		if contact.Address != "" {
			parts = append(parts, contact.Address)
		}
		fmt.Fprintln(w, FormatLabelValue("Contact:", strings.Join(parts, " | ")))
	}
	fmt.Fprintln(w)

	printOfferings(w, "Products", c.Products)
	printOfferings(w, "Services", c.Services)
}

func printOfferings(w io.Writer, label string, offerings []models.Offering) {
	fmt.Fprintf(w, "%s%s (%d)%s\n", LabelStyle, label, len(offerings), Reset)
	if len(offerings) == 0 {
		fmt.Fprintf(w, "  %snone found%s\n\n", MetaStyle, Reset)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range offerings {
		price := "-"
		if o.Price > 0 {
			price = fmt.Sprintf("%.2f %s", o.Price, o.Currency)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", o.Name, price, o.Category)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printInsight(w io.Writer, rank int, in *models.CompetitorInsight) {
	name := in.Domain
	if in.BusinessName != "" {
		name = fmt.Sprintf("%s (%s)", in.BusinessName, in.Domain)
	}
	prefix := ""
	if rank > 0 {
		prefix = fmt.Sprintf("%s%d.%s ", CountStyle, rank, Reset)
	}
	fmt.Fprintf(w, "%s%s  score %s\n", prefix, FormatValue(name), FormatScore(in.MatchScore))

	if in.Rating != nil {
		reviews := ""
		if in.ReviewCount != nil {
			reviews = fmt.Sprintf(" (%d reviews)", *in.ReviewCount)
		}
		fmt.Fprintf(w, "   %s %.1f%s\n", FormatMeta("rating"), *in.Rating, reviews)
	}
	if in.PriceRange != "" {
		fmt.Fprintf(w, "   %s %s\n", FormatMeta("price range"), in.PriceRange)
	}
	for _, r := range in.MatchReasons {
		fmt.Fprintf(w, "   • %s\n", r)
	}
	if in.SuggestedApproach != "" {
		fmt.Fprintf(w, "   %s %s\n", FormatMeta("approach"), in.SuggestedApproach)
	}

	if len(in.Products) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "   %sPRODUCT\tPRICE\tMATCHES%s\n", LabelStyle, Reset)
		for _, p := range in.Products {
			var matched []string
			for _, m := range p.MatchedProducts {
				matched = append(matched, fmt.Sprintf("%s %s", m.Name, FormatDiff(m.PriceDiff)))
			}
			fmt.Fprintf(tw, "   %s\t%s\t%s\n", p.Name, FormatPrice(p.Price, p.Currency), strings.Join(matched, ", "))
		}
		tw.Flush()
	}

	if len(in.DataGaps) > 0 {
		fmt.Fprintf(w, "   %s %s\n", FormatMeta("gaps"), strings.Join(in.DataGaps, "; "))
	}
	if len(in.MonitoringURLs) > 0 {
		fmt.Fprintf(w, "   %s %s\n", FormatMeta("monitor"), strings.Join(in.MonitoringURLs, " "))
	}
	fmt.Fprintln(w)
}

func printResult(w io.Writer, r *models.DiscoveryResult) {
	fmt.Fprintf(w, "%s🔎 Competitors of %s%s\n", HeaderStyle, r.Domain, Reset)
	fmt.Fprintf(w, "%s%s%s\n", DimStyle, strings.Repeat("=", len(r.Domain)+18), Reset)
	fmt.Fprintln(w, FormatLabelValue("Run:", r.ID))
	if r.BusinessType != "" {
		fmt.Fprintln(w, FormatLabelValue("Business type:", r.BusinessType))
	}
	strategy := fmt.Sprintf("%s %q", r.SearchStrategy.Type, r.SearchStrategy.Query)
	if r.SearchStrategy.Location != "" {
		strategy += " in " + r.SearchStrategy.Location
	}
	fmt.Fprintln(w, FormatLabelValue("Search:", strategy))
	fmt.Fprintf(w, "%s %s found, %s new, %s known, %s failed\n",
		FormatMeta("stats"),
		FormatCount(r.Stats.TotalDiscovered),
		FormatCount(r.Stats.NewCompetitors),
		FormatCount(r.Stats.ExistingCompetitors),
		FormatCount(r.Stats.FailedAnalyses))
	fmt.Fprintln(w)

	if len(r.Competitors) == 0 {
		fmt.Fprintf(w, "%sNo competitors could be analyzed.%s\n\n", WarningStyle, Reset)
	}
	for i := range r.Competitors {
		printInsight(w, i+1, &r.Competitors[i])
	}

	if len(r.RecommendedSources) > 0 {
		fmt.Fprintln(w, FormatLabelValue("Also check:", strings.Join(r.RecommendedSources, ", ")))
	}
}

func printHistory(w io.Writer, results []*models.DiscoveryResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sID\tDOMAIN\tCOMPLETED\tCOMPETITORS\tFAILED\tTOP%s\n", LabelStyle, Reset)
	for _, r := range results {
		top := "-"
		if len(r.Competitors) > 0 {
			top = r.Competitors[0].Domain
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Domain, r.CompletedAt.Local().Format("2006-01-02 15:04"),
			len(r.Competitors), r.Stats.FailedAnalyses, top)
	}
	tw.Flush()
}

func printTop(w io.Writer, top []db.CompetitorCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sRANK\tCOMPETITOR\tRUNS\tBEST\tLAST\tLAST SEEN%s\n", LabelStyle, Reset)
	for i, c := range top {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.0f\t%.0f\t%s\n",
			i+1, c.Domain, c.Count, c.BestScore, c.LastScore, c.LastSeen.Local().Format("2006-01-02"))
	}
	tw.Flush()
}
