package competitor

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/AI2HU/compscout/internal/jsonextract"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
)

const (
	MatchSourceHeuristic = "heuristic"
	MatchSourceLLM       = "llm"
)

// OperationMatchOfferings names the semantic matcher in router logs
const OperationMatchOfferings = "match_offerings"

// priceItem is a priced thing observed for a competitor
type priceItem struct {
	Name     string
	Price    float64
	Currency string
	URL      string
}

// Similarity returns 1 - levenshtein(a, b)/max(len) over normalized names
func Similarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	la, lb := len([]rune(na)), len([]rune(nb))
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(levenshteinDistance(na, nb))/float64(longest)
}

func normalizeName(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// heuristicMatches pairs each offering with its most similar priced item at
// or above threshold.
func heuristicMatches(offerings []models.Offering, items []priceItem, threshold float64) []models.PriceMatch {
	matches := []models.PriceMatch{}
	for _, o := range offerings {
		best, bestScore := -1, 0.0
		for i, item := range items {
			if s := Similarity(o.Name, item.Name); s >= threshold && s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			continue
		}
		item := items[best]
		matches = append(matches, models.PriceMatch{
			Offering:        o.Name,
			OfferingPrice:   o.Price,
			CompetitorItem:  item.Name,
			CompetitorPrice: item.Price,
			CompetitorURL:   item.URL,
			Currency:        item.Currency,
			Similarity:      round2(bestScore),
			Source:          MatchSourceHeuristic,
		})
	}
	return matches
}

const matchPrompt = `Match each of our offerings to the competitor item that is the same or a directly substitutable product.

Our offerings:
%s
Competitor items:
%s
Return ONLY a JSON array of objects with the fields "offering" (exact name from our list),
"competitorItem" (exact name from the competitor list) and "confidence" (0 to 1).
Leave out offerings without a reasonable match.`

// semanticMatches asks the router to pair offerings with items. Names the
// model invents are discarded.
func (s *Service) semanticMatches(ctx context.Context, offerings []models.Offering, items []priceItem) ([]models.PriceMatch, error) {
	if len(offerings) == 0 || len(items) == 0 {
		return []models.PriceMatch{}, nil
	}

	var ours, theirs strings.Builder
	byOffering := make(map[string]models.Offering, len(offerings))
	for _, o := range offerings {
		fmt.Fprintf(&ours, "- %s\n", o.Name)
		byOffering[strings.ToLower(o.Name)] = o
	}
	byItem := make(map[string]priceItem, len(items))
	for _, it := range items {
		fmt.Fprintf(&theirs, "- %s (%.2f %s)\n", it.Name, it.Price, it.Currency)
		byItem[strings.ToLower(it.Name)] = it
	}

	res, err := s.llm.Invoke(ctx, OperationMatchOfferings, fmt.Sprintf(matchPrompt, ours.String(), theirs.String()), s.cfg.PreferredModel)
	if err != nil {
		return nil, err
	}

	var raw []interface{}
	if !jsonextract.Decode(res.Text, jsonextract.Array, &raw) {
		return nil, fmt.Errorf("no match array in %s response", res.Model)
	}

	matches := []models.PriceMatch{}
	for _, m := range objectList(raw) {
		o, ok := byOffering[strings.ToLower(textField(m["offering"]))]
		if !ok {
			continue
		}
		it, ok := byItem[strings.ToLower(textField(m["competitorItem"]))]
		if !ok {
			continue
		}
		confidence := 0.5
		if c, ok := numberField(m["confidence"]); ok {
			confidence = clamp(c, 0, 1)
		}
		matches = append(matches, models.PriceMatch{
			Offering:        o.Name,
			OfferingPrice:   o.Price,
			CompetitorItem:  it.Name,
			CompetitorPrice: it.Price,
			CompetitorURL:   it.URL,
			Currency:        it.Currency,
			Similarity:      round2(confidence),
			Source:          MatchSourceLLM,
		})
	}
	return matches, nil
}

// combineMatches keeps every heuristic match and adds semantic matches only
// for offerings the heuristic left unmatched.
func combineMatches(domain string, heuristic, semantic []models.PriceMatch) []models.PriceMatch {
	logger.Debug("Offering matches for %s: %d heuristic, %d semantic", domain, len(heuristic), len(semantic))

	matched := make(map[string]struct{}, len(heuristic))
	out := make([]models.PriceMatch, 0, len(heuristic)+len(semantic))
	for _, m := range heuristic {
		matched[strings.ToLower(m.Offering)] = struct{}{}
		out = append(out, m)
	}
	for _, m := range semantic {
		key := strings.ToLower(m.Offering)
		if _, ok := matched[key]; ok {
			continue
		}
		matched[key] = struct{}{}
		out = append(out, m)
	}
	return out
}
