// Package db persists competitor discovery results.
package db

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/AI2HU/compscout/internal/models"
)

// DefaultListLimit caps ListDiscoveries when no limit is given
const DefaultListLimit = 20

// ErrNotFound is returned when a discovery id is unknown
var ErrNotFound = errors.New("discovery not found")

// ErrNotConnected is returned by stores used before Connect
var ErrNotConnected = errors.New("not connected to database")

// Config selects and addresses the result store
type Config struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // sqlite, mongodb
	URI      string `mapstructure:"uri" yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

// ResultStore defines the operations on stored discovery runs
type ResultStore interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error

	// Discovery operations
	SaveDiscovery(ctx context.Context, result *models.DiscoveryResult) error
	GetDiscovery(ctx context.Context, id string) (*models.DiscoveryResult, error)
	ListDiscoveries(ctx context.Context, domain string, limit int) ([]*models.DiscoveryResult, error)

	// TopCompetitors tallies the competitors found across every run for domain
	TopCompetitors(ctx context.Context, domain string, limit int) ([]CompetitorCount, error)
}

// CompetitorCount is how often a competitor showed up in the runs of a domain
type CompetitorCount struct {
	Domain    string    `json:"domain"`
	Count     int       `json:"count"`
	BestScore float64   `json:"bestScore"`
	LastScore float64   `json:"lastScore"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Limit applies DefaultListLimit to non-positive limits
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// TallyCompetitors counts competitor appearances across results, most
// frequent first, then best score.
func TallyCompetitors(results []*models.DiscoveryResult, limit int) []CompetitorCount {
	counts := make(map[string]*CompetitorCount)
	for _, r := range results {
		for _, c := range r.Competitors {
			key := strings.ToLower(c.Domain)
			cc, ok := counts[key]
			if !ok {
				cc = &CompetitorCount{Domain: c.Domain}
				counts[key] = cc
			}
			cc.Count++
			if c.MatchScore > cc.BestScore {
				cc.BestScore = c.MatchScore
			}
			if !r.CompletedAt.Before(cc.LastSeen) {
				cc.LastSeen = r.CompletedAt
				cc.LastScore = c.MatchScore
			}
		}
	}

	out := make([]CompetitorCount, 0, len(counts))
	for _, cc := range counts {
		out = append(out, *cc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].BestScore != out[j].BestScore {
			return out[i].BestScore > out[j].BestScore
		}
		return out[i].Domain < out[j].Domain
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
