package router

import (
	"strings"

	"github.com/AI2HU/compscout/internal/models"
)

// Complexity is the estimated difficulty of a prompt
type Complexity int

const (
	Simple Complexity = iota
	Medium
	Complex
)

func (c Complexity) String() string {
	switch c {
	case Simple:
		return "simple"
	case Medium:
		return "medium"
	case Complex:
		return "complex"
	default:
		return "unknown"
	}
}

const longPromptChars = 2000

var analyticalPhrases = []string{
	"analyze", "analyse", "analysis", "compare", "comparison", "evaluate",
	"assess", "step by step", "reason", "rank", "score", "match",
	"identify", "classify", "infer",
}

// ClassifyComplexity estimates prompt complexity from its wording. A demand for
// JSON output, analytical phrasing and length each raise the score.
func ClassifyComplexity(prompt string) Complexity {
	lower := strings.ToLower(prompt)
	score := 0

	if demandsJSON(lower) {
		score++
	}

	hits := 0
	for _, phrase := range analyticalPhrases {
		if strings.Contains(lower, phrase) {
			hits++
		}
	}
	switch {
	case hits >= 2:
		score += 2
	case hits == 1:
		score++
	}

	if len(prompt) > longPromptChars {
		score++
	}

	switch {
	case score == 0:
		return Simple
	case score <= 2:
		return Medium
	default:
		return Complex
	}
}

func demandsJSON(lowerPrompt string) bool {
	return strings.Contains(lowerPrompt, "json")
}

type weights struct {
	quality, throughput, latency, context, complexity float64
}

var complexityWeights = map[Complexity]weights{
	Simple:  {quality: 0.2, throughput: 0.35, latency: 0.3, context: 0.05, complexity: 0.1},
	Medium:  {quality: 0.3, throughput: 0.2, latency: 0.2, context: 0.1, complexity: 0.2},
	Complex: {quality: 0.4, throughput: 0.1, latency: 0.1, context: 0.15, complexity: 0.25},
}

// scoreModels returns one score per descriptor for the given complexity.
// Every attribute is normalized against the best value among descriptors.
func scoreModels(descs []models.ModelDescriptor, c Complexity) []float64 {
	var maxQ, maxTP, maxCtx, maxCx, minLat float64
	for _, d := range descs {
		maxQ = max(maxQ, d.QualityScore)
		maxTP = max(maxTP, d.Throughput)
		maxCtx = max(maxCtx, float64(d.ContextWindow))
		maxCx = max(maxCx, d.ComplexityRating)
		if d.Latency > 0 && (minLat == 0 || d.Latency < minLat) {
			minLat = d.Latency
		}
	}

	w := complexityWeights[c]
	scores := make([]float64, len(descs))
	for i, d := range descs {
		latency := 1.0
		if d.Latency > 0 && minLat > 0 {
			latency = minLat / d.Latency
		}
		scores[i] = w.quality*ratio(d.QualityScore, maxQ) +
			w.throughput*ratio(d.Throughput, maxTP) +
			w.latency*latency +
			w.context*ratio(float64(d.ContextWindow), maxCtx) +
			w.complexity*ratio(d.ComplexityRating, maxCx)
	}
	return scores
}

func ratio(v, maxV float64) float64 {
	if maxV <= 0 {
		return 0
	}
	return v / maxV
}
