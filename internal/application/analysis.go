// Package application contains use-case orchestration services.
package application

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// DefaultOutlierMargin is how far below the overlap mean a provider's
// average similarity must fall to be flagged as an outlier. Overridable
// via PROMPTPANEL_OUTLIER_MARGIN.
const DefaultOutlierMargin = 0.25

// ProviderText pairs a provider id with its final response text.
type ProviderText struct {
	Provider string
	Text     string
}

// AnalysisResult is the output of one analysis run.
type AnalysisResult struct {
	SummaryText string
	Overlap     model.OverlapData
	Outliers    model.OutlierData
}

// Analyzer computes lexical overlap across final response texts: TF-IDF
// weighted term vectors over a shared vocabulary, pairwise cosine
// similarity, and margin-based outlier classification. Output is exactly
// reproducible for identical inputs: the vocabulary is sorted, inputs are
// sorted by provider, and all accumulation runs in that fixed order.
type Analyzer struct {
	margin float64
}

// NewAnalyzer creates an Analyzer with the given outlier margin.
func NewAnalyzer(margin float64) *Analyzer {
	return &Analyzer{margin: margin}
}

// Analyze computes overlap and outlier data for two or more responses.
// Returns nil if fewer than two responses are given.
func (a *Analyzer) Analyze(inputs []ProviderText) *AnalysisResult {
	if len(inputs) < 2 {
		return nil
	}

	sorted := make([]ProviderText, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Provider < sorted[j].Provider })

	vectors := buildVectors(sorted)

	// Pairwise cosine similarity in sorted provider order.
	var pairs []model.PairScore
	sums := make(map[string]float64, len(sorted))
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			score := cosine(vectors[i], vectors[j])
			pairs = append(pairs, model.PairScore{
				A:     sorted[i].Provider,
				B:     sorted[j].Provider,
				Score: score,
			})
			sums[sorted[i].Provider] += score
			sums[sorted[j].Provider] += score
		}
	}

	var total float64
	for _, p := range pairs {
		total += p.Score
	}
	mean := total / float64(len(pairs))

	// Per-provider average similarity to all others.
	averages := make(map[string]float64, len(sorted))
	for _, in := range sorted {
		averages[in.Provider] = sums[in.Provider] / float64(len(sorted)-1)
	}

	threshold := mean - a.margin
	var flagged []string
	for _, in := range sorted {
		if averages[in.Provider] < threshold {
			flagged = append(flagged, in.Provider)
		}
	}

	return &AnalysisResult{
		SummaryText: summaryText(len(sorted), mean, flagged, averages),
		Overlap:     model.OverlapData{Pairs: pairs, Mean: mean},
		Outliers:    model.OutlierData{Flagged: flagged, Averages: averages, Threshold: threshold},
	}
}

// buildVectors produces one TF-IDF weighted dense vector per input over the
// sorted shared vocabulary.
func buildVectors(inputs []ProviderText) [][]float64 {
	docs := make([][]string, len(inputs))
	df := make(map[string]int)
	for i, in := range inputs {
		docs[i] = tokenize(in.Text)
		seen := make(map[string]bool, len(docs[i]))
		for _, tok := range docs[i] {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}

	n := float64(len(inputs))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		idf[i] = math.Log(n/float64(df[term])) + 1
	}

	vectors := make([][]float64, len(inputs))
	for i, toks := range docs {
		vec := make([]float64, len(vocab))
		for _, tok := range toks {
			vec[index[tok]]++
		}
		if len(toks) > 0 {
			for j := range vec {
				vec[j] = vec[j] / float64(len(toks)) * idf[j]
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// cosine returns the cosine similarity of two equal-length vectors, or 0
// when either has zero magnitude.
func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenize lowercases and splits text into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// summaryText renders the human-readable comparison summary.
func summaryText(count int, mean float64, flagged []string, averages map[string]float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Compared %d responses; mean pairwise similarity %.2f.", count, mean)
	if len(flagged) == 0 {
		sb.WriteString(" No outliers detected.")
		return sb.String()
	}
	sb.WriteString(" Outliers:")
	for i, p := range flagged {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, " %s (avg similarity %.2f)", p, averages[p])
	}
	sb.WriteString(".")
	return sb.String()
}
