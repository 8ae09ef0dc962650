// Package scoring turns the aggregated competition signal and the
// product's own attributes into a weighted priority score and rank.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/shoohey/furusato-nozei-sales-ai/models"
)

// Sub-score weights. Competition and niche carry the most weight because
// the whole point is finding products nobody lists yet.
const (
	weightCompetition   = 0.30
	weightNiche         = 0.30
	weightAppeal        = 0.25
	weightAccessibility = 0.15
)

// Rank thresholds over the 0-10 total.
const (
	rankAThreshold = 7.0
	rankBThreshold = 5.0
)

// unavailableDisplay marks a product whose listing total could not be
// measured on any site.
const unavailableDisplay = "取得不可"

// CompetitionScore maps a total listing count to a 0-10 scale with a
// log-ish decay: extra listings matter less once a market is saturated.
// When measurement itself failed (nil total), the product's own niche
// rating plus one is used instead of penalizing it for a scraping outage.
func CompetitionScore(total *int, nicheScore int) int {
	if total == nil {
		s := nicheScore + 1
		if s > 10 {
			s = 10
		}
		return s
	}
	switch n := *total; {
	case n == 0:
		return 10
	case n <= 3:
		return 9
	case n <= 10:
		return 8
	case n <= 30:
		return 6
	case n <= 80:
		return 4
	case n <= 200:
		return 2
	default:
		return 1
	}
}

// AccessibilityScore is a binary proxy for "can this producer be pitched":
// 8 with a known producer website, 4 without.
func AccessibilityScore(producerURL string) int {
	if producerURL == "" || producerURL == "不明" || producerURL == "unknown" {
		return 4
	}
	return 8
}

// CountDisplay renders the listing total the way the sales team reads it.
func CountDisplay(total *int) string {
	if total == nil {
		return unavailableDisplay
	}
	switch n := *total; {
	case n == 0:
		return "0件（超穴場!）"
	case n <= 3:
		return fmt.Sprintf("%d件（穴場!）", n)
	case n <= 80:
		return fmt.Sprintf("%d件", n)
	case n <= 200:
		return fmt.Sprintf("%d件（競合多）", n)
	default:
		return fmt.Sprintf("%d件（飽和）", n)
	}
}

// Score combines one product with its aggregated competition signal.
// A nil aggregate is treated as a full measurement outage.
func Score(p models.Product, agg *models.AggregatedResult) models.ScoredProduct {
	var (
		total       *int
		siteCounts  []models.SiteCount
		failedSites int
	)
	if agg != nil {
		total = agg.TotalCount
		siteCounts = agg.PerSiteCounts
		failedSites = agg.SitesFailed
	}

	competition := CompetitionScore(total, p.NicheScore)
	accessibility := AccessibilityScore(p.ProducerURL)

	totalScore := round1(float64(competition)*weightCompetition +
		float64(p.NicheScore)*weightNiche +
		float64(p.Appeal)*weightAppeal +
		float64(accessibility)*weightAccessibility)

	return models.ScoredProduct{
		Product:            p,
		TotalListingCount:  CountDisplay(total),
		TotalListingRaw:    total,
		SiteCounts:         siteCounts,
		FailedSites:        failedSites,
		CompetitionScore:   competition,
		NicheScoreWeighted: p.NicheScore,
		AccessibilityScore: accessibility,
		TotalScore:         totalScore,
		Rank:               Rank(totalScore),
	}
}

// Rank buckets a total score into the A/B/C priority ranks.
func Rank(totalScore float64) string {
	switch {
	case totalScore >= rankAThreshold:
		return "A"
	case totalScore >= rankBThreshold:
		return "B"
	default:
		return "C"
	}
}

// ScoreAll scores every product against its aggregate and returns the list
// sorted by total score, highest first. The sort is stable so ties keep
// their input order.
func ScoreAll(products []models.Product, aggregates map[string]*models.AggregatedResult) []models.ScoredProduct {
	scored := make([]models.ScoredProduct, 0, len(products))
	for _, p := range products {
		scored = append(scored, Score(p, aggregates[p.Name]))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})
	return scored
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
