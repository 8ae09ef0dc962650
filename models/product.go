// Package models defines data structures shared across the analysis run.
package models

// Product is one candidate gift product from the upstream discovery step.
// Numeric scores are 1-10; missing values default to 5. ProducerURL uses
// "不明" as the unknown sentinel, matching the upstream contract.
type Product struct {
	Name            string `json:"name"`
	Producer        string `json:"producer"`
	ProducerURL     string `json:"producer_url"`
	Appeal          int    `json:"appeal"`
	NicheScore      int    `json:"niche_score"`
	Description     string `json:"description"`
	Differentiation string `json:"differentiation"`
	TargetDonor     string `json:"target_donor"`
	Recommendation  string `json:"recommendation"`
	Confidence      string `json:"confidence"`
}

// ScoredProduct is a Product plus the competition signal and priority
// scoring attached by the analysis run. Instances are built once and
// read-only afterward.
type ScoredProduct struct {
	Product

	// TotalListingCount is the human-readable listing total, or the
	// explicit unavailable marker when no site produced a count.
	TotalListingCount string `json:"total_listing_count"`
	// TotalListingRaw is nil when every site's count was unknown.
	TotalListingRaw *int        `json:"total_listing_raw"`
	SiteCounts      []SiteCount `json:"site_counts"`
	FailedSites     int         `json:"failed_sites"`

	CompetitionScore   int     `json:"competition_score"`
	NicheScoreWeighted int     `json:"niche_score_weighted"`
	AccessibilityScore int     `json:"accessibility_score"`
	TotalScore         float64 `json:"total_score"`
	Rank               string  `json:"rank"`
}
