package engine

import "github.com/shoohey/furusato-nozei-sales-ai/models"

// Aggregate reduces per-site results into one competition signal. Pure and
// idempotent: inputs are copied, never mutated, and the same input always
// yields the same output.
//
// TotalCount is the sum of all known counts and stays nil when no site
// produced one; a site that fetched fine but matched no strategy counts as
// neither succeeded nor failed.
func Aggregate(results []models.SiteCountResult) models.AggregatedResult {
	var (
		total     int
		hasAny    bool
		succeeded int
		failed    int
	)

	perSite := make([]models.SiteCount, 0, len(results))
	details := make([]models.SiteCountResult, 0, len(results))

	for _, r := range results {
		entry := models.SiteCount{SiteID: r.SiteID, DisplayName: r.DisplayName}
		if r.Count != nil {
			total += *r.Count
			succeeded++
			hasAny = true
			entry.Count = models.IntRef(*r.Count)
		} else if r.ErrorKind != "" {
			failed++
		}
		perSite = append(perSite, entry)

		detail := r
		if r.Count != nil {
			detail.Count = models.IntRef(*r.Count)
		}
		details = append(details, detail)
	}

	agg := models.AggregatedResult{
		PerSiteCounts:  perSite,
		SitesSucceeded: succeeded,
		SitesFailed:    failed,
		Details:        details,
	}
	if hasAny {
		agg.TotalCount = models.IntRef(total)
	}
	return agg
}
