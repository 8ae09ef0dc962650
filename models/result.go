package models

// SiteCountResult is the outcome of one (product, site) search. Count is
// nil when the site's listing total could not be determined; that is
// distinct from a true zero. ErrorKind is empty on success and also when
// the fetch worked but no extraction strategy matched.
type SiteCountResult struct {
	SiteID      string `json:"site_id"`
	DisplayName string `json:"display_name"`
	Count       *int   `json:"count"`
	SearchURL   string `json:"search_url"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// SiteCount pairs a site with its (possibly unknown) listing count while
// preserving registry order, which Go maps would lose.
type SiteCount struct {
	SiteID      string `json:"site_id"`
	DisplayName string `json:"display_name"`
	Count       *int   `json:"count"`
}

// AggregatedResult reduces the per-site results for one query. TotalCount
// is nil unless at least one site produced a known count. Derived, never
// mutated: recompute instead of patching.
type AggregatedResult struct {
	TotalCount     *int              `json:"total_count"`
	PerSiteCounts  []SiteCount       `json:"per_site_counts"`
	SitesSucceeded int               `json:"sites_succeeded"`
	SitesFailed    int               `json:"sites_failed"`
	Details        []SiteCountResult `json:"details"`
}

// KnownCount reports the aggregate total and whether any site contributed.
func (a *AggregatedResult) KnownCount() (int, bool) {
	if a == nil || a.TotalCount == nil {
		return 0, false
	}
	return *a.TotalCount, true
}

// IntRef returns a pointer to v, for building count values in place.
func IntRef(v int) *int {
	return &v
}
