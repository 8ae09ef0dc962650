package scoring

import (
	"testing"

	"github.com/shoohey/furusato-nozei-sales-ai/models"
)

func TestCompetitionScoreBreakpoints(t *testing.T) {
	tests := []struct {
		name  string
		total *int
		niche int
		want  int
	}{
		{name: "untouched market", total: models.IntRef(0), want: 10},
		{name: "one listing", total: models.IntRef(1), want: 9},
		{name: "three listings", total: models.IntRef(3), want: 9},
		{name: "four listings", total: models.IntRef(4), want: 8},
		{name: "ten listings", total: models.IntRef(10), want: 8},
		{name: "eleven listings", total: models.IntRef(11), want: 6},
		{name: "thirty listings", total: models.IntRef(30), want: 6},
		{name: "thirty one listings", total: models.IntRef(31), want: 4},
		{name: "eighty listings", total: models.IntRef(80), want: 4},
		{name: "eighty one listings", total: models.IntRef(81), want: 2},
		{name: "two hundred listings", total: models.IntRef(200), want: 2},
		{name: "saturated", total: models.IntRef(201), want: 1},
		{name: "unknown uses niche plus one", total: nil, niche: 4, want: 5},
		{name: "unknown capped at ten", total: nil, niche: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompetitionScore(tt.total, tt.niche); got != tt.want {
				t.Fatalf("CompetitionScore(%v, %d) = %d, want %d", tt.total, tt.niche, got, tt.want)
			}
		})
	}
}

func TestCompetitionScoreMonotonic(t *testing.T) {
	prev := CompetitionScore(models.IntRef(0), 0)
	for _, n := range []int{1, 3, 5, 15, 50, 100, 300} {
		cur := CompetitionScore(models.IntRef(n), 0)
		if cur > prev {
			t.Fatalf("score rose from %d to %d at %d listings", prev, cur, n)
		}
		prev = cur
	}
}

func TestAccessibilityScore(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{url: "https://melon-farm.example.jp", want: 8},
		{url: "", want: 4},
		{url: "不明", want: 4},
		{url: "unknown", want: 4},
	}
	for _, tt := range tests {
		if got := AccessibilityScore(tt.url); got != tt.want {
			t.Errorf("AccessibilityScore(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestCountDisplay(t *testing.T) {
	tests := []struct {
		name  string
		total *int
		want  string
	}{
		{name: "unknown", total: nil, want: "取得不可"},
		{name: "zero", total: models.IntRef(0), want: "0件（超穴場!）"},
		{name: "sweet spot", total: models.IntRef(2), want: "2件（穴場!）"},
		{name: "plain", total: models.IntRef(45), want: "45件"},
		{name: "crowded", total: models.IntRef(150), want: "150件（競合多）"},
		{name: "saturated", total: models.IntRef(1200), want: "1200件（飽和）"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountDisplay(tt.total); got != tt.want {
				t.Fatalf("CountDisplay = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRankBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{score: 7.0, want: "A"},
		{score: 9.9, want: "A"},
		{score: 6.9, want: "B"},
		{score: 5.0, want: "B"},
		{score: 4.9, want: "C"},
		{score: 0, want: "C"},
	}
	for _, tt := range tests {
		if got := Rank(tt.score); got != tt.want {
			t.Errorf("Rank(%.1f) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScoreLowCompetitionProduct(t *testing.T) {
	p := models.Product{
		Name:        "夕張メロンジャム",
		NicheScore:  8,
		Appeal:      8,
		ProducerURL: "https://melon-farm.example.jp",
	}
	agg := &models.AggregatedResult{
		TotalCount:     models.IntRef(2),
		SitesSucceeded: 3,
	}

	sp := Score(p, agg)

	// 9*0.30 + 8*0.30 + 8*0.25 + 8*0.15 = 2.7 + 2.4 + 2.0 + 1.2 = 8.3
	if sp.TotalScore != 8.3 {
		t.Fatalf("total score = %.2f, want 8.3", sp.TotalScore)
	}
	if sp.Rank != "A" {
		t.Fatalf("rank = %q, want A", sp.Rank)
	}
	if sp.CompetitionScore != 9 || sp.AccessibilityScore != 8 {
		t.Fatalf("sub-scores = %d/%d, want 9/8", sp.CompetitionScore, sp.AccessibilityScore)
	}
	if sp.TotalListingCount != "2件（穴場!）" {
		t.Fatalf("display = %q", sp.TotalListingCount)
	}
}

func TestScoreMeasurementOutage(t *testing.T) {
	p := models.Product{Name: "謎の珍味", NicheScore: 4, Appeal: 6}

	sp := Score(p, nil)

	if sp.CompetitionScore != 5 {
		t.Fatalf("competition = %d, want niche+1 = 5", sp.CompetitionScore)
	}
	if sp.TotalListingCount != "取得不可" {
		t.Fatalf("display = %q, want 取得不可", sp.TotalListingCount)
	}
	if sp.TotalListingRaw != nil {
		t.Fatalf("raw total = %d, want nil", *sp.TotalListingRaw)
	}
	// 5*0.30 + 4*0.30 + 6*0.25 + 4*0.15 = 1.5 + 1.2 + 1.5 + 0.6 = 4.8
	if sp.TotalScore != 4.8 {
		t.Fatalf("total score = %.2f, want 4.8", sp.TotalScore)
	}
	if sp.Rank != "C" {
		t.Fatalf("rank = %q, want C", sp.Rank)
	}
}

func TestScoreRankABoundary(t *testing.T) {
	p := models.Product{NicheScore: 7, Appeal: 8, ProducerURL: "https://example.jp"}
	agg := &models.AggregatedResult{TotalCount: models.IntRef(17)}

	sp := Score(p, agg)

	// 6*0.30 + 7*0.30 + 8*0.25 + 8*0.15 = 1.8 + 2.1 + 2.0 + 1.2 = 7.1
	if sp.TotalScore != 7.1 {
		t.Fatalf("total score = %v, want 7.1", sp.TotalScore)
	}
	if sp.Rank != "A" {
		t.Fatalf("rank = %q, want A at 7.1", sp.Rank)
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 4.25, want: 4.3},
		{in: 6.84, want: 6.8},
		{in: 6.86, want: 6.9},
		{in: 7.0, want: 7.0},
		{in: 0, want: 0},
	}
	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScoreAllSortsDescendingAndStable(t *testing.T) {
	products := []models.Product{
		{Name: "first", NicheScore: 5, Appeal: 5},
		{Name: "winner", NicheScore: 9, Appeal: 9, ProducerURL: "https://example.jp"},
		{Name: "second", NicheScore: 5, Appeal: 5},
	}
	aggs := map[string]*models.AggregatedResult{
		"first":  {TotalCount: models.IntRef(50)},
		"winner": {TotalCount: models.IntRef(0)},
		"second": {TotalCount: models.IntRef(50)},
	}

	scored := ScoreAll(products, aggs)

	if scored[0].Name != "winner" {
		t.Fatalf("scored[0] = %q, want winner", scored[0].Name)
	}
	// Equal scores keep their input order.
	if scored[1].Name != "first" || scored[2].Name != "second" {
		t.Fatalf("tie order = %q, %q, want first then second", scored[1].Name, scored[2].Name)
	}
	if scored[1].TotalScore != scored[2].TotalScore {
		t.Fatalf("tie broke: %.1f vs %.1f", scored[1].TotalScore, scored[2].TotalScore)
	}
}

func TestScoreAllMissingAggregateTreatedAsOutage(t *testing.T) {
	products := []models.Product{{Name: "orphan", NicheScore: 3, Appeal: 5}}

	scored := ScoreAll(products, map[string]*models.AggregatedResult{})

	if scored[0].TotalListingCount != "取得不可" {
		t.Fatalf("display = %q, want 取得不可", scored[0].TotalListingCount)
	}
	if scored[0].CompetitionScore != 4 {
		t.Fatalf("competition = %d, want niche+1 = 4", scored[0].CompetitionScore)
	}
}
