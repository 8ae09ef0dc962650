package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shoohey/furusato-nozei-sales-ai/models"
)

func sampleScored() []models.ScoredProduct {
	return []models.ScoredProduct{
		{
			Product: models.Product{
				Name:        "夕張メロンジャム",
				Producer:    "メロン工房",
				ProducerURL: "https://example.jp",
				Appeal:      8,
				NicheScore:  9,
				Confidence:  "高",
			},
			TotalListingCount: "2件（穴場!）",
			TotalListingRaw:   models.IntRef(2),
			SiteCounts: []models.SiteCount{
				{SiteID: "satofull", DisplayName: "さとふる", Count: models.IntRef(2)},
				{SiteID: "rakuten", DisplayName: "楽天", Count: nil},
			},
			CompetitionScore:   9,
			NicheScoreWeighted: 9,
			AccessibilityScore: 8,
			TotalScore:         8.3,
			Rank:               "A",
		},
		{
			Product: models.Product{
				Name:       "謎の珍味",
				Producer:   "不明",
				NicheScore: 4,
				Appeal:     6,
				Confidence: "低",
			},
			TotalListingCount:  "取得不可",
			FailedSites:        5,
			CompetitionScore:   5,
			NicheScoreWeighted: 4,
			AccessibilityScore: 4,
			TotalScore:         4.8,
			Rank:               "C",
		},
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.Write(sampleScored()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}
	if records[0][0] != "rank" || len(records[0]) != len(csvHeader) {
		t.Fatalf("header = %v", records[0])
	}

	first := records[1]
	if first[0] != "A" || first[1] != "8.3" || first[2] != "夕張メロンジャム" {
		t.Fatalf("first row = %v", first)
	}
	if first[6] != "2" {
		t.Fatalf("raw count cell = %q, want 2", first[6])
	}
	if first[17] != "さとふる=2; 楽天=-" {
		t.Fatalf("site counts cell = %q", first[17])
	}

	second := records[2]
	if second[5] != "取得不可" {
		t.Fatalf("display cell = %q, want 取得不可", second[5])
	}
	// Unknown totals stay empty, not zero.
	if second[6] != "" {
		t.Fatalf("raw count cell = %q, want empty", second[6])
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter: %v", err)
	}
	if err := w.Write(sampleScored()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []models.ScoredProduct
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var sp models.ScoredProduct
		if err := json.Unmarshal(scanner.Bytes(), &sp); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		lines = append(lines, sp)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].Name != "夕張メロンジャム" || lines[0].Rank != "A" {
		t.Fatalf("first line = %+v", lines[0])
	}
	if lines[1].TotalListingRaw != nil {
		t.Fatalf("unknown total survived as %d, want null", *lines[1].TotalListingRaw)
	}
	if lines[0].TotalListingRaw == nil || *lines[0].TotalListingRaw != 2 {
		t.Fatalf("known total = %v, want 2", lines[0].TotalListingRaw)
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter: %v", err)
	}
	defer w.Close()

	if err := w.Validate(); err == nil {
		t.Fatalf("Validate on empty file returned nil")
	}
}

func TestDualWriter(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")

	w, err := NewWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(sampleScored()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"products.csv", "products.json"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
}

func TestNewWriterUnsupportedFormat(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestNewWriterCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "products.csv")

	w, err := NewWriter("csv", path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output file not created: %v", err)
	}
}
