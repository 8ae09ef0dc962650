// Package report writes the scored product list for the sales team: CSV
// for spreadsheets, JSONL as the display layer's data feed, or both.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/shoohey/furusato-nozei-sales-ai/models"
)

// OutputWriter defines the interface for report output.
type OutputWriter interface {
	Write(products []models.ScoredProduct) error
	Close() error
	Validate() error
}

// NewWriter builds a writer for the given format: csv, json, or dual.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// CSVWriter writes scored products to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

var csvHeader = []string{
	"rank", "total_score", "name", "producer", "producer_url",
	"total_listing_count", "total_listing_raw", "failed_sites",
	"competition_score", "niche_score", "appeal", "accessibility_score",
	"description", "differentiation", "target_donor", "recommendation",
	"confidence", "site_counts",
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{file: f, writer: writer}, nil
}

// Write appends products to the CSV output.
func (cw *CSVWriter) Write(products []models.ScoredProduct) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, p := range products {
		record := []string{
			p.Rank,
			strconv.FormatFloat(p.TotalScore, 'f', 1, 64),
			p.Name,
			p.Producer,
			p.ProducerURL,
			p.TotalListingCount,
			countField(p.TotalListingRaw),
			strconv.Itoa(p.FailedSites),
			strconv.Itoa(p.CompetitionScore),
			strconv.Itoa(p.NicheScore),
			strconv.Itoa(p.Appeal),
			strconv.Itoa(p.AccessibilityScore),
			p.Description,
			p.Differentiation,
			p.TargetDonor,
			p.Recommendation,
			p.Confidence,
			siteCountsField(p.SiteCounts),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// countField renders a nullable count; unknown stays an empty cell rather
// than a zero.
func countField(count *int) string {
	if count == nil {
		return ""
	}
	return strconv.Itoa(*count)
}

// siteCountsField renders the ordered per-site counts in one cell, "-"
// marking sites without a known count.
func siteCountsField(counts []models.SiteCount) string {
	parts := make([]string, 0, len(counts))
	for _, sc := range counts {
		v := "-"
		if sc.Count != nil {
			v = strconv.Itoa(*sc.Count)
		}
		parts = append(parts, sc.DisplayName+"="+v)
	}
	return strings.Join(parts, "; ")
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends products in JSONL format.
func (jw *JSONWriter) Write(products []models.ScoredProduct) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, p := range products {
		if err := jw.encoder.Encode(p); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
