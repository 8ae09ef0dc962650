// Package sites describes the e-commerce search endpoints the engine
// queries. The registry is static data loaded once at startup: endpoint
// templates, timeouts, and per-site extraction hints are reverse-engineered
// heuristics that may break when a site changes markup, so they live here
// as swappable configuration instead of in engine code.
package sites

import (
	"net/url"
	"strings"
	"time"
)

// Hint points the extractor at an element likely to carry the result count.
type Hint struct {
	// Selector is a goquery/CSS selector for candidate elements.
	Selector string
	// Attr names an attribute to read instead of the element text.
	Attr string
	// Pattern is a regexp with one capture group applied to the value.
	// When empty, a leading number is parsed from the text.
	Pattern string
	// MinValid discards matches at or below this value. Used where a
	// page-size echo ("60件表示") would shadow the real total.
	MinValid int
}

// Descriptor is the immutable description of one target site.
type Descriptor struct {
	ID          string
	DisplayName string
	// URLTemplate contains a {query} placeholder substituted with the
	// percent-encoded query.
	URLTemplate string
	BaseURL     string
	Timeout     time.Duration
	// ClientRendered marks SPA sites whose counts are drawn client-side
	// and therefore often absent from the fetched document.
	ClientRendered bool
	// WarmUp issues a cookie-priming request to BaseURL before the
	// search request.
	WarmUp bool
	Hints  []Hint
}

// SearchURL substitutes the percent-encoded query into the template.
func (d Descriptor) SearchURL(query string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return strings.ReplaceAll(d.URLTemplate, "{query}", escaped)
}

// Registry holds an ordered, read-only list of site descriptors. Order
// defines both request pacing order and display order.
type Registry struct {
	ordered []Descriptor
	byID    map[string]Descriptor
}

// New builds a registry from descriptors, preserving their order.
func New(descriptors ...Descriptor) *Registry {
	r := &Registry{
		ordered: make([]Descriptor, len(descriptors)),
		byID:    make(map[string]Descriptor, len(descriptors)),
	}
	copy(r.ordered, descriptors)
	for _, d := range descriptors {
		r.byID[d.ID] = d
	}
	return r
}

// All returns the descriptors in registry order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Len reports the number of registered sites.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// DisplayNames returns the site display names in registry order.
func (r *Registry) DisplayNames() []string {
	names := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		names[i] = d.DisplayName
	}
	return names
}

// Default returns the five production furusato-nozei portals.
func Default() *Registry {
	return New(
		Descriptor{
			ID:          "satofull",
			DisplayName: "さとふる",
			URLTemplate: "https://www.satofull.jp/products/list.php?q={query}",
			BaseURL:     "https://www.satofull.jp",
			// Large pages; the default timeout times out regularly.
			Timeout: 45 * time.Second,
			Hints: []Hint{
				{Selector: "[aria-label]", Attr: "aria-label", Pattern: `[(（]([\d,]+)[)）]\s*件`},
				{Selector: "body", Pattern: `結果を見る[（(]([\d,]+)件[）)]`},
				// 60 items per page, so totals at or below 60 are
				// usually the pager echoing its own page size.
				{Selector: "body", Pattern: `([\d,]+)\s*件`, MinValid: 60},
			},
		},
		Descriptor{
			ID:          "furusato_choice",
			DisplayName: "ふるさとチョイス",
			URLTemplate: "https://www.furusato-tax.jp/search?q={query}",
			BaseURL:     "https://www.furusato-tax.jp",
			Timeout:     20 * time.Second,
			Hints: []Hint{
				{Selector: ".search-result__hit-count"},
				{Selector: ".p-search-result__count"},
			},
		},
		Descriptor{
			ID:          "rakuten",
			DisplayName: "楽天ふるさと納税",
			// tag=1000811 narrows to the donation category; the f=13
			// filter does not work.
			URLTemplate: "https://search.rakuten.co.jp/search/mall/{query}/?tag=1000811",
			BaseURL:     "https://www.rakuten.co.jp",
			Timeout:     20 * time.Second,
			Hints: []Hint{
				{Selector: ".dui-container .count"},
			},
		},
		Descriptor{
			ID:          "furunavi",
			DisplayName: "ふるなび",
			// /Product/Search is the correct path; renders client-side,
			// so counts are rarely present in the fetched document.
			URLTemplate:    "https://furunavi.jp/Product/Search?keyword={query}",
			BaseURL:        "https://furunavi.jp",
			Timeout:        20 * time.Second,
			ClientRendered: true,
		},
		Descriptor{
			ID:          "aupay",
			DisplayName: "au PAY ふるさと納税",
			// search_word is the working parameter; q= 404s.
			URLTemplate: "https://furusato.wowma.jp/products/list.php?search_word={query}",
			BaseURL:     "https://furusato.wowma.jp",
			Timeout:     20 * time.Second,
			Hints: []Hint{
				{Selector: ".search-result-count"},
			},
		},
	)
}
