// Package extractor pulls a listing count out of an uncontrolled search
// response. It runs an ordered cascade of independent strategies; the
// first one producing a count in the valid range wins. Structured data is
// tried before markup hints, markup before visible-text patterns, because
// a structured count is least likely to be an unrelated number in page
// chrome. No match is an explicit unknown, distinct from zero.
package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/width"

	"github.com/shoohey/furusato-nozei-sales-ai/sites"
)

// maxValidCount caps accepted counts; anything above is parsing noise
// (a price, a product code) and falls through to the next strategy.
const maxValidCount = 100000

// Strategy is one independent way of reading a count off a page.
type Strategy struct {
	Name    string
	Extract func(p *Page, site sites.Descriptor) *int
}

// Page is a fetched response body parsed once and shared by strategies.
type Page struct {
	raw  string
	doc  *goquery.Document
	text string
	has  bool
}

func newPage(body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Page{raw: string(body), doc: doc}, nil
}

// Text returns the page's visible text, width-folded so full-width digits
// compare like ASCII. Computed lazily; text extraction walks the whole DOM.
func (p *Page) Text() string {
	if !p.has {
		p.text = width.Fold.String(p.doc.Text())
		p.has = true
	}
	return p.text
}

// Extractor runs the strategy cascade.
type Extractor struct {
	strategies []Strategy
}

// New returns an extractor with the default strategy order.
func New() *Extractor {
	return NewWithStrategies(
		Strategy{Name: "embedded_json", Extract: embeddedStructured},
		Strategy{Name: "site_hints", Extract: siteHints},
		Strategy{Name: "text_patterns", Extract: textPatterns},
		Strategy{Name: "attr_meta", Extract: attrMeta},
	)
}

// NewWithStrategies builds an extractor with an explicit cascade,
// for reordering or isolating strategies in tests.
func NewWithStrategies(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Count extracts the listing count from body for the given site. A nil
// count with nil error means the page was fetched fine but no strategy
// matched. The error return covers unexpected extraction conditions only.
func (e *Extractor) Count(body []byte, site sites.Descriptor) (count *int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count = nil
			err = fmt.Errorf("extraction panic: %v", r)
		}
	}()

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	page, err := newPage(body)
	if err != nil {
		return nil, err
	}
	for _, s := range e.strategies {
		if c := s.Extract(page, site); c != nil {
			return c, nil
		}
	}
	return nil, nil
}

// parseCount normalizes a locale-formatted number ("1,234", "１，２３４")
// and parses it. Returns nil when s is not a number.
func parseCount(s string) *int {
	s = width.Fold.String(strings.TrimSpace(s))
	s = strings.NewReplacer(",", "", " ", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func validCount(n int) bool {
	return n > 0 && n <= maxValidCount
}

var leadingNumberRe = regexp.MustCompile(`([0-9][0-9,]*)`)

// leadingNumber parses the first number appearing in text.
func leadingNumber(text string) *int {
	m := leadingNumberRe.FindStringSubmatch(width.Fold.String(text))
	if m == nil {
		return nil
	}
	return parseCount(m[1])
}
