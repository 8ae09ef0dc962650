package extractor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shoohey/furusato-nozei-sales-ai/sites"
)

// Depth and breadth limits for the recursive key search inside
// framework-embedded JSON blobs (__NEXT_DATA__, __NUXT__ and friends).
const (
	jsonSearchMaxDepth = 5
	jsonSearchMaxList  = 10
)

// countKeyRe matches known result-count keys in raw JSON payloads,
// camelCase and snake_case variants alike.
var countKeyRe = regexp.MustCompile(
	`"(?:totalCount|total_count|totalHits|total_hits|numFound|num_found|nbHits|nb_hits|resultCount|result_count|itemCount|item_count|hitCount|hit_count|total)"\s*:\s*"?([0-9][0-9,]*)"?`,
)

// countKeys is the same key set in folded form for the recursive search.
var countKeys = map[string]struct{}{
	"totalcount":  {},
	"totalhits":   {},
	"numfound":    {},
	"nbhits":      {},
	"resultcount": {},
	"itemcount":   {},
	"hitcount":    {},
	"total":       {},
}

func isCountKey(key string) bool {
	key = strings.ReplaceAll(strings.ToLower(key), "_", "")
	_, ok := countKeys[key]
	return ok
}

// embeddedStructured scans script payloads for known count keys, by regex
// over the raw document first and then by a depth-limited recursive key
// search inside any script that parses as a full JSON blob.
func embeddedStructured(p *Page, _ sites.Descriptor) *int {
	for _, m := range countKeyRe.FindAllStringSubmatch(p.raw, -1) {
		if c := parseCount(m[1]); c != nil && validCount(*c) {
			return c
		}
	}

	var found *int
	p.doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		payload := strings.TrimSpace(s.Text())
		if payload == "" {
			return true
		}
		if !strings.HasPrefix(payload, "{") && !strings.HasPrefix(payload, "[") {
			return true
		}
		var blob any
		if err := json.Unmarshal([]byte(payload), &blob); err != nil {
			return true
		}
		if c := searchCountKeys(blob, 0); c != nil {
			found = c
			return false
		}
		return true
	})
	return found
}

// searchCountKeys walks a decoded JSON value looking for count keys.
// Maps are scanned for matching keys before descending; map keys are
// visited in sorted order so results do not depend on Go map iteration.
func searchCountKeys(v any, depth int) *int {
	if depth > jsonSearchMaxDepth {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !isCountKey(k) {
				continue
			}
			if c := numberValue(t[k]); c != nil && validCount(*c) {
				return c
			}
		}
		for _, k := range keys {
			if c := searchCountKeys(t[k], depth+1); c != nil {
				return c
			}
		}
	case []any:
		for i, item := range t {
			if i >= jsonSearchMaxList {
				break
			}
			if c := searchCountKeys(item, depth+1); c != nil {
				return c
			}
		}
	}
	return nil
}

func numberValue(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		if float64(n) != t {
			return nil
		}
		return &n
	case string:
		return parseCount(t)
	}
	return nil
}

// siteHints tries the site's own ordered element hints: attribute value or
// element text, optionally matched against the hint's pattern.
func siteHints(p *Page, site sites.Descriptor) *int {
	for _, hint := range site.Hints {
		re, err := compileHint(hint.Pattern)
		if err != nil {
			continue
		}

		var found *int
		p.doc.Find(hint.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, value := range hintValues(s, hint) {
				for _, c := range hintCounts(value, re) {
					if !validCount(c) || c <= hint.MinValid {
						continue
					}
					found = &c
					return false
				}
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func compileHint(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// hintValues lists the candidate strings for one element: the named
// attribute when the hint asks for one, otherwise count-like data
// attributes first and the element text last.
func hintValues(s *goquery.Selection, hint sites.Hint) []string {
	if hint.Attr != "" {
		if v, ok := s.Attr(hint.Attr); ok {
			return []string{v}
		}
		return nil
	}

	var values []string
	for _, node := range s.Nodes {
		for _, attr := range node.Attr {
			if strings.HasPrefix(attr.Key, "data-") && countLikeKeyword(attr.Key) {
				values = append(values, attr.Val)
			}
		}
	}
	return append(values, s.Text())
}

// hintCounts parses every pattern match in value, or its leading number
// when the hint has no pattern.
func hintCounts(value string, re *regexp.Regexp) []int {
	if re == nil {
		if c := leadingNumber(value); c != nil {
			return []int{*c}
		}
		return nil
	}
	var counts []int
	for _, m := range re.FindAllStringSubmatch(value, -1) {
		if len(m) < 2 {
			continue
		}
		if c := parseCount(m[1]); c != nil {
			counts = append(counts, *c)
		}
	}
	return counts
}

// textPatterns matches natural-language count phrases against the page's
// visible text, most specific first. A qualified phrase ("検索結果：1,234件")
// beats the bare "N件" that may be unrelated page content.
var textCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([0-9][0-9,]*)\s*件\s*(?:の|が|を|見つかり|ヒット|表示)`),
	regexp.MustCompile(`検索結果\s*[:：]?\s*([0-9][0-9,]*)\s*件`),
	regexp.MustCompile(`全\s*([0-9][0-9,]*)\s*件`),
	regexp.MustCompile(`([0-9][0-9,]*)\s*件\s*中`),
	regexp.MustCompile(`該当\s*([0-9][0-9,]*)\s*件`),
	regexp.MustCompile(`([0-9][0-9,]*)\s*件`),
}

func textPatterns(p *Page, _ sites.Descriptor) *int {
	text := p.Text()
	for _, re := range textCountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if c := parseCount(m[1]); c != nil && validCount(*c) {
				return c
			}
		}
	}
	return nil
}

// attrMeta is the last-resort scan: count-shaped data attributes anywhere
// in the document, then meta tags with a count-like name or property.
var genericCountAttrs = []string{
	"data-total-count",
	"data-result-count",
	"data-total",
	"data-count",
	"data-hits",
}

func attrMeta(p *Page, _ sites.Descriptor) *int {
	for _, attr := range genericCountAttrs {
		var found *int
		p.doc.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(attr)
			if c := parseCount(v); c != nil && validCount(*c) {
				found = c
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}

	var found *int
	p.doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if name == "" {
			name, _ = s.Attr("property")
		}
		if !countLikeKeyword(name) {
			return true
		}
		content, _ := s.Attr("content")
		if c := leadingNumber(content); c != nil && validCount(*c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func countLikeKeyword(key string) bool {
	key = strings.ToLower(key)
	for _, kw := range []string{"count", "total", "hits", "results"} {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}
