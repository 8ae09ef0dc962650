// Package discovery generates candidate niche products for a municipality
// via the Anthropic API. Its output contract is the engine's input: every
// product carries name/producer/URL plus 1-10 appeal and niche ratings,
// with documented defaults substituted for anything the model omitted.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shoohey/furusato-nozei-sales-ai/models"
)

const defaultModel = anthropic.Model("claude-sonnet-4-20250514")

// CategoryLabels expands the short category names shown to users into the
// phrasing the prompt uses.
var CategoryLabels = map[string]string{
	"肉類":      "肉類（牛肉・豚肉・鶏肉・ジビエなど）",
	"海産物":     "海産物（魚介類・海藻・干物など）",
	"野菜・果物":   "野菜・果物（生鮮・ドライフルーツなど）",
	"米・穀物":    "米・穀物（ブランド米・雑穀など）",
	"酒類":      "酒類（日本酒・焼酎・ワイン・ビールなど）",
	"スイーツ・菓子": "スイーツ・菓子（和菓子・洋菓子など）",
	"工芸品":     "工芸品（陶器・木工・織物など）",
	"加工品":     "加工品（漬物・調味料・缶詰・ハム・ソーセージなど）",
}

// APIKey resolves the Anthropic API key: an explicit value wins, then the
// ANTHROPIC_API_KEY environment variable.
func APIKey(explicit string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("anthropic api key not configured")
}

// Client wraps the Anthropic SDK for product discovery.
type Client struct {
	api   anthropic.Client
	model anthropic.Model
}

// NewClient builds a discovery client for the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		api:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: defaultModel,
	}
}

// DiscoverProducts asks the model for productCount niche candidates in the
// given prefecture/municipality and category. An empty slice with a nil
// error means the model answered but nothing could be parsed.
func (c *Client) DiscoverProducts(ctx context.Context, prefecture, municipality, category string, productCount int) ([]models.Product, error) {
	prompt := buildPrompt(prefecture, municipality, category, productCount)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokensFor(productCount),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: create message: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	return ParseProducts(text), nil
}

// maxTokensFor sizes the response budget to roughly 400 tokens per
// product, within the model's practical bounds.
func maxTokensFor(productCount int) int64 {
	tokens := productCount * 400
	if tokens < 4096 {
		tokens = 4096
	}
	if tokens > 8192 {
		tokens = 8192
	}
	return int64(tokens)
}

func buildPrompt(prefecture, municipality, category string, productCount int) string {
	categoryDetail, ok := CategoryLabels[category]
	if !ok {
		categoryDetail = category
	}
	location := prefecture + municipality

	return fmt.Sprintf(`あなたはふるさと納税の「穴場商品」発掘の専門家です。
大手ふるさと納税サイトで既に大量に出品されている定番商品ではなく、
まだあまり知られていない隠れた逸品・穴場商品を見つけ出すことが使命です。

## 対象地域
%s

## カテゴリ
%s

## 重要：穴場商品の条件
以下の条件に合う商品を優先してください：

### 探すべき商品（穴場）
- **小規模な生産者・工房**が作っている高品質な商品
- **地元では有名だが全国的にはほとんど知られていない**特産品
- **新しく立ち上がった**ブランドや商品（ここ数年で始まった事業）
- **伝統製法を守る少量生産品**（大量生産されていない希少性のあるもの）
- **地域の特殊な気候・風土でしか作れない**独自性の高い商品
- **コンテストや品評会で受賞歴があるが知名度が低い**商品
- **異業種参入・新規参入した**ユニークな生産者の商品
- **他のふるさと納税サイトであまり見かけない**商品

### 避けるべき商品（王道すぎる）
- 全国的に有名なブランド牛・ブランド米などの定番品
- 大手企業が大量生産している商品
- 既にふるさと納税サイトで大量に出品されているもの
- どの地域でも似たような商品が出ているもの（例：普通の和牛切り落とし）

## 調査内容
上記の条件を踏まえて、%sで実際に生産・製造されている%sの**穴場商品**を**%d個**リストアップしてください。
架空の商品は含めないでください。確信が持てない商品は「confidence: 低」と明記してください。

各商品について以下の情報を調べてください：
1. **name**: 具体的な商品名やブランド名
2. **producer**: 製造元・生産者の名称
3. **producer_url**: 公式Webサイト（不明な場合は "不明"）
4. **appeal** (1-10): ふるさと納税返礼品としての魅力（品質・ストーリー・見栄え）
5. **niche_score** (1-10): 穴場度（高いほどまだ知られていない穴場）
   - 10: ほとんど誰も知らない超穴場
   - 7-9: 地元民は知っているが全国的には無名
   - 4-6: ある程度知られているが競合少ない
   - 1-3: 既にかなり出回っている
6. **description**: 50文字以内の簡潔な説明
7. **differentiation**: この商品ならではの差別化ポイント（他にはない独自の魅力）
8. **target_donor**: この返礼品が刺さりそうなターゲット層
9. **recommendation**: なぜこの穴場商品を営業すべきか
10. **confidence**: 確度（"高" / "中" / "低"）

## 出力形式
必ず以下のJSON形式で出力してください。JSON以外のテキストは含めないでください。

`+"```json"+`
[
  {
    "name": "商品名",
    "producer": "生産者名",
    "producer_url": "https://example.com",
    "appeal": 8,
    "niche_score": 9,
    "description": "商品の簡潔な説明",
    "differentiation": "他にはない独自の魅力",
    "target_donor": "ターゲット層",
    "recommendation": "営業推薦理由",
    "confidence": "高"
  }
]
`+"```", location, categoryDetail, location, category, productCount)
}

var (
	fencedJSONRe = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")
	bareArrayRe  = regexp.MustCompile(`\[[\s\S]*\]`)
)

// ParseProducts extracts the product list from a model response: a fenced
// json block first, a bare JSON array as fallback. Unparseable responses
// yield an empty list. Every product is normalized against the contract:
// numeric scores clamped to 1-10 (default 5), missing strings defaulted.
func ParseProducts(text string) []models.Product {
	var payload string
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		payload = m[1]
	} else if m := bareArrayRe.FindString(text); m != "" {
		payload = m
	} else {
		return nil
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil
	}

	products := make([]models.Product, 0, len(raw))
	for _, entry := range raw {
		products = append(products, models.Product{
			Name:            fieldString(entry, "name", "不明"),
			Producer:        fieldString(entry, "producer", "不明"),
			ProducerURL:     fieldString(entry, "producer_url", "不明"),
			Appeal:          fieldClamp(entry, "appeal", 5),
			NicheScore:      fieldClamp(entry, "niche_score", 5),
			Description:     fieldString(entry, "description", ""),
			Differentiation: fieldString(entry, "differentiation", ""),
			TargetDonor:     fieldString(entry, "target_donor", ""),
			Recommendation:  fieldString(entry, "recommendation", ""),
			Confidence:      fieldString(entry, "confidence", "中"),
		})
	}
	return products
}

func fieldString(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	default:
		return fmt.Sprint(t)
	}
}

// fieldClamp reads a 1-10 score, tolerating numbers encoded as strings.
func fieldClamp(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return clamp(def)
	}
	switch t := v.(type) {
	case float64:
		return clamp(int(t))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 1
		}
		return clamp(n)
	default:
		return 1
	}
}

func clamp(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
