// Package bill turns receipt photos into structured expense records with a
// vision-capable model.
package bill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fbuddy/rag/internal/llm"
	"github.com/fbuddy/rag/internal/logger"
)

// ErrExtraction wraps provider and parse failures.
var ErrExtraction = errors.New("bill extraction failed")

// Status values of a Record.
const (
	StatusSuccess = "success"
	StatusDemo    = "demo_no_key"
)

const (
	maxMerchantLen  = 25
	defaultMerchant = "Not Avl"
	defaultDate     = "Not Mentioned"
	defaultCategory = "others"
	demoMerchant    = "Demo Merchant"
)

// DefaultCategories is the expense category set used when none is configured.
var DefaultCategories = []string{
	"restaurants", "food", "drinks", "transport", "fuel", "clothes", "education",
	"health", "hotel", "fun", "personal", "pets", "others",
}

// Record is a parsed bill. Date is nil when the model reported no date.
type Record struct {
	Merchant string         `json:"merchant"`
	Amount   float64        `json:"amount"`
	Category string         `json:"category"`
	Date     *string        `json:"date"`
	Status   string         `json:"status"`
	RawData  map[string]any `json:"raw_data,omitempty"`
}

// Extractor reads bills with a multimodal generator.
type Extractor struct {
	generator  llm.Generator
	categories []string
	known      map[string]bool
	now        func() time.Time
}

// NewExtractor creates an extractor. A nil generator puts it in demo mode
// where Extract returns a placeholder without calling any provider.
func NewExtractor(generator llm.Generator, categories []string) *Extractor {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	return &Extractor{
		generator:  generator,
		categories: categories,
		known:      known,
		now:        time.Now,
	}
}

// Demo reports whether no generator is configured.
func (e *Extractor) Demo() bool {
	return e.generator == nil
}

// Extract reads one bill image.
func (e *Extractor) Extract(ctx context.Context, image []byte) (*Record, error) {
	if e.generator == nil {
		today := e.now().Format("2006-01-02")
		return &Record{
			Merchant: demoMerchant,
			Category: defaultCategory,
			Date:     &today,
			Status:   StatusDemo,
		}, nil
	}

	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}

	text, err := e.generator.Generate(ctx, llm.Request{
		Prompt: e.prompt(),
		Images: []llm.Image{{Data: image, MIMEType: mime}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	logger.Debug("Bill model reply: %s", text)

	return e.parse(text)
}

func (e *Extractor) prompt() string {
	var parts []string
	parts = append(parts, "Extract bill info from this image. Return ONLY JSON, nothing else.")
	parts = append(parts, "")
	parts = append(parts, "RULES:")
	parts = append(parts, "- merchant: Store/restaurant name (MAX 25 chars, just the name, no address). Look for the largest, boldest text at the top.")
	parts = append(parts, `- amount: Final total (number only, after taxes, look for "Bill Total", "Grand Total", "Total Rs"). Do NOT include currency symbols.`)
	parts = append(parts, "- category: One of: "+strings.Join(e.categories, ", ")+".")
	parts = append(parts, "- date: YYYY-MM-DD format or null.")
	parts = append(parts, "")
	parts = append(parts, "CATEGORY HINTS:")
	for _, c := range e.categories {
		if hint, ok := categoryHints[c]; ok {
			parts = append(parts, fmt.Sprintf("- %s: %s", c, hint))
		}
	}
	parts = append(parts, "")
	parts = append(parts, "RESPOND WITH ONLY JSON:")
	parts = append(parts, `{"merchant":"Name","amount":123.45,"category":"restaurants","date":"2025-12-31"}`)
	return strings.Join(parts, "\n")
}

var categoryHints = map[string]string{
	"restaurants": "dine-in, menu items, FSSAI, Table No, kitchen, cafe, dhaba",
	"food":        "Zomato, Swiggy, grocery, supermarket",
	"drinks":      "bar, pub, wine, beer, alcohol",
	"transport":   "uber, ola, taxi, fuel, flight, train",
	"fuel":        "petrol, diesel, cng, gas station",
	"clothes":     "apparel, fashion, zudio, trends",
	"education":   "school, college, books, stationery",
	"health":      "hospital, pharmacy, medicine, gym",
	"hotel":       "oyo, stay, room, resort",
	"fun":         "movie, cinema, game, netflix",
	"personal":    "salon, spa, grooming",
	"pets":        "vet, pet food",
	"others":      "shopping, electronics, recharge, bill",
}

func (e *Extractor) parse(text string) (*Record, error) {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start > 0 && end > start {
		text = text[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON from model: %w", ErrExtraction, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: model returned null", ErrExtraction)
	}

	rec := &Record{
		Merchant: defaultMerchant,
		Category: defaultCategory,
		Status:   StatusSuccess,
		RawData:  raw,
	}

	if m, ok := raw["merchant"].(string); ok && strings.TrimSpace(m) != "" {
		rec.Merchant = truncate(strings.TrimSpace(m), maxMerchantLen)
	}
	rec.Amount = parseAmount(raw["amount"])

	if d, present := raw["date"]; !present {
		date := defaultDate
		rec.Date = &date
	} else if s, ok := d.(string); ok {
		rec.Date = &s
	}

	if c, ok := raw["category"].(string); ok {
		c = strings.ToLower(strings.TrimSpace(c))
		if e.known[c] {
			rec.Category = c
		}
	}

	return rec, nil
}

// parseAmount accepts JSON numbers and numeric strings such as "1,299.00" or
// "Rs 450". Anything else is zero.
func parseAmount(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err == nil {
			return f
		}
	case float64:
		return x
	case string:
		var b bytes.Buffer
		for _, r := range x {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				b.WriteRune(r)
			}
		}
		f, err := strconv.ParseFloat(strings.Trim(b.String(), "."), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
