package rag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const persona = "You are F-Buddy AI, a friendly and helpful financial assistant."

// PromptBuilder assembles generation prompts.
type PromptBuilder struct{}

// Build returns the document-grounded prompt when texts is non-empty and the
// general-knowledge prompt otherwise. Realtime values appear in both.
func (PromptBuilder) Build(query string, texts []string, realtime map[string]any) string {
	var parts []string

	parts = append(parts, persona)
	parts = append(parts, "")

	hasRealtime := len(realtime) > 0
	if hasRealtime {
		parts = append(parts, "CURRENT FINANCIAL STATUS:")
		parts = append(parts, RealtimeLines(realtime)...)
		parts = append(parts, "Use these figures when the user asks whether they can afford something.")
		parts = append(parts, "")
	}

	grounded := len(texts) > 0
	if grounded {
		parts = append(parts, "CONTEXT FROM DOCUMENTS/HISTORY:")
		parts = append(parts, strings.Join(texts, "\n\n"))
		parts = append(parts, "")
	} else {
		parts = append(parts, "No matching documents were found. Answer from general personal finance knowledge.")
		parts = append(parts, "")
	}

	parts = append(parts, "USER QUESTION:")
	parts = append(parts, query)
	parts = append(parts, "")

	parts = append(parts, "IMPORTANT RESPONSE RULES:")
	for i, rule := range responseRules(grounded, hasRealtime) {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, rule))
	}
	parts = append(parts, "")
	parts = append(parts, "Answer directly:")

	return strings.Join(parts, "\n")
}

func responseRules(grounded, hasRealtime bool) []string {
	rules := []string{
		"Give a DIRECT, CONCISE answer in 2-4 sentences max",
		"NO asterisks (*), hashes (#), or markdown symbols",
	}
	if grounded {
		rules = append(rules, `NO phrases like "Based on the context" or "According to the documents"`)
	} else {
		rules = append(rules, `NO phrases like "Based on my knowledge" or "Generally speaking"`)
	}
	rules = append(rules,
		`NO "In conclusion" or summary statements`,
		"Use simple, conversational language",
	)
	if grounded {
		rules = append(rules, "If asking about numbers, give the direct figure")
	}
	if hasRealtime {
		rules = append(rules,
			"If the user asks about buying or paying for something, compare the cost with the current balance",
			"If the balance is lower than the cost, say clearly that the funds are insufficient",
		)
	}
	rules = append(rules,
		"Only add a brief disclaimer for major financial decisions",
		"If not about finance, politely say you only help with money topics",
	)
	return rules
}

// RealtimeLines renders realtime values as "Key: Value" lines sorted by key.
// Keys are humanized: underscores become spaces and words are title cased.
func RealtimeLines(realtime map[string]any) []string {
	keys := make([]string, 0, len(realtime))
	for k := range realtime {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Casers carry state and cannot be shared across goroutines.
	caser := cases.Title(language.English)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		label := caser.String(strings.ReplaceAll(k, "_", " "))
		lines = append(lines, fmt.Sprintf("%s: %s", label, formatValue(realtime[k])))
	}
	return lines
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}
