package textproc

import (
	"regexp"
	"strings"
)

// Rule is one rewrite step of the response cleaner. Rules run in order and
// each sees the output of the previous one. A Rule should shorten the text
// whenever it matches, since Clean repeats the list until nothing changes.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// Apply rewrites every match of the rule in text.
func (r Rule) Apply(text string) string {
	return r.Pattern.ReplaceAllString(text, r.Replace)
}

// Lead-in phrases removed from the start of an answer.
var leadInPatterns = []string{
	`(?i)^Based on (the|my|this|your).*?,\s*`,
	`(?i)^According to.*?,\s*`,
	`(?i)^From (the|my|this).*?,\s*`,
	`(?i)^The (context|document|information).*?,\s*`,
	`(?i)^In (conclusion|summary|short),?\s*`,
	`(?i)^To (summarize|conclude|sum up),?\s*`,
	`(?i)^Overall,?\s*`,
	`(?i)^Generally (speaking)?,?\s*`,
}

// Trail-off phrases removed from the end of an answer.
var trailOffPatterns = []string{
	`(?i)\s*I hope this helps!?\s*$`,
	`(?i)\s*Let me know if.*$`,
	`(?i)\s*Feel free to.*$`,
	`(?i)\s*Is there anything else.*$`,
}

// DefaultRules returns the answer-style policy: markdown stripping, list
// prefix stripping, lead-in and trail-off phrase removal, and blank line
// collapsing. Callers may append rules of their own.
func DefaultRules() []Rule {
	rules := []Rule{
		{Name: "bold", Pattern: regexp.MustCompile(`\*\*([^*]+)\*\*`), Replace: "$1"},
		{Name: "italic", Pattern: regexp.MustCompile(`\*([^*]+)\*`), Replace: "$1"},
		{Name: "heading", Pattern: regexp.MustCompile(`#{1,6}\s*`)},
		{Name: "inline-code", Pattern: regexp.MustCompile("`([^`]+)`"), Replace: "$1"},
		{Name: "bullet", Pattern: regexp.MustCompile(`(?m)^\s*[-*+]\s+`)},
		{Name: "numbered", Pattern: regexp.MustCompile(`(?m)^\s*\d+\.\s+`)},
	}
	for _, p := range leadInPatterns {
		rules = append(rules, Rule{Name: "lead-in", Pattern: regexp.MustCompile(p)})
	}
	for _, p := range trailOffPatterns {
		rules = append(rules, Rule{Name: "trail-off", Pattern: regexp.MustCompile(p)})
	}
	rules = append(rules, Rule{Name: "blank-lines", Pattern: regexp.MustCompile(`\n{3,}`), Replace: "\n\n"})
	return rules
}

// Cleaner post-processes generated answers with an ordered rule list.
type Cleaner struct {
	rules []Rule
}

// NewCleaner creates a cleaner. With no rules it uses DefaultRules.
func NewCleaner(rules ...Rule) *Cleaner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Cleaner{rules: rules}
}

// maxPasses bounds Clean for rule lists that do not shorten the text.
const maxPasses = 32

// Clean runs the rule list followed by a trim, repeating until the text no
// longer changes. Every default rule shortens the text when it matches, so
// with them Clean(Clean(x)) == Clean(x). Rules that keep or grow the text
// stop after maxPasses.
func (c *Cleaner) Clean(text string) string {
	for range maxPasses {
		next := c.pass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (c *Cleaner) pass(text string) string {
	for _, rule := range c.rules {
		text = rule.Apply(text)
	}
	return strings.TrimSpace(text)
}

var defaultCleaner = NewCleaner()

// Clean applies the default rules.
func Clean(text string) string {
	return defaultCleaner.Clean(text)
}
