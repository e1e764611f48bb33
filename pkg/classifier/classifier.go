// Package classifier keyword-scores content into a ranked list of domain
// tags, used by the composite combinator (pkg/strategy) to pick which
// sub-strategies a piece of content is worth running through.
package classifier

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// Result is the outcome of classifying one piece of content.
type Result struct {
	// RankedTypes lists content types with a non-zero score, highest first.
	RankedTypes []string
	// Confidences maps every declared type (zero-score types included) to
	// its share of the total score. Sums to 1.0 when any keyword matched,
	// otherwise uniform across all declared types.
	Confidences map[string]float64
}

// Top returns the highest-confidence type and its score, or ("", 0) if no
// keyword matched (RankedTypes is empty).
func (r Result) Top() (string, float64) {
	if len(r.RankedTypes) == 0 {
		return "", 0
	}
	top := r.RankedTypes[0]
	return top, r.Confidences[top]
}

// Classifier scores content against a static keyword table.
type Classifier struct {
	keywords map[string][]string // type -> lowercase keyword bag
	types    []string            // stable declaration order
}

// New builds a Classifier from the embedded default keyword table.
func New() (*Classifier, error) {
	return NewFromYAML(defaultKeywordsYAML)
}

// NewFromYAML builds a Classifier from a YAML document shaped like
// keywords.yaml, allowing callers to supply their own keyword table without
// recompiling the service.
func NewFromYAML(doc []byte) (*Classifier, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, err
	}

	c := &Classifier{keywords: make(map[string][]string, len(raw))}
	for contentType, words := range raw {
		lowered := make([]string, len(words))
		for i, w := range words {
			lowered[i] = strings.ToLower(w)
		}
		c.keywords[contentType] = lowered
		c.types = append(c.types, contentType)
	}
	sort.Strings(c.types)
	return c, nil
}

// Classify scores content against every declared type.
func (c *Classifier) Classify(content string) Result {
	lowered := strings.ToLower(content)

	scores := make(map[string]int, len(c.types))
	var total int
	for _, contentType := range c.types {
		var score int
		for _, kw := range c.keywords[contentType] {
			score += strings.Count(lowered, kw)
		}
		scores[contentType] = score
		total += score
	}

	confidences := make(map[string]float64, len(c.types))
	var ranked []string

	if total == 0 {
		uniform := 0.0
		if len(c.types) > 0 {
			uniform = 1.0 / float64(len(c.types))
		}
		for _, t := range c.types {
			confidences[t] = uniform
		}
		return Result{RankedTypes: nil, Confidences: confidences}
	}

	for _, t := range c.types {
		confidences[t] = float64(scores[t]) / float64(total)
		if scores[t] > 0 {
			ranked = append(ranked, t)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return confidences[ranked[i]] > confidences[ranked[j]]
	})

	return Result{RankedTypes: ranked, Confidences: confidences}
}

// Types returns the declared content types in stable order.
func (c *Classifier) Types() []string {
	out := make([]string, len(c.types))
	copy(out, c.types)
	return out
}
