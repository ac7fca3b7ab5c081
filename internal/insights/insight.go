// Package insights turns table statistics into prioritized, actionable findings.
package insights

import (
	"errors"
	"fmt"
)

// Severity ranks an insight. Lower values sort first.
type Severity int

// Severities in sort order.
const (
	SeverityCritical Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityGood
)

var severityNames = [...]string{
	SeverityCritical: "critical",
	SeverityWarning:  "warning",
	SeverityInfo:     "info",
	SeverityGood:     "good",
}

// ErrUnknownEnum is returned when text does not name a known severity or category.
var ErrUnknownEnum = errors.New("unknown enum value")

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}

	return severityNames[s]
}

// Rank is the sort key of the severity.
func (s Severity) Rank() int {
	return int(s)
}

// MarshalText encodes the severity name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	for i, name := range severityNames {
		if name == string(text) {
			*s = Severity(i)

			return nil
		}
	}

	return fmt.Errorf("severity %q: %w", text, ErrUnknownEnum)
}

// Category classifies what an insight is about.
type Category int

// Categories.
const (
	CategoryPerformance Category = iota
	CategoryCost
	CategoryMaintenance
	CategoryReliability
)

var categoryNames = [...]string{
	CategoryPerformance: "performance",
	CategoryCost:        "cost",
	CategoryMaintenance: "maintenance",
	CategoryReliability: "reliability",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}

	return categoryNames[c]
}

// MarshalText encodes the category name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	for i, name := range categoryNames {
		if name == string(text) {
			*c = Category(i)

			return nil
		}
	}

	return fmt.Errorf("category %q: %w", text, ErrUnknownEnum)
}

// Insight is one diagnostic finding.
type Insight struct {
	Severity       Severity `json:"severity"       yaml:"severity"`
	Category       Category `json:"category"       yaml:"category"`
	Title          string   `json:"title"          yaml:"title"`
	Description    string   `json:"description"    yaml:"description"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
}

// CountBySeverity tallies insights per severity.
func CountBySeverity(insights []Insight) map[Severity]int {
	counts := make(map[Severity]int, len(severityNames))
	for _, insight := range insights {
		counts[insight.Severity]++
	}

	return counts
}
