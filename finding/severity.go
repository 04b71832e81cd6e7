package finding

import "fmt"

// Severity represents the severity level of a security finding.
type Severity string

const (
	// SeverityCritical indicates a critical security issue requiring immediate attention.
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a high-impact security issue.
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a moderate security issue. It is also the
	// default for vulnerabilities without a CVSS score.
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor security issue.
	SeverityLow Severity = "low"

	// SeverityInfo indicates an informational finding without direct security impact.
	SeverityInfo Severity = "info"
)

// DefaultSeverity is assigned when no primary CVSS metric is available.
const DefaultSeverity = SeverityMedium

// severityWeights maps severity levels to numeric weights used for ordering.
var severityWeights = map[Severity]float64{
	SeverityCritical: 10.0,
	SeverityHigh:     7.5,
	SeverityMedium:   5.0,
	SeverityLow:      2.5,
	SeverityInfo:     1.0,
}

// cvssBand is a half-open [Low, High) score range. Inclusive marks the top
// band, whose upper bound is part of the range.
type cvssBand struct {
	Severity  Severity
	Low       float64
	High      float64
	Inclusive bool
}

var cvssBands = []cvssBand{
	{Severity: SeverityCritical, Low: 9, High: 10, Inclusive: true},
	{Severity: SeverityHigh, Low: 7, High: 9},
	{Severity: SeverityMedium, Low: 4, High: 7},
	{Severity: SeverityLow, Low: 2, High: 4},
	{Severity: SeverityInfo, Low: 0, High: 2},
}

// FromCVSS maps a CVSS base score onto the severity scale.
// Scores outside [0, 10] return DefaultSeverity.
func FromCVSS(score float64) Severity {
	for _, band := range cvssBands {
		if score < band.Low {
			continue
		}
		if score < band.High || (band.Inclusive && score == band.High) {
			return band.Severity
		}
	}
	return DefaultSeverity
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight associated with the severity level.
// Returns 0.0 for invalid severity levels.
func (s Severity) Weight() float64 {
	if weight, ok := severityWeights[s]; ok {
		return weight
	}
	return 0.0
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity value.
// Returns an error if the string is not a valid severity level.
func ParseSeverity(s string) (Severity, error) {
	severity := Severity(s)
	if !severity.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return severity, nil
}

// CompareSeverity compares two severity levels.
// Returns:
//   - negative if s1 < s2
//   - zero if s1 == s2
//   - positive if s1 > s2
func CompareSeverity(s1, s2 Severity) int {
	w1 := s1.Weight()
	w2 := s2.Weight()
	if w1 < w2 {
		return -1
	}
	if w1 > w2 {
		return 1
	}
	return 0
}

// AllSeverities returns all valid severity levels in order from critical to info.
func AllSeverities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
	}
}
