package nvd

import (
	"sort"
	"strings"

	"github.com/zero-day-ai/taskforge/finding"
)

// ReferenceURL is the human-readable NVD page prefix for a CVE.
const ReferenceURL = "https://nvd.nist.gov/vuln/detail/"

// metricFields lists the CVSS metric families in order of preference.
var metricFields = []string{"cvssMetricV31", "cvssMetricV30", "cvssMetricV3", "cvssMetricV2"}

// Record is the enrichment data for one CVE.
type Record struct {
	CVE         string
	Description string
	CWE         string
	Reference   string
	Severity    finding.Severity

	// Score is the primary CVSS base score, zero when none was found
	Score float64
}

// Degraded returns the record used when a CVE cannot be looked up.
func Degraded(cve string) *Record {
	return &Record{
		CVE:       cve,
		Reference: Reference(cve),
		Severity:  finding.DefaultSeverity,
	}
}

// Reference returns the NVD detail page for cve.
func Reference(cve string) string {
	return ReferenceURL + cve
}

type apiResponse struct {
	Vulnerabilities []struct {
		CVE apiCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type langString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type apiCVE struct {
	ID           string       `json:"id"`
	Descriptions []langString `json:"descriptions"`
	Weaknesses   []struct {
		Type        string       `json:"type"`
		Description []langString `json:"description"`
	} `json:"weaknesses"`
	Metrics map[string][]apiMetric `json:"metrics"`
}

type apiMetric struct {
	Type     string `json:"type"`
	CVSSData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

func (c *apiCVE) record(cve string) *Record {
	r := Degraded(cve)
	r.Description = c.description()
	r.CWE = c.cwe()
	if score, ok := c.primaryScore(); ok {
		r.Score = score
		r.Severity = finding.FromCVSS(score)
	}
	return r
}

// description returns the first English description.
func (c *apiCVE) description() string {
	for _, d := range c.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	return ""
}

// cwe returns the first CWE identifier of a primary weakness.
func (c *apiCVE) cwe() string {
	for _, w := range c.Weaknesses {
		if w.Type != "Primary" {
			continue
		}
		for _, d := range w.Description {
			if strings.HasPrefix(strings.ToLower(d.Value), "cwe-") {
				return d.Value
			}
		}
	}
	return ""
}

// primaryScore returns the base score of the first primary metric, walking
// metric families in preference order. A family missing under its exact
// name is matched by case-insensitive prefix.
func (c *apiCVE) primaryScore() (float64, bool) {
	for _, field := range metricFields {
		for _, m := range c.metricsFor(field) {
			if m.Type == "Primary" && m.CVSSData.BaseScore != 0 {
				return m.CVSSData.BaseScore, true
			}
		}
	}
	return 0, false
}

func (c *apiCVE) metricsFor(field string) []apiMetric {
	if ms := c.Metrics[field]; len(ms) > 0 {
		return ms
	}
	keys := make([]string, 0, len(c.Metrics))
	for k := range c.Metrics {
		if strings.HasPrefix(strings.ToLower(k), strings.ToLower(field)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []apiMetric
	for _, k := range keys {
		out = append(out, c.Metrics[k]...)
	}
	return out
}
