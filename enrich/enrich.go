// Package enrich completes vulnerability findings with CVE data.
package enrich

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/nvd"
)

// Source looks up a CVE. A failed lookup still returns the record to apply,
// normally nvd.Degraded. *nvd.Client implements it.
type Source interface {
	Lookup(ctx context.Context, cve string) (*nvd.Record, error)
}

// Summary counts what a call to Enrich did.
type Summary struct {
	// Enriched is the number of vulnerabilities updated from a lookup
	Enriched int

	// Degraded is the number of vulnerabilities whose lookup failed
	Degraded int

	// Skipped is the number of vulnerabilities without a CVE
	Skipped int
}

// Enricher overwrites vulnerability details with data from a Source.
type Enricher struct {
	source Source
	logger *slog.Logger
}

// New creates an Enricher. A nil logger uses slog.Default.
func New(source Source, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{source: source, logger: logger}
}

// Enrich updates every vulnerability in findings that carries a CVE. Each
// distinct CVE is looked up once per call. Lookup failures degrade the
// finding instead of failing the batch; only cancellation is returned.
func (e *Enricher) Enrich(ctx context.Context, findings []entity.Entity) (Summary, error) {
	var sum Summary
	type result struct {
		rec *nvd.Record
		err error
	}
	seen := make(map[string]result)

	for _, f := range findings {
		v, ok := f.(*entity.Vulnerability)
		if !ok {
			continue
		}
		cve := strings.ToUpper(strings.TrimSpace(v.CVE))
		if cve == "" {
			sum.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		r, ok := seen[cve]
		if !ok {
			rec, err := e.source.Lookup(ctx, cve)
			if rec == nil {
				rec = nvd.Degraded(cve)
			}
			r = result{rec: rec, err: err}
			seen[cve] = r
		}

		Apply(v, r.rec)
		if r.err != nil {
			sum.Degraded++
			e.logger.WarnContext(ctx, "vulnerability enrichment degraded",
				"finding_id", v.ID, "cve", cve, "error", r.err)
			continue
		}
		sum.Enriched++
	}
	return sum, nil
}

// Apply overwrites the enrichable fields of v with rec.
func Apply(v *entity.Vulnerability, rec *nvd.Record) {
	v.CVE = rec.CVE
	v.Description = rec.Description
	v.Severity = rec.Severity
	v.CWE = rec.CWE
	v.Reference = rec.Reference
}
