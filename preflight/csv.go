package preflight

import (
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/preflight/tabstat"
)

// unitTokenRe matches the measurement-unit vocabulary of lab exports.
// A results table without a single unit token is unusable for review.
var unitTokenRe = regexp.MustCompile(`(?i)(mg/d?l|mmol/l|g/d?l|g/l|iu/l|u/l|ng/ml|pg/ml|µg/l|ug/l|10\^9/l|10\^12/l|\bunits?\b)`)

// analyzeCSV parses a delimiter-separated text export and scores its
// structural consistency. Reading is capped at the tabstat sample limits.
func (e *Engine) analyzeCSV(_ context.Context, d Descriptor) (Result, error) {
	data, err := d.ReadAll(tabstat.MaxSampleBytes)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", d.Name, err)
	}
	text := string(data)

	delim := tabstat.DetectDelimiter(text)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("parse csv %s: %w", d.Name, err)
	}
	rows = tabstat.SampleRows(rows)

	p := e.policies.LabCSV
	counts := tabstat.ColumnCounts(rows)
	consistency := tabstat.ConsistencyRate(counts)
	empties := tabstat.EmptyCellRate(rows)
	hasUnits := unitTokenRe.MatchString(text)

	s := &scorer{}
	s.detail("delimiter: %q", delim)
	s.detail("rows sampled: %d", len(rows))
	s.detail("column mode: %d", tabstat.Mode(counts))
	s.detail("inconsistent rows: %.0f%%", consistency*100)
	s.detail("empty cells: %.0f%%", empties*100)
	s.detail("unit tokens found: %v", hasUnits)

	p.Rows.apply(float64(len(rows)), s)
	p.Consistency.apply(consistency, s)
	p.Empties.apply(empties, s)
	if hasUnits {
		s.add(p.UnitPts)
	} else {
		s.say(p.UnitAdvice)
	}

	return s.result(FamilyLabCSV, p.Thresholds), nil
}
