package preflight

import (
	"context"
	"strings"
	"testing"
)

const cleanCSV = `test,result,ref
Hemoglobin,13.5 g/dL,12-16
WBC,6.2,4-11
Platelets,250,150-400
Sodium,140 mmol/L,135-145
Potassium,4.1,3.5-5.0
Creatinine,0.9 mg/dL,0.6-1.2
`

func TestAnalyzeCSV_CleanExport(t *testing.T) {
	// WHAT: A consistent, complete export with units scores full marks with
	// no advisories.
	// WHY: A clean file must not nag the user.
	eng := newTestEngine(t)
	res := eng.Analyze(context.Background(), BytesDescriptor("cbc.csv", "text/csv", []byte(cleanCSV)))

	if res.Family != FamilyLabCSV {
		t.Fatalf("family = %s, want lab_csv", res.Family)
	}
	if res.Score != 100 || res.Verdict != VerdictAccept {
		t.Errorf("score/verdict = %d/%s, want 100/accept", res.Score, res.Verdict)
	}
	if len(res.Messages) != 0 {
		t.Errorf("unexpected messages: %v", res.Messages)
	}
}

func TestAnalyzeCSV_SemicolonDelimited(t *testing.T) {
	// WHAT: A semicolon export scores the same as its comma twin.
	// WHY: European lab software exports with semicolons; the delimiter must
	// not change the verdict.
	eng := newTestEngine(t)
	semi := strings.ReplaceAll(cleanCSV, ",", ";")
	res := eng.Analyze(context.Background(), BytesDescriptor("cbc.csv", "text/csv", []byte(semi)))

	if res.Score != 100 || res.Verdict != VerdictAccept {
		t.Errorf("score/verdict = %d/%s, want 100/accept", res.Score, res.Verdict)
	}
}

func TestAnalyzeCSV_NoUnits(t *testing.T) {
	// WHAT: An export without a single unit token loses the unit credit and
	// carries the advisory.
	// WHY: Bare numbers cannot be interpreted at review time.
	data := "a,b,c\n1,2,3\n4,5,6\n7,8,9\n10,11,12\n13,14,15\n"

	eng := newTestEngine(t)
	res := eng.Analyze(context.Background(), BytesDescriptor("numbers.csv", "text/csv", []byte(data)))

	if res.Score != 80 {
		t.Errorf("score = %d, want 80", res.Score)
	}
	if !hasMessageContaining(res, "No measurement units") {
		t.Errorf("missing units advisory, got %v", res.Messages)
	}
}

func TestUnitTokenRecognition(t *testing.T) {
	// WHAT: The unit vocabulary matches common lab units and nothing else.
	// WHY: False negatives cost 20 points on otherwise clean exports.
	for _, s := range []string{"13.5 g/dL", "6.2 10^9/L", "140 mmol/l", "0.9 MG/DL", "5 units"} {
		if !unitTokenRe.MatchString(s) {
			t.Errorf("expected unit match in %q", s)
		}
	}
	for _, s := range []string{"united states", "12-16", "community"} {
		if unitTokenRe.MatchString(s) {
			t.Errorf("unexpected unit match in %q", s)
		}
	}
}
