package preflight

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTierBrackets(t *testing.T) {
	// WHAT: Values land in the high, mid or low bracket with no interpolation,
	// and anything below the high cutpoint carries the advisory.
	// WHY: The bracket boundaries decide whether a user sees advice at all.
	tier := Tier{High: 2.0, Mid: 0.8, HighPts: 25, MidPts: 15, LowPts: 5, Advice: "rescan"}

	cases := []struct {
		v        float64
		wantPts  int
		wantMsgs int
	}{
		{3.0, 25, 0},
		{2.0, 25, 0}, // boundary is inclusive
		{1.0, 15, 1},
		{0.8, 15, 1},
		{0.1, 5, 1},
	}
	for _, c := range cases {
		s := &scorer{}
		tier.apply(c.v, s)
		if s.score != c.wantPts {
			t.Errorf("apply(%.1f) pts = %d, want %d", c.v, s.score, c.wantPts)
		}
		if len(s.messages) != c.wantMsgs {
			t.Errorf("apply(%.1f) messages = %v, want %d", c.v, s.messages, c.wantMsgs)
		}
	}
}

func TestTierLessIsBetter(t *testing.T) {
	// WHAT: With LessIsBetter the comparison flips: small values score high.
	// WHY: Inconsistency and empty-cell rates are defect rates, not merits.
	tier := Tier{High: 0.1, Mid: 0.3, HighPts: 30, MidPts: 18, LowPts: 6, LessIsBetter: true, Advice: "damaged"}

	for _, c := range []struct {
		v       float64
		wantPts int
	}{
		{0.0, 30}, {0.1, 30}, {0.2, 18}, {0.3, 18}, {0.5, 6},
	} {
		s := &scorer{}
		tier.apply(c.v, s)
		if s.score != c.wantPts {
			t.Errorf("apply(%.2f) pts = %d, want %d", c.v, s.score, c.wantPts)
		}
	}
}

func TestMaxCheck(t *testing.T) {
	// WHAT: Pass/fail against a maximum; failing attaches the advisory.
	// WHY: Lighting and noise checks award nothing partial.
	check := MaxCheck{Max: 25, Pts: 10, Advice: "uneven lighting"}

	s := &scorer{}
	check.apply(25, s)
	if s.score != 10 || len(s.messages) != 0 {
		t.Errorf("pass: score = %d messages = %v", s.score, s.messages)
	}

	s = &scorer{}
	check.apply(25.1, s)
	if s.score != 0 || len(s.messages) != 1 {
		t.Errorf("fail: score = %d messages = %v", s.score, s.messages)
	}
}

func TestVerdictMonotonic(t *testing.T) {
	// WHAT: The verdict never improves as the score decreases.
	// WHY: A lower-quality file must never get a better verdict.
	th := Thresholds{Accept: 85, Borderline: 60}
	rank := map[Verdict]int{VerdictReject: 0, VerdictBorderline: 1, VerdictAccept: 2}

	prev := -1
	for score := 0; score <= 100; score++ {
		r := rank[th.Verdict(score)]
		if r < prev {
			t.Fatalf("verdict rank dropped at score %d", score)
		}
		prev = r
	}

	if v := th.Verdict(85); v != VerdictAccept {
		t.Errorf("Verdict(85) = %s, want accept", v)
	}
	if v := th.Verdict(84); v != VerdictBorderline {
		t.Errorf("Verdict(84) = %s, want borderline", v)
	}
	if v := th.Verdict(59); v != VerdictReject {
		t.Errorf("Verdict(59) = %s, want reject", v)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	// WHAT: Accept must strictly exceed borderline.
	// WHY: An inverted pair would make the borderline band unreachable.
	p := DefaultPolicies()
	p.LabCSV.Thresholds = Thresholds{Accept: 55, Borderline: 55}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error for accept == borderline")
	}
}

func TestLoadPolicies_LayeredOverDefaults(t *testing.T) {
	// WHAT: A policy file only needs the values it overrides.
	// WHY: Operators tune one threshold without restating every table.
	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  thresholds:\n    accept: 90\n    borderline: 70\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadPolicies(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Scan.Thresholds.Accept != 90 || p.Scan.Thresholds.Borderline != 70 {
		t.Errorf("scan thresholds = %+v, want 90/70", p.Scan.Thresholds)
	}
	// Untouched values keep their defaults.
	if p.Scan.Resolution.High != 2.0 {
		t.Errorf("scan resolution high = %v, want default 2.0", p.Scan.Resolution.High)
	}
	if p.HL7.HeaderPts != 25 {
		t.Errorf("hl7 header pts = %d, want default 25", p.HL7.HeaderPts)
	}
}

func TestLoadPolicies_RejectsInvalidFile(t *testing.T) {
	// WHAT: A file producing inverted thresholds fails to load.
	// WHY: Bad operator input must fail at startup, not at verdict time.
	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte("fhir:\n  thresholds:\n    accept: 50\n    borderline: 60\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicies(path); err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
}
