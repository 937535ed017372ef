package preflight

import (
	"testing"
)

func TestTextFromContentStream(t *testing.T) {
	// WHAT: Tj, TJ, positioning operators and T* assemble into readable text.
	// WHY: The text layer check and the legibility metric both run on this
	// output.
	stream := "BT\n" +
		"/F1 12 Tf\n" +
		"72 720 Td\n" +
		"(Hemoglobin 13.5 g/dL) Tj\n" +
		"0 -14 Td\n" +
		"[(WBC) ( 6.2)] TJ\n" +
		"T*\n" +
		"(Platelets 250) Tj\n" +
		"ET\n"

	got := textFromContentStream([]byte(stream))
	want := "Hemoglobin 13.5 g/dL WBC 6.2 Platelets 250"
	if got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestDecodePDFLiteral(t *testing.T) {
	// WHAT: Escape sequences, including octal, resolve to their characters.
	// WHY: Lab PDFs routinely escape parentheses and accented characters.
	cases := []struct{ in, want string }{
		{`plain`, "plain"},
		{`a\(b\)c`, "a(b)c"},
		{`tab\there`, "tab\there"},
		{`\101\102\103`, "ABC"},
		{`x\040y`, "x y"},
		{`back\\slash`, `back\slash`},
	}
	for _, c := range cases {
		if got := decodePDFLiteral([]byte(c.in)); got != c.want {
			t.Errorf("decode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeSpace(t *testing.T) {
	// WHAT: Runs of whitespace collapse to single spaces; edges trim.
	// WHY: Content streams emit arbitrary spacing between show operators.
	if got := normalizeSpace("  a\n\n b\tc  "); got != "a b c" {
		t.Errorf("normalizeSpace = %q, want %q", got, "a b c")
	}
}

func TestPrintableRatio(t *testing.T) {
	// WHAT: Clean text scores 1.0; private-use runes drag the ratio down;
	// empty text scores 0.
	// WHY: Extraction from an unmapped font produces private-use garbage and
	// must lose the legibility credit.
	if got := printableRatio("Hemoglobin 13.5 g/dL"); got != 1.0 {
		t.Errorf("clean ratio = %v, want 1.0", got)
	}
	garbled := string([]rune{0xE001, 0xE002, 'a', 'b'})
	if got := printableRatio(garbled); got != 0.5 {
		t.Errorf("garbled ratio = %v, want 0.5", got)
	}
	if got := printableRatio(""); got != 0 {
		t.Errorf("empty ratio = %v, want 0", got)
	}
}

func TestWordlikeRatio(t *testing.T) {
	// WHAT: Only tokens of plausible word length count.
	// WHY: Character-by-character extraction shows up as single-rune tokens.
	// Tokens: "a" (too short), "bb", "ccc", 20-rune token (too long).
	got := wordlikeRatio("a bb ccc supercalifragilistic")
	if got != 0.5 {
		t.Errorf("ratio = %v, want 0.5", got)
	}
	if got := wordlikeRatio(""); got != 0 {
		t.Errorf("empty ratio = %v, want 0", got)
	}
}
