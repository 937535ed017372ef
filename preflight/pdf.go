package preflight

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// renderScale is the fixed scale factor for the page pixel-mass metric:
// PDF points (1/72 in) rendered at 144 DPI double in both dimensions.
const renderScale = 2.0

// pdfSample is what the PDF collaborator hands back to the scorer: page
// count, extracted text, page pixel mass at renderScale, and whether the
// document embeds image XObjects.
type pdfSample struct {
	Pages      int
	Text       string
	Megapixels float64
	HasImages  bool
}

// analyzePDF parses the file with pdfcpu and scores it against the
// lab-report PDF weight table. A parse failure propagates to the degraded
// combinator; the caller never sees an error-free crash path.
func (e *Engine) analyzePDF(_ context.Context, d Descriptor) (Result, error) {
	data, err := d.ReadAll(e.cfg.MaxFileSize)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", d.Name, err)
	}
	sample, err := parsePDF(data)
	if err != nil {
		return Result{}, fmt.Errorf("parse pdf %s: %w", d.Name, err)
	}

	p := e.policies.LabPDF
	text := strings.TrimSpace(sample.Text)
	chars := utf8.RuneCountInString(text)
	printable := printableRatio(text)

	s := &scorer{}
	s.detail("pages: %d", sample.Pages)
	s.detail("extracted chars: %d", chars)
	s.detail("printable ratio: %.2f", printable)
	s.detail("wordlike ratio: %.2f", wordlikeRatio(text))
	s.detail("page pixel mass: %.2f MP at %.0fx", sample.Megapixels, renderScale)
	s.detail("embedded images: %v", sample.HasImages)

	if chars >= p.TextLayerMinChars {
		s.add(p.TextLayerPts)
	} else {
		s.say(p.TextLayerAdvice)
		if sample.HasImages {
			s.say("Document appears to be image-only; text checks were skipped")
		}
	}
	p.Megapixels.apply(sample.Megapixels, s)
	p.Legibility.apply(printable, s)
	s.add(p.RenderBonus)
	s.say(p.Reminder)

	return s.result(FamilyLabPDF, p.Thresholds), nil
}

// parsePDF reads and validates the document, walks every page's content
// stream for text, sums page areas at renderScale, and detects embedded
// image XObjects.
func parsePDF(data []byte) (*pdfSample, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}

	sample := &pdfSample{
		Pages:     ctx.PageCount,
		HasImages: hasImageStreams(ctx),
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if t := pageText(ctx, pageNr); t != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(t)
		}
	}
	sample.Text = sb.String()

	if dims, err := ctx.PageDims(); err == nil {
		for _, dim := range dims {
			wpx := dim.Width * renderScale
			hpx := dim.Height * renderScale
			sample.Megapixels += wpx * hpx / 1e6
		}
	}
	return sample, nil
}

// pageText extracts the visible text of one page from its content stream.
// Extraction failures on a single page degrade to empty text, not errors:
// a partially extractable document still gets scored.
func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// hasImageStreams checks for image XObjects, first via the optimizer's
// per-page index, then by scanning the xref table.
func hasImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

var pdfLiteralRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream walks content-stream lines for the text-showing
// operators (Tj, TJ, ') and the positioning operators that imply breaks.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return normalizeSpace(sb.String())
}

// decodePDFLiteral resolves the escape sequences of a PDF string literal,
// including octal escapes like \040.
func decodePDFLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

func normalizeSpace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// printableRatio is the fraction of runes that are printable text. Private
// Use Area runes, U+FFFD and bare control characters count against it —
// the signature of extraction from a font without a Unicode mapping.
func printableRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if r >= 0xE000 && r <= 0xF8FF || r == 0xFFFD {
			continue
		}
		if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

// wordlikeRatio is the fraction of whitespace-separated tokens with a
// plausible word length (2-15 runes). Character-by-character extraction
// shows up as a sea of single-rune tokens.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		if n := utf8.RuneCountInString(f); n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
