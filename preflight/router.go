package preflight

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// The router classifies a descriptor into exactly one family by walking an
// ordered predicate list. The order is load-bearing: specific families
// (DICOM, FHIR, HL7, tabular) are tested before the generic image and
// document fallbacks, so a CSV lab export can never be swallowed by a
// generic predicate. Reordering changes routing behaviour.
var routes = []struct {
	family Family
	match  func(name, ext, mime string) bool
}{
	{FamilyDICOM, func(name, ext, mime string) bool {
		return ext == ".dcm" || ext == ".dicom" || mime == "application/dicom"
	}},
	{FamilyFHIR, func(name, ext, mime string) bool {
		return ext == ".json" || strings.HasPrefix(mime, "application/fhir+json") ||
			strings.HasPrefix(mime, "application/json")
	}},
	{FamilyHL7, func(name, ext, mime string) bool {
		return ext == ".hl7" || strings.Contains(mime, "hl7") ||
			(ext == ".txt" && hasToken(name, "hl7"))
	}},
	{FamilyLabCSV, func(name, ext, mime string) bool {
		return ext == ".csv" || ext == ".tsv" || strings.HasPrefix(mime, "text/csv") ||
			strings.HasPrefix(mime, "text/tab-separated-values")
	}},
	{FamilyLabSheet, func(name, ext, mime string) bool {
		return ext == ".xlsx" || ext == ".xls" ||
			strings.Contains(mime, "spreadsheetml") || strings.Contains(mime, "ms-excel")
	}},
	{FamilyLabPDF, func(name, ext, mime string) bool {
		return ext == ".pdf" || strings.HasPrefix(mime, "application/pdf")
	}},
	// Imaging-modality keywords must precede the generic image fallback.
	{FamilyModality, func(name, ext, mime string) bool {
		return isImage(ext, mime) && hasAnyToken(name, modalityTokens)
	}},
	{FamilyLabImage, func(name, ext, mime string) bool {
		return isImage(ext, mime) && hasAnyToken(name, labTokens)
	}},
	{FamilyScan, func(name, ext, mime string) bool {
		return isImage(ext, mime)
	}},
}

// modalityTokens are modality abbreviations and anatomical hints seen in
// export file names (e.g. "CT_HEAD_2024.png", "us-abdomen.jpg").
var modalityTokens = []string{
	"ct", "mr", "mri", "us", "ultrasound", "echo", "doppler", "pet", "angio", "dicom",
}

// labTokens mark photographed or scanned lab reports.
var labTokens = []string{
	"lab", "labs", "blood", "cbc", "panel", "result", "results", "analyse", "bilan",
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".gif": true,
}

func isImage(ext, mime string) bool {
	return imageExts[ext] || strings.HasPrefix(mime, "image/")
}

// hasToken reports whether name, split on non-alphanumeric runs, contains
// the token. Token matching (not substring) keeps "ct" from matching
// "doctor_note.png".
func hasToken(name, token string) bool {
	for _, t := range tokenize(name) {
		if t == token {
			return true
		}
	}
	return false
}

func hasAnyToken(name string, tokens []string) bool {
	fields := tokenize(name)
	for _, t := range fields {
		for _, want := range tokens {
			if t == want {
				return true
			}
		}
	}
	return false
}

func tokenize(name string) []string {
	lower := strings.ToLower(name)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// Detect routes a descriptor to exactly one family. It is a total,
// deterministic function of the descriptor: the same input always yields
// the same family, and unmatched inputs yield FamilyUnknown rather than an
// error. When the declared content type is empty the leading bytes are
// sniffed so extension-less uploads still route.
func (e *Engine) Detect(d Descriptor) Family {
	name := d.Name
	ext := strings.ToLower(filepath.Ext(name))
	mime := strings.ToLower(strings.TrimSpace(d.ContentType))

	if mime == "" || mime == "application/octet-stream" {
		if head, err := d.ReadHead(3072); err == nil && len(head) > 0 {
			mime = mimetype.Detect(head).String()
		}
	}

	for _, r := range routes {
		if r.match(name, ext, mime) {
			return r.family
		}
	}
	return FamilyUnknown
}
