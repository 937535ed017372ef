package preflight

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Family identifies the document category an analyzer handles. The family
// selects the weight table, the check set and the verdict thresholds.
type Family string

const (
	FamilyScan     Family = "scan"      // generic scan / X-ray image
	FamilyModality Family = "modality"  // CT/MR/US export image
	FamilyLabImage Family = "lab_image" // photographed/scanned lab report
	FamilyLabPDF   Family = "lab_pdf"   // PDF lab report
	FamilyLabCSV   Family = "lab_csv"   // CSV lab export
	FamilyLabSheet Family = "lab_sheet" // spreadsheet lab export (xlsx)
	FamilyFHIR     Family = "fhir"      // structured clinical JSON bundle
	FamilyHL7      Family = "hl7"       // segment-delimited clinical text
	FamilyDICOM    Family = "dicom"     // opaque binary imaging format (stub)
	FamilyUnknown  Family = "unknown"   // no predicate matched
)

// Verdict classifies a score against a family's threshold pair.
type Verdict string

const (
	VerdictAccept     Verdict = "accept"
	VerdictBorderline Verdict = "borderline"
	VerdictReject     Verdict = "reject"
)

// Descriptor describes one file submitted for analysis: its name, declared
// content type, byte size, and a content accessor. The descriptor is owned
// by the caller and lives for exactly one Analyze call.
type Descriptor struct {
	Name        string
	ContentType string
	Size        int64

	open func() (io.ReadCloser, error)
}

// NewDescriptor builds a descriptor around an arbitrary content accessor.
// open may be invoked more than once per analysis (content sniffing reads
// the head before the analyzer reads the body), so it must be re-openable.
func NewDescriptor(name, contentType string, size int64, open func() (io.ReadCloser, error)) Descriptor {
	return Descriptor{Name: name, ContentType: contentType, Size: size, open: open}
}

// BytesDescriptor builds a descriptor over an in-memory byte slice.
func BytesDescriptor(name, contentType string, data []byte) Descriptor {
	return Descriptor{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileDescriptor builds a descriptor for a file on disk. The content type
// is left empty; the router falls back to content sniffing.
func FileDescriptor(path string) (Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Descriptor{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// ReadAll reads the full content, capped at max bytes (0 means no cap).
func (d Descriptor) ReadAll(max int64) ([]byte, error) {
	if d.open == nil {
		return nil, fmt.Errorf("descriptor %q has no content accessor", d.Name)
	}
	rc, err := d.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var r io.Reader = rc
	if max > 0 {
		r = io.LimitReader(rc, max)
	}
	return io.ReadAll(r)
}

// ReadHead reads at most n leading bytes, for content sniffing.
func (d Descriptor) ReadHead(n int) ([]byte, error) {
	return d.ReadAll(int64(n))
}

// Result is the outcome of analyzing one file. Score is clamped to
// [0,100]; Messages are trimmed, deduplicated advisories in
// first-occurrence order; Details are raw metric strings rendered verbatim
// by the presentation layer. A Result is immutable once returned.
type Result struct {
	Family   Family   `json:"family"`
	Score    int      `json:"score"`
	Verdict  Verdict  `json:"verdict"`
	Messages []string `json:"messages"`
	Details  []string `json:"details"`
}
