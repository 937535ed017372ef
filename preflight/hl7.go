package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/preflight/tabstat"
)

// analyzeHL7 scores a segment-delimited clinical message: envelope (MSH),
// patient identity (PID), order context (OBR) and result segments (OBX,
// capped credit). Segments are lines; fields are pipe-separated.
func (e *Engine) analyzeHL7(_ context.Context, d Descriptor) (Result, error) {
	data, err := d.ReadAll(tabstat.MaxSampleBytes)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", d.Name, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Result{}, fmt.Errorf("empty message %s", d.Name)
	}

	segments := splitSegments(text)
	var hasMSH, hasPID, hasOBR bool
	obxCount := 0
	for _, seg := range segments {
		switch segmentID(seg) {
		case "MSH":
			hasMSH = true
		case "PID":
			hasPID = true
		case "OBR":
			hasOBR = true
		case "OBX":
			obxCount++
		}
	}

	p := e.policies.HL7
	s := &scorer{}
	s.detail("segments: %d", len(segments))
	s.detail("msh: %v pid: %v obr: %v obx: %d", hasMSH, hasPID, hasOBR, obxCount)

	if hasMSH {
		s.add(p.HeaderPts)
	} else {
		s.say(p.HeaderAdvice)
	}
	if hasPID {
		s.add(p.IdentityPts)
	} else {
		s.say(p.IdentityAdvice)
	}
	if hasOBR {
		s.add(p.OrderPts)
	} else {
		s.say(p.OrderAdvice)
	}
	if obxCount == 0 {
		s.say(p.ResultAdvice)
	} else {
		credit := obxCount * p.ResultPtsEach
		if credit > p.ResultPtsCap {
			credit = p.ResultPtsCap
		}
		s.add(credit)
	}

	return s.result(FamilyHL7, p.Thresholds), nil
}

// splitSegments splits a message on segment terminators. Wire format uses
// carriage returns; files saved from editors use newlines — both accepted.
func splitSegments(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// segmentID returns the three-letter segment identifier, the text before
// the first field separator.
func segmentID(seg string) string {
	if i := strings.IndexByte(seg, '|'); i >= 0 {
		seg = seg[:i]
	}
	seg = strings.TrimSpace(seg)
	if len(seg) > 3 {
		seg = seg[:3]
	}
	return strings.ToUpper(seg)
}
