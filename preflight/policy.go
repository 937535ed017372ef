package preflight

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier maps a metric value onto one of three point brackets using two
// cutpoints. Crossing below the high cutpoint always attaches the advisory
// message; there is no interpolation between brackets. With LessIsBetter
// set the comparison flips: values at or below High score the high bracket.
type Tier struct {
	High         float64 `yaml:"high"`
	Mid          float64 `yaml:"mid"`
	HighPts      int     `yaml:"high_pts"`
	MidPts       int     `yaml:"mid_pts"`
	LowPts       int     `yaml:"low_pts"`
	LessIsBetter bool    `yaml:"less_is_better,omitempty"`
	Advice       string  `yaml:"advice,omitempty"`
}

// apply scores v against the tier and records the outcome on s.
func (t Tier) apply(v float64, s *scorer) {
	high, mid := v >= t.High, v >= t.Mid
	if t.LessIsBetter {
		high, mid = v <= t.High, v <= t.Mid
	}
	switch {
	case high:
		s.add(t.HighPts)
	case mid:
		s.add(t.MidPts)
		s.say(t.Advice)
	default:
		s.add(t.LowPts)
		s.say(t.Advice)
	}
}

// MaxCheck is a pass/fail check: the metric earns Pts when at or below Max,
// otherwise 0 points plus the advisory.
type MaxCheck struct {
	Max    float64 `yaml:"max"`
	Pts    int     `yaml:"pts"`
	Advice string  `yaml:"advice,omitempty"`
}

func (c MaxCheck) apply(v float64, s *scorer) {
	if v <= c.Max {
		s.add(c.Pts)
		return
	}
	s.say(c.Advice)
}

// Thresholds is the per-family accept/borderline verdict pair.
// Accept must be strictly greater than Borderline.
type Thresholds struct {
	Accept     int `yaml:"accept"`
	Borderline int `yaml:"borderline"`
}

// Verdict classifies a clamped score. Monotonic in score by construction.
func (t Thresholds) Verdict(score int) Verdict {
	switch {
	case score >= t.Accept:
		return VerdictAccept
	case score >= t.Borderline:
		return VerdictBorderline
	default:
		return VerdictReject
	}
}

func (t Thresholds) validate(family Family) error {
	if t.Accept <= t.Borderline {
		return fmt.Errorf("policy %s: accept (%d) must exceed borderline (%d)", family, t.Accept, t.Borderline)
	}
	return nil
}

// ImagePolicy is the weight table for pixel-statistics families.
type ImagePolicy struct {
	Resolution      Tier       `yaml:"resolution"` // megapixels
	Sharpness       Tier       `yaml:"sharpness"`  // Laplacian variance
	Contrast        Tier       `yaml:"contrast"`   // intensity stddev
	UniformityDelta MaxCheck   `yaml:"uniformity_delta"`
	BackgroundNoise MaxCheck   `yaml:"background_noise"`
	BandingPenalty  int        `yaml:"banding_penalty"`
	BandingAdvice   string     `yaml:"banding_advice,omitempty"`
	MotionRatioMax  float64    `yaml:"motion_ratio_max"`
	MotionPenalty   int        `yaml:"motion_penalty"`
	MotionAdvice    string     `yaml:"motion_advice,omitempty"`
	CompletionBonus int        `yaml:"completion_bonus"`
	Thresholds      Thresholds `yaml:"thresholds"`
}

// PDFPolicy is the weight table for the PDF lab-report family.
type PDFPolicy struct {
	TextLayerMinChars int        `yaml:"text_layer_min_chars"`
	TextLayerPts      int        `yaml:"text_layer_pts"`
	TextLayerAdvice   string     `yaml:"text_layer_advice,omitempty"`
	Megapixels        Tier       `yaml:"megapixels"` // page pixel mass at render scale
	Legibility        Tier       `yaml:"legibility"` // raster contrast, or printable-ratio proxy
	RenderBonus       int        `yaml:"render_bonus"`
	Reminder          string     `yaml:"reminder,omitempty"`
	Thresholds        Thresholds `yaml:"thresholds"`
}

// TabularPolicy is the weight table for CSV and spreadsheet families.
type TabularPolicy struct {
	Rows          Tier       `yaml:"rows"`
	Consistency   Tier       `yaml:"consistency"` // CSV only: column-count deviation rate
	MinColumns    int        `yaml:"min_columns"` // sheet only
	ColumnPts     int        `yaml:"column_pts"`  // sheet only
	ColumnAdvice  string     `yaml:"column_advice,omitempty"`
	Empties       Tier       `yaml:"empties"`
	UnitPts       int        `yaml:"unit_pts"`
	UnitAdvice    string     `yaml:"unit_advice,omitempty"`
	ParseBonus    int        `yaml:"parse_bonus"`
	Thresholds    Thresholds `yaml:"thresholds"`
}

// FHIRPolicy is the weight table for structured clinical JSON bundles.
type FHIRPolicy struct {
	PatientPts     int        `yaml:"patient_pts"`
	PatientAdvice  string     `yaml:"patient_advice,omitempty"`
	ObsPtsEach     int        `yaml:"obs_pts_each"`
	ObsPtsCap      int        `yaml:"obs_pts_cap"`
	ObsAdvice      string     `yaml:"obs_advice,omitempty"`
	UnitFracHigh   float64    `yaml:"unit_frac_high"`
	UnitHighPts    int        `yaml:"unit_high_pts"`
	UnitPartialPts int        `yaml:"unit_partial_pts"`
	UnitAdvice     string     `yaml:"unit_advice,omitempty"`
	SchemaPts      int        `yaml:"schema_pts"`
	SchemaAdvice   string     `yaml:"schema_advice,omitempty"`
	Thresholds     Thresholds `yaml:"thresholds"`
}

// HL7Policy is the weight table for segment-delimited clinical text.
type HL7Policy struct {
	HeaderPts      int        `yaml:"header_pts"`
	HeaderAdvice   string     `yaml:"header_advice,omitempty"`
	IdentityPts    int        `yaml:"identity_pts"`
	IdentityAdvice string     `yaml:"identity_advice,omitempty"`
	OrderPts       int        `yaml:"order_pts"`
	OrderAdvice    string     `yaml:"order_advice,omitempty"`
	ResultPtsEach  int        `yaml:"result_pts_each"`
	ResultPtsCap   int        `yaml:"result_pts_cap"`
	ResultAdvice   string     `yaml:"result_advice,omitempty"`
	Thresholds     Thresholds `yaml:"thresholds"`
}

// FixedPolicy covers families that return a constant score: the DICOM stub
// and the unrecognized fallback.
type FixedPolicy struct {
	Score      int        `yaml:"score"`
	Message    string     `yaml:"message,omitempty"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// Policies holds every family's weight table and threshold pair. Built once
// at process start and passed read-only into each analysis; never mutated
// at runtime. Point values are not required to sum to 100 — bonuses may
// push a raw sum past 100 and penalties below 0; the final clamp absorbs
// both ends.
type Policies struct {
	Scan     ImagePolicy   `yaml:"scan"`
	Modality ImagePolicy   `yaml:"modality"`
	LabImage ImagePolicy   `yaml:"lab_image"`
	LabPDF   PDFPolicy     `yaml:"lab_pdf"`
	LabCSV   TabularPolicy `yaml:"lab_csv"`
	LabSheet TabularPolicy `yaml:"lab_sheet"`
	FHIR     FHIRPolicy    `yaml:"fhir"`
	HL7      HL7Policy     `yaml:"hl7"`
	DICOM    FixedPolicy   `yaml:"dicom"`
	Unknown  FixedPolicy   `yaml:"unknown"`
}

// Validate checks every family's threshold pair.
func (p *Policies) Validate() error {
	for _, c := range []struct {
		family Family
		th     Thresholds
	}{
		{FamilyScan, p.Scan.Thresholds},
		{FamilyModality, p.Modality.Thresholds},
		{FamilyLabImage, p.LabImage.Thresholds},
		{FamilyLabPDF, p.LabPDF.Thresholds},
		{FamilyLabCSV, p.LabCSV.Thresholds},
		{FamilyLabSheet, p.LabSheet.Thresholds},
		{FamilyFHIR, p.FHIR.Thresholds},
		{FamilyHL7, p.HL7.Thresholds},
		{FamilyDICOM, p.DICOM.Thresholds},
		{FamilyUnknown, p.Unknown.Thresholds},
	} {
		if err := c.th.validate(c.family); err != nil {
			return err
		}
	}
	return nil
}

// thresholds returns the pair for a family, defaulting to Unknown's.
func (p *Policies) thresholds(f Family) Thresholds {
	switch f {
	case FamilyScan:
		return p.Scan.Thresholds
	case FamilyModality:
		return p.Modality.Thresholds
	case FamilyLabImage:
		return p.LabImage.Thresholds
	case FamilyLabPDF:
		return p.LabPDF.Thresholds
	case FamilyLabCSV:
		return p.LabCSV.Thresholds
	case FamilyLabSheet:
		return p.LabSheet.Thresholds
	case FamilyFHIR:
		return p.FHIR.Thresholds
	case FamilyHL7:
		return p.HL7.Thresholds
	case FamilyDICOM:
		return p.DICOM.Thresholds
	default:
		return p.Unknown.Thresholds
	}
}

// DefaultPolicies returns the compiled-in weight tables.
func DefaultPolicies() *Policies {
	scan := ImagePolicy{
		Resolution: Tier{High: 2.0, Mid: 0.8, HighPts: 25, MidPts: 15, LowPts: 5,
			Advice: "Resolution is below the recommended 2 megapixels; rescan at a higher setting if possible"},
		Sharpness: Tier{High: 120, Mid: 60, HighPts: 25, MidPts: 15, LowPts: 5,
			Advice: "Image looks soft; hold the device steady and refocus before capturing"},
		Contrast: Tier{High: 35, Mid: 18, HighPts: 20, MidPts: 12, LowPts: 4,
			Advice: "Low contrast detected; check exposure or scanner brightness settings"},
		UniformityDelta: MaxCheck{Max: 25, Pts: 10,
			Advice: "Uneven lighting between center and edges; avoid shadows and glare"},
		BackgroundNoise: MaxCheck{Max: 12, Pts: 10,
			Advice: "Noisy background region; place the document on a plain dark surface"},
		BandingPenalty: -15,
		BandingAdvice:  "Posterization banding detected; export at full bit depth instead of a compressed screenshot",
		MotionRatioMax: 3.0,
		MotionPenalty:  -10,
		MotionAdvice:   "Directional blur suggests motion during capture; retake the image",
		CompletionBonus: 10,
		Thresholds:      Thresholds{Accept: 85, Borderline: 60},
	}

	modality := scan
	modality.Resolution.High = 0.25 // native CT/MR/US matrices are small (512×512)
	modality.Resolution.Mid = 0.06
	modality.Resolution.Advice = "Export resolution is below the native matrix; re-export without downscaling"
	modality.Thresholds = Thresholds{Accept: 85, Borderline: 60}

	labImage := scan
	labImage.Sharpness.High = 150 // printed text needs more edge response than film
	labImage.Sharpness.Mid = 80
	labImage.Thresholds = Thresholds{Accept: 80, Borderline: 55}

	return &Policies{
		Scan:     scan,
		Modality: modality,
		LabImage: labImage,
		LabPDF: PDFPolicy{
			TextLayerMinChars: 100,
			TextLayerPts:      35,
			TextLayerAdvice:   "No extractable text layer found; the PDF may be a scan and need OCR",
			Megapixels: Tier{High: 1.5, Mid: 0.5, HighPts: 25, MidPts: 15, LowPts: 5,
				Advice: "Page renders at a low pixel mass; text may be illegible on review"},
			Legibility: Tier{High: 0.92, Mid: 0.75, HighPts: 20, MidPts: 12, LowPts: 4,
				Advice: "Extracted text is partially garbled; verify the document opens cleanly"},
			RenderBonus: 20,
			Reminder:    "Confirm patient name, collection date and reference ranges are visible",
			Thresholds:  Thresholds{Accept: 80, Borderline: 55},
		},
		LabCSV: TabularPolicy{
			Rows: Tier{High: 5, Mid: 2, HighPts: 25, MidPts: 15, LowPts: 5,
				Advice: "Very few data rows; confirm the export completed"},
			Consistency: Tier{High: 0.1, Mid: 0.3, HighPts: 30, MidPts: 18, LowPts: 6, LessIsBetter: true,
				Advice: "Rows have inconsistent column counts; the table structure looks damaged"},
			Empties: Tier{High: 0.1, Mid: 0.3, HighPts: 25, MidPts: 15, LowPts: 5, LessIsBetter: true,
				Advice: "Many empty cells; some results may be missing from the export"},
			UnitPts:    20,
			UnitAdvice: "No measurement units recognized; results without units cannot be interpreted",
			Thresholds: Thresholds{Accept: 75, Borderline: 55},
		},
		LabSheet: TabularPolicy{
			Rows: Tier{High: 5, Mid: 2, HighPts: 25, MidPts: 15, LowPts: 5,
				Advice: "Very few data rows; confirm the export completed"},
			MinColumns:   2,
			ColumnPts:    20,
			ColumnAdvice: "Only one column detected; the sheet may not be a results table",
			Empties: Tier{High: 0.1, Mid: 0.3, HighPts: 25, MidPts: 15, LowPts: 5, LessIsBetter: true,
				Advice: "Many empty cells; some results may be missing from the export"},
			UnitPts:    20,
			UnitAdvice: "No measurement units recognized; results without units cannot be interpreted",
			ParseBonus: 10,
			Thresholds: Thresholds{Accept: 75, Borderline: 55},
		},
		FHIR: FHIRPolicy{
			PatientPts:     30,
			PatientAdvice:  "No Patient resource found; the bundle cannot be linked to a person",
			ObsPtsEach:     10,
			ObsPtsCap:      40,
			ObsAdvice:      "No Observation resources found; the bundle carries no results",
			UnitFracHigh:   0.8,
			UnitHighPts:    20,
			UnitPartialPts: 10,
			UnitAdvice:     "Observations missing units; values without units cannot be interpreted",
			SchemaPts:      10,
			SchemaAdvice:   "Document does not match the expected bundle shape",
			Thresholds:     Thresholds{Accept: 80, Borderline: 60},
		},
		HL7: HL7Policy{
			HeaderPts:      25,
			HeaderAdvice:   "Missing MSH header segment; the message envelope is incomplete",
			IdentityPts:    25,
			IdentityAdvice: "Missing PID segment; the message cannot be linked to a patient",
			OrderPts:       20,
			OrderAdvice:    "Missing OBR segment; no order context for the results",
			ResultPtsEach:  10,
			ResultPtsCap:   30,
			ResultAdvice:   "No OBX result segments found",
			Thresholds:     Thresholds{Accept: 80, Borderline: 60},
		},
		DICOM: FixedPolicy{
			Score:      55,
			Message:    "Binary imaging format detected; full validation requires a server-side imaging toolkit",
			Thresholds: Thresholds{Accept: 80, Borderline: 50},
		},
		Unknown: FixedPolicy{
			Score:      50,
			Message:    "Unrecognized file type; only generic checks were applied",
			Thresholds: Thresholds{Accept: 80, Borderline: 50},
		},
	}
}

// LoadPolicies reads a YAML policy file layered over the defaults, so a
// file only needs to state the values it overrides.
func LoadPolicies(path string) (*Policies, error) {
	p := DefaultPolicies()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
