// Package preflight scores medical-adjacent documents before upload.
//
// A file descriptor is routed to exactly one format-family analyzer which
// decodes the content, computes pixel or tabular statistics, accumulates a
// weighted checklist score, and returns a Result: a score clamped to
// [0,100], deduplicated advisory messages, raw metric details, and an
// accept/borderline/reject verdict against the family's thresholds.
//
// The engine always returns a Result, never an error: decode and parse
// failures degrade to a fixed reduced-confidence score with a diagnostic
// message, because the upload gate downstream needs a score for every
// submitted file. Analyses are independent units of work — the engine
// holds only read-only policy tables and may be shared across goroutines.
//
// Usage:
//
//	eng, err := preflight.New(preflight.Config{})
//	res := eng.Analyze(ctx, preflight.BytesDescriptor("cbc.csv", "text/csv", data))
//	fmt.Println(res.Score, res.Verdict)
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaptinlin/jsonschema"
)

// DegradedScore is the fixed reduced-confidence score a failed decode or
// parse maps to. Low enough that thresholds deny upload confidence, high
// enough to distinguish "could not check" from "checked and bad".
const DegradedScore = 50

// Config configures an Engine.
type Config struct {
	// MaxFileSize caps how many bytes an analysis will read (default 100 MB).
	MaxFileSize int64 `yaml:"max_file_size"`

	// Policies are the per-family weight tables; nil means DefaultPolicies.
	Policies *Policies `yaml:"policies"`

	// Logger for debug messages.
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Policies == nil {
		c.Policies = DefaultPolicies()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine routes files to analyzers and scores them. Safe for concurrent
// use: all state is read-only after New.
type Engine struct {
	cfg        Config
	policies   *Policies
	logger     *slog.Logger
	fhirSchema *jsonschema.Schema
}

// New creates an Engine. It validates the policy tables and compiles the
// bundle schema used by the FHIR analyzer.
func New(cfg Config) (*Engine, error) {
	cfg.defaults()
	if err := cfg.Policies.Validate(); err != nil {
		return nil, err
	}
	schema, err := compileBundleSchema()
	if err != nil {
		return nil, fmt.Errorf("compile bundle schema: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		policies:   cfg.Policies,
		logger:     cfg.Logger,
		fhirSchema: schema,
	}, nil
}

// Policies exposes the engine's read-only policy tables.
func (e *Engine) Policies() *Policies { return e.policies }

// Analyze routes the descriptor to its family analyzer and returns a
// scored Result. It never returns an error: failures inside an analyzer
// are mapped to a degraded Result by the boundary combinator.
func (e *Engine) Analyze(ctx context.Context, d Descriptor) Result {
	start := time.Now()
	family := e.Detect(d)

	if d.Size > e.cfg.MaxFileSize {
		return e.degraded(family, fmt.Errorf("file too large: %d bytes (max %d)", d.Size, e.cfg.MaxFileSize))
	}

	res, err := e.analyze(ctx, family, d)
	if err != nil {
		res = e.degraded(family, err)
	}

	e.logger.Debug("analysis complete",
		"file", d.Name,
		"family", string(family),
		"score", res.Score,
		"verdict", string(res.Verdict),
		"duration", time.Since(start))
	return res
}

func (e *Engine) analyze(ctx context.Context, family Family, d Descriptor) (Result, error) {
	switch family {
	case FamilyScan:
		return e.analyzeImage(ctx, d, e.policies.Scan, FamilyScan)
	case FamilyModality:
		return e.analyzeImage(ctx, d, e.policies.Modality, FamilyModality)
	case FamilyLabImage:
		return e.analyzeImage(ctx, d, e.policies.LabImage, FamilyLabImage)
	case FamilyLabPDF:
		return e.analyzePDF(ctx, d)
	case FamilyLabCSV:
		return e.analyzeCSV(ctx, d)
	case FamilyLabSheet:
		return e.analyzeSheet(ctx, d)
	case FamilyFHIR:
		return e.analyzeFHIR(ctx, d)
	case FamilyHL7:
		return e.analyzeHL7(ctx, d)
	case FamilyDICOM:
		return e.analyzeDICOM(ctx, d)
	default:
		return e.fixedResult(FamilyUnknown, e.policies.Unknown), nil
	}
}

// degraded is the single combinator mapping any analyzer failure into a
// reduced-confidence Result. Making the mapping one visible function keeps
// the error policy testable instead of an implicit catch-all.
func (e *Engine) degraded(family Family, err error) Result {
	s := &scorer{}
	s.add(DegradedScore)
	s.say(fmt.Sprintf("Analysis incomplete: %v", err))
	s.detail("error: %v", err)
	return s.result(family, e.policies.thresholds(family))
}

// fixedResult builds the constant Result for stub and fallback families.
func (e *Engine) fixedResult(family Family, p FixedPolicy) Result {
	s := &scorer{}
	s.add(p.Score)
	s.say(p.Message)
	return s.result(family, p.Thresholds)
}
