package preflight

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"github.com/hazyhaar/preflight/tabstat"
)

// bundleSchema is the minimal shape a structured clinical JSON document
// must satisfy: a typed resource, optionally carrying an entry list of
// typed resources. Deliberately loose — completeness is scored by the
// checks below, not rejected by the schema.
const bundleSchema = `{
	"type": "object",
	"required": ["resourceType"],
	"properties": {
		"resourceType": {"type": "string", "minLength": 1},
		"entry": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"resource": {
						"type": "object",
						"required": ["resourceType"]
					}
				}
			}
		}
	}
}`

func compileBundleSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	return compiler.Compile([]byte(bundleSchema))
}

// analyzeFHIR scores a structured clinical JSON document: identity
// resource presence, result resource count (capped credit), and the
// fraction of results carrying a unit.
func (e *Engine) analyzeFHIR(_ context.Context, d Descriptor) (Result, error) {
	data, err := d.ReadAll(e.cfg.MaxFileSize)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", d.Name, err)
	}

	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return Result{}, fmt.Errorf("parse json %s: %w", d.Name, err)
	}

	schemaOK := e.fhirSchema.ValidateJSON(data).IsValid()
	resources := collectResources(root)

	hasPatient := false
	observations := 0
	withUnits := 0
	for _, res := range resources {
		switch resourceType(res) {
		case "Patient":
			hasPatient = true
		case "Observation":
			observations++
			if observationHasUnit(res) {
				withUnits++
			}
		}
	}

	p := e.policies.FHIR
	s := &scorer{}
	s.detail("resources: %d", len(resources))
	s.detail("patient resource: %v", hasPatient)
	s.detail("observations: %d", observations)
	s.detail("observations with units: %d", withUnits)
	s.detail("bundle shape valid: %v", schemaOK)

	if schemaOK {
		s.add(p.SchemaPts)
	} else {
		s.say(p.SchemaAdvice)
	}
	if hasPatient {
		s.add(p.PatientPts)
	} else {
		s.say(p.PatientAdvice)
	}
	if observations == 0 {
		s.say(p.ObsAdvice)
	} else {
		credit := observations * p.ObsPtsEach
		if credit > p.ObsPtsCap {
			credit = p.ObsPtsCap
		}
		s.add(credit)

		frac := float64(withUnits) / float64(observations)
		switch {
		case frac >= p.UnitFracHigh:
			s.add(p.UnitHighPts)
		case frac > 0:
			s.add(p.UnitPartialPts)
			s.say(p.UnitAdvice)
		default:
			s.say(p.UnitAdvice)
		}
	}

	return s.result(FamilyFHIR, p.Thresholds), nil
}

// collectResources flattens a document into its resource list: the entries
// of a Bundle, or the root itself for a bare resource. The entry walk is
// capped at the tabular sampling limit to bound cost on huge bundles.
func collectResources(root map[string]any) []map[string]any {
	if resourceType(root) != "Bundle" {
		return []map[string]any{root}
	}
	entries, _ := root["entry"].([]any)
	if len(entries) > tabstat.MaxSampleRows {
		entries = entries[:tabstat.MaxSampleRows]
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if res, ok := entry["resource"].(map[string]any); ok {
			out = append(out, res)
		}
	}
	return out
}

func resourceType(res map[string]any) string {
	t, _ := res["resourceType"].(string)
	return t
}

// observationHasUnit reports whether an Observation carries a unit on its
// value, either as display unit or coded unit.
func observationHasUnit(res map[string]any) bool {
	vq, ok := res["valueQuantity"].(map[string]any)
	if !ok {
		return false
	}
	if unit, _ := vq["unit"].(string); unit != "" {
		return true
	}
	if code, _ := vq["code"].(string); code != "" {
		return true
	}
	return false
}
