package analyzer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raysh454/securescan/internal/model"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed analysis_schema.json
var schemaFS embed.FS

var (
	// ErrUnparseablePayload marks a provider response that is not valid JSON.
	ErrUnparseablePayload = errors.New("analyzer: unparseable provider payload")

	// ErrMissingRiskScore marks a payload without a usable risk_score.
	// A scan with no score is rejected outright, never silently zeroed.
	ErrMissingRiskScore = errors.New("analyzer: provider payload missing risk_score")
)

// ProcessingError wraps a provider/integration failure with the stage it
// happened in. Callers match the underlying sentinel with errors.Is.
type ProcessingError struct {
	Stage string // "parse", "validate", "request"
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("analyzer: %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

var payloadSchema = mustLoadSchema()

func mustLoadSchema() *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile("analysis_schema.json")
	if err != nil {
		panic("analyzer: embedded schema missing: " + err.Error())
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic("analyzer: embedded schema invalid: " + err.Error())
	}
	return schema
}

// ParsePayload turns a raw provider response into a normalized
// AnalysisResult. The payload is untrusted: it is validated against the
// embedded JSON Schema first, so a result is either fully populated or the
// caller gets a typed *ProcessingError — never a struct with undefined
// fields defaulted to zero. Missing optional collections (checks,
// recommendations, breakdown) become empty, not faults.
func ParsePayload(raw []byte) (*model.AnalysisResult, error) {
	if len(raw) == 0 {
		return nil, &ProcessingError{Stage: "parse", Err: ErrUnparseablePayload}
	}

	result, err := payloadSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// gojsonschema reports malformed JSON as a load error.
		return nil, &ProcessingError{Stage: "parse", Err: fmt.Errorf("%w: %v", ErrUnparseablePayload, err)}
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			// Absent or non-integer risk_score both count as missing.
			if desc.Field() == "risk_score" || (desc.Field() == "(root)" && desc.Type() == "required") {
				return nil, &ProcessingError{Stage: "validate", Err: ErrMissingRiskScore}
			}
		}
		return nil, &ProcessingError{Stage: "validate", Err: fmt.Errorf("schema violation: %v", result.Errors())}
	}

	var out model.AnalysisResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ProcessingError{Stage: "parse", Err: fmt.Errorf("%w: %v", ErrUnparseablePayload, err)}
	}

	normalize(&out)
	return &out, nil
}

// normalize guarantees the optional collections are non-nil so downstream
// code and the persisted payload never see JSON null.
func normalize(res *model.AnalysisResult) {
	if res.Breakdown == nil {
		res.Breakdown = map[string]float64{}
	}
	if res.Checks == nil {
		res.Checks = map[string]string{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
}
