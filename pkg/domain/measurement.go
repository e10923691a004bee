package domain

import (
	"fmt"
	"strconv"
	"strings"

	"inspectcore/pkg/validate"
)

// Field names a measurement reading. The names double as form keys and as
// the Field of validation errors.
type Field string

// Measurement reading names.
const (
	FieldLoopImpedance         Field = "loop_impedance"
	FieldInsulationLN          Field = "insulation_ln"
	FieldInsulationLPE         Field = "insulation_lpe"
	FieldInsulationNPE         Field = "insulation_npe"
	FieldPEContinuity          Field = "pe_continuity"
	FieldRCDType               Field = "rcd_type"
	FieldRCDRatedCurrent       Field = "rcd_rated_current"
	FieldRCDTripTime           Field = "rcd_trip_time"
	FieldEarthingResistance    Field = "earthing_resistance"
	FieldPolarity              Field = "polarity"
	FieldPhaseSequence         Field = "phase_sequence"
	FieldBreaker               Field = "breaker"
	FieldLPSEarthingResistance Field = "lps_earthing_resistance"
	FieldLPSContinuity         Field = "lps_continuity"
	FieldLPSVisual             Field = "lps_visual"
)

// Pass limits for sub-results.
const (
	MaxLoopImpedanceOhm         = 2.87 // B16 breaker at 230 V, 0.4 s disconnection
	MinInsulationMOhm           = 1.0
	MaxPEContinuityOhm          = 1.0
	MaxRCDTripTimeMS            = 300.0
	MaxEarthingResistanceOhm    = 100.0
	MaxLPSEarthingResistanceOhm = 10.0
	MaxLPSContinuityOhm         = 1.0
)

// RCDRatedCurrents lists the rated residual currents in mA that pass.
var RCDRatedCurrents = []float64{10, 30, 100, 300, 500}

type numericField struct {
	name     Field
	unit     string
	min, max float64
	pass     func(float64) bool
	ref      func(*Measurement) **float64
}

type boolField struct {
	name Field
	ref  func(*Measurement) **bool
}

var numericFields = []numericField{
	{FieldLoopImpedance, "Ω", 0, 10000, func(v float64) bool { return v <= MaxLoopImpedanceOhm }, func(m *Measurement) **float64 { return &m.LoopImpedanceOhm }},
	{FieldInsulationLN, "MΩ", 0, 1000, func(v float64) bool { return v >= MinInsulationMOhm }, func(m *Measurement) **float64 { return &m.InsulationLNMOhm }},
	{FieldInsulationLPE, "MΩ", 0, 1000, func(v float64) bool { return v >= MinInsulationMOhm }, func(m *Measurement) **float64 { return &m.InsulationLPEMOhm }},
	{FieldInsulationNPE, "MΩ", 0, 1000, func(v float64) bool { return v >= MinInsulationMOhm }, func(m *Measurement) **float64 { return &m.InsulationNPEMOhm }},
	{FieldPEContinuity, "Ω", 0, 10000, func(v float64) bool { return v <= MaxPEContinuityOhm }, func(m *Measurement) **float64 { return &m.PEContinuityOhm }},
	{FieldRCDRatedCurrent, "mA", 0, 1000, func(v float64) bool { return validate.Enum(v, RCDRatedCurrents) }, func(m *Measurement) **float64 { return &m.RCDRatedCurrentMA }},
	{FieldRCDTripTime, "ms", 0, 1000, func(v float64) bool { return v > 0 && v <= MaxRCDTripTimeMS }, func(m *Measurement) **float64 { return &m.RCDTripTimeMS }},
	{FieldEarthingResistance, "Ω", 0, 10000, func(v float64) bool { return v <= MaxEarthingResistanceOhm }, func(m *Measurement) **float64 { return &m.EarthingResistanceOhm }},
	{FieldLPSEarthingResistance, "Ω", 0, 10000, func(v float64) bool { return v <= MaxLPSEarthingResistanceOhm }, func(m *Measurement) **float64 { return &m.LPSEarthingResistanceOhm }},
	{FieldLPSContinuity, "Ω", 0, 10000, func(v float64) bool { return v <= MaxLPSContinuityOhm }, func(m *Measurement) **float64 { return &m.LPSContinuityOhm }},
}

var boolFields = []boolField{
	{FieldPolarity, func(m *Measurement) **bool { return &m.PolarityOK }},
	{FieldPhaseSequence, func(m *Measurement) **bool { return &m.PhaseSequenceOK }},
	{FieldBreaker, func(m *Measurement) **bool { return &m.BreakerOK }},
	{FieldLPSVisual, func(m *Measurement) **bool { return &m.LPSVisualOK }},
}

var insulation = []Field{FieldInsulationLN, FieldInsulationLPE, FieldInsulationNPE}

var requiredFields = map[PointType][]Field{
	PointSocket1P: append([]Field{FieldLoopImpedance, FieldPEContinuity, FieldPolarity}, insulation...),
	PointSocket3P: append([]Field{FieldLoopImpedance, FieldPEContinuity, FieldPhaseSequence}, insulation...),
	PointLighting: append([]Field{FieldLoopImpedance, FieldBreaker}, insulation...),
	PointRCD:      {FieldRCDType, FieldRCDRatedCurrent, FieldRCDTripTime},
	PointEarthing: {FieldEarthingResistance},
	PointLPS:      {FieldLPSEarthingResistance, FieldLPSContinuity},
	PointOther:    nil,
}

// RequiredFields returns the readings a measurement of the given point type
// must carry.
func RequiredFields(t PointType) []Field {
	out := make([]Field, len(requiredFields[t]))
	copy(out, requiredFields[t])
	return out
}

// SubResult is the evaluated outcome of one reading.
type SubResult struct {
	Field  Field    `json:"field"`
	Unit   string   `json:"unit,omitempty"`
	Value  *float64 `json:"value,omitempty"`
	Text   string   `json:"text,omitempty"`
	Passed bool     `json:"passed"`
}

// Results evaluates every recorded reading in a fixed field order.
func (m Measurement) Results() []SubResult {
	var out []SubResult
	if m.RCDType != nil {
		out = append(out, SubResult{Field: FieldRCDType, Text: string(*m.RCDType), Passed: validate.Enum(*m.RCDType, RCDTypes)})
	}
	for _, f := range numericFields {
		v := *f.ref(&m)
		if v == nil {
			continue
		}
		val := *v
		out = append(out, SubResult{Field: f.name, Unit: f.unit, Value: &val, Passed: f.pass(val)})
	}
	for _, f := range boolFields {
		v := *f.ref(&m)
		if v == nil {
			continue
		}
		out = append(out, SubResult{Field: f.name, Text: strconv.FormatBool(*v), Passed: *v})
	}
	return out
}

// Has reports whether the reading named by field was recorded.
func (m Measurement) Has(field Field) bool {
	if field == FieldRCDType {
		return m.RCDType != nil
	}
	for _, f := range numericFields {
		if f.name == field {
			return *f.ref(&m) != nil
		}
	}
	for _, f := range boolFields {
		if f.name == field {
			return *f.ref(&m) != nil
		}
	}
	return false
}

// Passed reports whether every reading required for t is present and passes.
// Recorded readings outside that set are reported but do not decide the
// outcome. Types without required readings pass when at least one reading is
// recorded and all recorded readings pass.
func (m Measurement) Passed(t PointType) bool {
	results := m.Results()
	if len(results) == 0 {
		return false
	}
	required := requiredFields[t]
	if len(required) == 0 {
		for _, r := range results {
			if !r.Passed {
				return false
			}
		}
		return true
	}
	passed := make(map[Field]bool, len(results))
	for _, r := range results {
		passed[r.Field] = r.Passed
	}
	for _, f := range required {
		if ok, recorded := passed[f]; !recorded || !ok {
			return false
		}
	}
	return true
}

// Validate checks the reading ranges and that the readings required by the
// point type are present.
func (m Measurement) Validate(t PointType) error {
	if !validate.Required(m.PointID) {
		return NewValidationError("point_id", "point is required")
	}
	if !validate.Enum(t, PointTypes) {
		return NewValidationError("type", fmt.Sprintf("unknown point type %q", t))
	}
	if m.RCDType != nil && !validate.Enum(*m.RCDType, RCDTypes) {
		return NewValidationError(string(FieldRCDType), fmt.Sprintf("unknown RCD type %q", *m.RCDType))
	}
	for _, f := range numericFields {
		v := *f.ref(&m)
		if v != nil && !validate.Range(*v, f.min, f.max) {
			return NewValidationError(string(f.name), rangeMessage(f))
		}
	}
	for _, f := range requiredFields[t] {
		if !m.Has(f) {
			return NewValidationError(string(f), fmt.Sprintf("required for %s points", t))
		}
	}
	if len(m.Results()) == 0 {
		return NewValidationError("measurement", "at least one reading is required")
	}
	return nil
}

func rangeMessage(f numericField) string {
	return fmt.Sprintf("must be a number between %g and %g %s", f.min, f.max, f.unit)
}

// ParseMeasurement builds a measurement from raw form values keyed by field
// name. Blank values leave the reading unrecorded. The result is validated
// against the point type.
func ParseMeasurement(pointID string, t PointType, raw map[Field]any, notes string) (Measurement, error) {
	m := Measurement{PointID: pointID, Notes: strings.TrimSpace(notes)}
	for key := range raw {
		if !knownField(key) {
			return Measurement{}, NewValidationError(string(key), "unknown measurement field")
		}
	}
	if v, ok := raw[FieldRCDType]; ok && validate.Required(v) {
		if !validate.Enum(v, RCDTypes) {
			return Measurement{}, NewValidationError(string(FieldRCDType), "must be one of AC, A, F, B")
		}
		rt := RCDType(fmt.Sprint(v))
		m.RCDType = &rt
	}
	for _, f := range numericFields {
		v, ok := raw[f.name]
		if !ok || !validate.Required(v) {
			continue
		}
		if !validate.Range(v, f.min, f.max) {
			return Measurement{}, NewValidationError(string(f.name), rangeMessage(f))
		}
		n, _ := validate.ParseNumber(v)
		*f.ref(&m) = &n
	}
	for _, f := range boolFields {
		v, ok := raw[f.name]
		if !ok || !validate.Required(v) {
			continue
		}
		b, ok := parseBool(v)
		if !ok {
			return Measurement{}, NewValidationError(string(f.name), "must be true or false")
		}
		*f.ref(&m) = &b
	}
	if err := m.Validate(t); err != nil {
		return Measurement{}, err
	}
	return m, nil
}

func knownField(name Field) bool {
	if name == FieldRCDType {
		return true
	}
	for _, f := range numericFields {
		if f.name == name {
			return true
		}
	}
	for _, f := range boolFields {
		if f.name == name {
			return true
		}
	}
	return false
}

func parseBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	return false, false
}

// DerivePointStatus computes a point's status from its measurement.
func DerivePointStatus(t PointType, m *Measurement) PointStatus {
	if m == nil {
		return PointUnmeasured
	}
	if m.Passed(t) {
		return PointOK
	}
	return PointNotOK
}
