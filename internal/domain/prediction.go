// Package domain contains pure, dependency-free domain models and types
// for the consensus engine.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates between the two representations a predicted
// value may take on the wire: free text or a numeric quantity.
type ValueKind int

const (
	// ValueText indicates the prediction is an arbitrary string.
	ValueText ValueKind = iota
	// ValueNumeric indicates the prediction is a float64 quantity.
	ValueNumeric
)

// Value is the predicted value of a single contributor. Contributors may
// answer with either text or a number; Value keeps both representations
// behind one immutable type so strategies can choose the numeric or the
// categorical code path without reflection.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

// TextValue creates a text-valued Value.
func TextValue(s string) Value { return Value{kind: ValueText, text: s} }

// NumericValue creates a numeric Value.
func NumericValue(f float64) Value { return Value{kind: ValueNumeric, num: f} }

// Kind returns the representation of this value.
func (v Value) Kind() ValueKind { return v.kind }

// String returns the canonical textual form of the value. Numeric values
// use the shortest representation that round-trips ('g', -1).
func (v Value) String() string {
	if v.kind == ValueNumeric {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.text
}

// Float returns the numeric form of the value. Text values are coerced
// via strconv when they parse cleanly; the boolean reports success.
func (v Value) Float() (float64, bool) {
	if v.kind == ValueNumeric {
		return v.num, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsNumeric reports whether the value is numeric or coercible to numeric.
func (v Value) IsNumeric() bool {
	_, ok := v.Float()
	return ok
}

// MarshalJSON encodes numeric values as JSON numbers and text values as
// JSON strings, matching the contributor-facing wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == ValueNumeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON decodes either a JSON number or a JSON string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = NumericValue(num)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("value must be a number or a string: %w", err)
	}
	*v = TextValue(text)
	return nil
}

// Prediction is one contributor's answer to a question plus the
// contributor's self-reported confidence. Predictions are immutable value
// objects: strategies never mutate their inputs and synthesized consensus
// results carry a distinguishing ContributorID (e.g. "semantic_consensus")
// so they cannot be mistaken for a raw contributor output.
type Prediction struct {
	// ContributorID identifies the logical agent that produced this
	// prediction, or the strategy that synthesized it.
	ContributorID string `json:"contributor_id"`

	// Value is the predicted value, textual or numeric.
	Value Value `json:"value"`

	// Confidence is the contributor's self-reported certainty in [0, 1].
	Confidence float64 `json:"confidence"`
}

// WithConfidence returns a copy of the prediction with its confidence
// replaced and clamped to [0, 1].
func (p Prediction) WithConfidence(c float64) Prediction {
	p.Confidence = ClampConfidence(c)
	return p
}

// ClampConfidence clamps a confidence score to the valid [0, 1] range.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
