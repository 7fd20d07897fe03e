package rrdtool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sample is one matrix cell; Valid is false for absent (null/NaN) values.
type Sample struct {
	Value float64
	Valid bool
}

// Value builds a present sample.
// Params: v sample value.
// Returns: valid sample.
func Value(v float64) Sample {
	return Sample{Value: v, Valid: true}
}

// Absent is the missing sample.
var Absent = Sample{}

// UnmarshalJSON accepts numbers, null, and the textual NaN/Inf spellings some rrdtool builds emit.
// Params: data raw JSON token.
// Returns: decode error for any other token.
func (s *Sample) UnmarshalJSON(data []byte) error {
	token := bytes.TrimSpace(data)
	if bytes.Equal(token, []byte("null")) {
		*s = Absent
		return nil
	}

	raw := string(token)
	if len(token) > 0 && token[0] == '"' {
		var quoted string
		if err := json.Unmarshal(token, &quoted); err != nil {
			return fmt.Errorf("decode sample %s: %w", raw, err)
		}
		raw = quoted
	}

	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "nan", "-nan", "u", "unkn":
		*s = Absent
		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode sample %q: %w", raw, err)
	}
	if math.IsNaN(v) {
		*s = Absent
		return nil
	}
	*s = Value(v)
	return nil
}

// MarshalJSON writes null for absent or non-finite samples.
// Params: none.
// Returns: JSON number or null.
func (s Sample) MarshalJSON() ([]byte, error) {
	if !s.Valid || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, s.Value, 'g', -1, 64), nil
}

// String renders the sample for logs.
func (s Sample) String() string {
	if !s.Valid {
		return "null"
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}
