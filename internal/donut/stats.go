package donut

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when a StatSet cannot be laid out as a ring:
// it is empty, sums to zero or less, overflows, or carries a malformed entry.
var ErrInvalidInput = errors.New("invalid stat set")

// Stat is a single category and its value.
type Stat struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// StatSet is an ordered mapping from category to a non-negative value.
// Order determines arc draw order, clockwise from angle 0.
type StatSet []Stat

// Total returns the sum of all values.
func (s StatSet) Total() float64 {
	total := 0.0
	for _, st := range s {
		total += st.Value
	}
	return total
}

// Validate reports whether s can be laid out. Every failure wraps ErrInvalidInput.
func (s StatSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(s))
	for _, st := range s {
		if st.Category == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidInput)
		}
		if _, dup := seen[st.Category]; dup {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidInput, st.Category)
		}
		seen[st.Category] = struct{}{}
		if math.IsNaN(st.Value) || math.IsInf(st.Value, 0) {
			return fmt.Errorf("%w: category %q is not a finite number", ErrInvalidInput, st.Category)
		}
		if st.Value < 0 {
			return fmt.Errorf("%w: category %q is negative", ErrInvalidInput, st.Category)
		}
	}
	total := s.Total()
	if math.IsInf(total, 0) {
		return fmt.Errorf("%w: total overflows", ErrInvalidInput)
	}
	if total <= 0 {
		return fmt.Errorf("%w: total must be positive", ErrInvalidInput)
	}
	return nil
}

// MarshalJSON encodes s as a JSON object, keys in insertion order.
func (s StatSet) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, st := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(st.Category)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(st.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON accepts either an object ({"population":1500,"revenue":500}),
// whose key order is kept, or an array of {"category","value"} pairs.
func (s *StatSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pairs []Stat
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		*s = pairs
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stat set: expected object or array, got %v", tok)
	}

	out := StatSet{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("stat set: expected key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("stat set: category %q: %w", key, err)
		}
		out = append(out, Stat{Category: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}
