package bucket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a world-state value: a number, a string, or a boolean.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// Number returns a numeric Value.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Num returns the numeric payload. Only meaningful for KindNumber.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload. Only meaningful for KindString.
func (v Value) Str() string { return v.str }

// Truth returns the boolean payload. Only meaningful for KindBool.
func (v Value) Truth() bool { return v.b }

// FromAny converts a loosely typed value, as produced by JSON or YAML
// decoding, into a Value. Unsupported types report false.
func FromAny(x any) (Value, bool) {
	switch t := x.(type) {
	case Value:
		return t, t.kind != KindInvalid
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case float64:
		return Number(t), true
	case float32:
		return Number(float64(t)), true
	case int:
		return Number(float64(t)), true
	case int32:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	case uint:
		return Number(float64(t)), true
	case uint64:
		return Number(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false
		}
		return Number(f), true
	default:
		return Value{}, false
	}
}

// State is a snapshot of world state keyed by name.
type State map[string]Value

// StateFromMap converts a loosely typed map, skipping values of unsupported types.
func StateFromMap(m map[string]any) State {
	s := make(State, len(m))
	for k, raw := range m {
		if v, ok := FromAny(raw); ok {
			s[k] = v
		}
	}
	return s
}

// ParseState parses "key=value" pairs. Values that parse as numbers become
// numbers, "true"/"false" become booleans, anything else is a string.
func ParseState(pairs []string) State {
	s := make(State, len(pairs))
	for _, p := range pairs {
		k, raw, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		k = strings.TrimSpace(k)
		raw = strings.TrimSpace(raw)
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			s[k] = Number(f)
			continue
		}
		switch strings.ToLower(raw) {
		case "true":
			s[k] = Bool(true)
			continue
		case "false":
			s[k] = Bool(false)
			continue
		}
		s[k] = String(raw)
	}
	return s
}
