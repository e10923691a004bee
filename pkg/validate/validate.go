// Package validate provides the primitive field predicates that gate every
// write into the inspection store. All functions are pure and total: they
// accept any input type and never panic.
package validate

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	numericPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Numeric reports whether value is a finite number or a string holding a
// finite integer, decimal or scientific-notation literal.
func Numeric(value any) bool {
	_, ok := ParseNumber(value)
	return ok
}

// ParseNumber converts value to a finite float64 using the same acceptance
// rules as Numeric.
func ParseNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		return parseNumericString(v)
	case json.Number:
		return parseNumericString(string(v))
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return 0, false
		}
		return ParseNumber(rv.Elem().Interface())
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.String:
		return parseNumericString(rv.String())
	}
	return 0, false
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numericPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// overflow to ±Inf is reported as a range error by ParseFloat
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Required reports whether value carries content. Numbers (including zero)
// and booleans always count as present; a struct counts when it declares at
// least one field.
func Required(value any) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()) != ""
	case reflect.Slice, reflect.Array, reflect.Map:
		if rv.Kind() != reflect.Array && rv.IsNil() {
			return false
		}
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Required(rv.Elem().Interface())
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return !rv.IsNil()
	case reflect.Struct:
		return rv.NumField() > 0
	}
	return true
}

// Range reports whether value is numeric and lies within [min, max].
func Range(value any, min, max float64) bool {
	f, ok := ParseNumber(value)
	if !ok {
		return false
	}
	return min <= f && f <= max
}

// Email reports whether value is a string shaped like local@domain.tld.
func Email(value any) bool {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return false
	}
	return emailPattern.MatchString(s)
}

// Enum reports whether value is a member of allowed. String-kinded values
// match string-kinded members by content, so a raw form value "rcd" matches
// a typed constant of the same text.
func Enum[T comparable](value any, allowed []T) bool {
	if value == nil {
		return false
	}
	if v, ok := value.(T); ok {
		for _, a := range allowed {
			if a == v {
				return true
			}
		}
		return false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.String {
		return false
	}
	for _, a := range allowed {
		av := reflect.ValueOf(a)
		if av.Kind() == reflect.String && av.String() == rv.String() {
			return true
		}
	}
	return false
}
