// Package normalize turns raw indicator values into bounded scores.
//
// All raw values cross the data-fetch boundary as `any`. Missing and non-finite
// values become 0.0 and are reported as defaulted, and so do values of a type that
// carries no number (strings, bools, structs). Only a container (slice, array or map)
// with more than one element is an upstream contract violation and fails with ErrMalformedInput.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// ErrMalformedInput marks a raw value that is not a scalar.
var ErrMalformedInput = errors.New("malformed indicator input")

// Coerce converts v to a finite float64. ok is false when the value is absent or non-finite.
func Coerce(v any) (value float64, ok bool, err error) {
	if v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case *float64:
		if n == nil {
			return 0, false, nil
		}
		return finite(*n)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return 0, false, nil
		}
		return Coerce(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true, nil
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return 0, false, nil
		}
		switch rv.Len() {
		case 0:
			return 0, false, nil
		case 1:
			return Coerce(rv.Index(0).Interface())
		default:
			return 0, false, fmt.Errorf("%w: container with %d elements", ErrMalformedInput, rv.Len())
		}
	case reflect.Map:
		switch rv.Len() {
		case 0:
			return 0, false, nil
		case 1:
			iter := rv.MapRange()
			iter.Next()
			return Coerce(iter.Value().Interface())
		default:
			return 0, false, fmt.Errorf("%w: map with %d entries", ErrMalformedInput, rv.Len())
		}
	}
	return 0, false, nil
}

// Scalar is Coerce without the presence flag: missing values are 0.0.
func Scalar(v any) (float64, error) {
	f, _, err := Coerce(v)
	return f, err
}

// Clamp01 bounds x to [0, 1]; NaN becomes 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func finite(f float64) (float64, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}
