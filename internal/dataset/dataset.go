package dataset

import (
	"math"
	"reflect"
	"slices"
)

// Dataset is an in-memory view of a saved artifact.
type Dataset struct {
	Attributes map[string]any
	Variables  map[string]*Variable
}

// Variable is a named array with its dimensions and attributes.
type Variable struct {
	Dimensions []string
	Attributes map[string]any
	Values     any
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{Attributes: map[string]any{}, Variables: map[string]*Variable{}}
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b *Dataset) bool {
	if !attributesEqual(a.Attributes, b.Attributes) {
		return false
	}
	if len(a.Variables) != len(b.Variables) {
		return false
	}
	for name, va := range a.Variables {
		vb, ok := b.Variables[name]
		if !ok {
			return false
		}
		if !attributesEqual(va.Attributes, vb.Attributes) || !dataEqual(va, vb) {
			return false
		}
	}
	return true
}

func attributesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !valuesEqual(va, vb) {
			return false
		}
	}
	return true
}

func dataEqual(a, b *Variable) bool {
	return slices.Equal(a.Dimensions, b.Dimensions) && valuesEqual(a.Values, b.Values)
}

// valuesEqual compares two values element-wise. Types must match exactly.
func valuesEqual(a, b any) bool {
	return deepEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func deepEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Float32, reflect.Float64:
		return floatEqual(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		ca, cb := a.Complex(), b.Complex()
		return floatEqual(real(ca), real(cb)) && floatEqual(imag(ca), imag(cb))
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !deepEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Interface, reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return deepEqual(a.Elem(), b.Elem())
	default:
		if !a.CanInterface() || !b.CanInterface() {
			return false
		}
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
}

func floatEqual(x, y float64) bool {
	return x == y || (math.IsNaN(x) && math.IsNaN(y))
}
