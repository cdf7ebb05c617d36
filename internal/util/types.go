// Package util holds the small value helpers shared by the runtime: runtime
// type names, deep merging of option maps, URL parameter handling and page
// classification.
package util

import (
	"encoding/json"
	"reflect"
)

// Typer is implemented by values that report their own runtime type name,
// such as DOM elements ("element") and documents ("htmldocument").
type Typer interface {
	TypeName() string
}

// TypeOf returns the runtime type name of v using the vocabulary of option
// type patterns: null, boolean, number, string, array, object, function, or
// whatever a Typer reports.
func TypeOf(v any) string {
	if v == nil {
		return "null"
	}
	if t, ok := v.(Typer); ok {
		return t.TypeName()
	}
	switch v.(type) {
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		return "number"
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "null"
		}
		rv = rv.Elem()
		if t, ok := rv.Interface().(Typer); ok {
			return t.TypeName()
		}
	}
	switch rv.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "null"
		}
		return "array"
	case reflect.Func:
		if rv.IsNil() {
			return "null"
		}
		return "function"
	case reflect.Map:
		if rv.IsNil() {
			return "null"
		}
		return "object"
	default:
		return "object"
	}
}

// IsObject reports whether v is a plain key/value object.
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Extend returns a new map holding target deep-merged with each source in
// turn. Nested objects are merged key by key; every other value, arrays
// included, replaces what was there. Neither target nor sources are mutated.
func Extend(target map[string]any, sources ...map[string]any) map[string]any {
	out := cloneMap(target)
	for _, src := range sources {
		out = extendInto(out, src)
	}
	return out
}

func extendInto(out, src map[string]any) map[string]any {
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range src {
		sv, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		tv, ok := out[k].(map[string]any)
		if !ok {
			out[k] = cloneMap(sv)
			continue
		}
		out[k] = extendInto(cloneMap(tv), sv)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Pick returns the subset of obj holding only props. With no props, obj is
// returned unchanged.
func Pick(obj map[string]any, props []string) map[string]any {
	if obj == nil {
		return map[string]any{}
	}
	if len(props) == 0 {
		return obj
	}
	picked := make(map[string]any, len(props))
	for _, p := range props {
		if v, ok := obj[p]; ok {
			picked[p] = v
		}
	}
	return picked
}

// Unique returns the objects whose property value has not been seen earlier
// in the slice. Order is preserved.
func Unique(objs []map[string]any, property string) []map[string]any {
	seen := make(map[any]struct{}, len(objs))
	out := make([]map[string]any, 0, len(objs))
	for _, o := range objs {
		k := comparableKey(o[property])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

type numberKey float64

func comparableKey(v any) any {
	if f, ok := ToFloat(v); ok {
		return numberKey(f)
	}
	if v == nil || reflect.TypeOf(v).Comparable() {
		return v
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Intersection returns the values of x that are also in y, in x's order.
func Intersection[T comparable](x, y []T) []T {
	in := make(map[T]struct{}, len(y))
	for _, v := range y {
		in[v] = struct{}{}
	}
	out := make([]T, 0, len(x))
	for _, v := range x {
		if _, ok := in[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Contains reports whether v is in s.
func Contains[T comparable](s []T, v T) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// ToFloat converts any numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
