package extension

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"hcext/internal/dom"
	"hcext/internal/util"
)

// Options is a resolved option record keyed by option name.
type Options map[string]any

// typeCheck is a compiled option type pattern such as "(string|number|null)".
type typeCheck struct {
	pattern string
	re      *regexp.Regexp
}

func compileTypes(widget string, types map[string]string) map[string]typeCheck {
	out := make(map[string]typeCheck, len(types))
	for name, pattern := range types {
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			panic(fmt.Sprintf("extension %s: option %q has invalid type pattern %q: %v", widget, name, pattern, err))
		}
		out[name] = typeCheck{pattern: pattern, re: re}
	}
	return out
}

// check validates every typed option of opts.
func check(widget string, opts Options, types map[string]typeCheck) error {
	for name, tc := range types {
		actual := util.TypeOf(opts[name])
		if !tc.re.MatchString(actual) {
			return &OptionTypeError{Widget: widget, Option: name, Actual: actual, Expected: tc.pattern}
		}
	}
	return nil
}

// resolve merges defaults, the element's data-* attributes and overrides,
// in that order of precedence. Only data attributes naming a known option
// are used.
func resolve(defaults Options, types map[string]typeCheck, el *dom.Element, overrides map[string]any) Options {
	opts := Options(util.Extend(defaults))
	for key, raw := range el.Dataset() {
		_, known := opts[key]
		if _, typed := types[key]; !known && !typed {
			continue
		}
		opts[key] = util.CoerceDataValue(raw)
	}
	return Options(util.Extend(opts, overrides))
}

// parseJSONOptions decodes string values of options declared as objects or
// arrays. Strings that are not valid JSON fall back to the default.
func parseJSONOptions(widget string, opts, defaults Options, types map[string]typeCheck, logger *slog.Logger) {
	for name, tc := range types {
		s, ok := opts[name].(string)
		if !ok || !(strings.Contains(tc.pattern, "object") || strings.Contains(tc.pattern, "array")) {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			logger.Error("option value is not a valid JSON string", "widget", widget, "option", name)
			opts[name] = cloneValue(defaults[name])
			continue
		}
		opts[name] = v
	}
}

// optionsMap turns a typed defaults struct into an option record using the
// fields' json names.
func optionsMap(defaults any) (Options, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(defaults); err != nil {
		return nil, err
	}
	return Options(out), nil
}

// decodeOptions fills a typed options struct from a resolved record.
func decodeOptions(opts Options, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     dst,
		DecodeHook: jsonStringHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(opts))
}

// jsonStringHook decodes JSON strings bound for slice, map or struct fields.
func jsonStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Slice, reflect.Map, reflect.Struct:
	default:
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return reflect.Zero(to).Interface(), nil
	}
	v := reflect.New(to)
	if err := json.Unmarshal([]byte(s), v.Interface()); err != nil {
		return nil, fmt.Errorf("decode JSON option value: %w", err)
	}
	return v.Elem().Interface(), nil
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return util.Extend(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
