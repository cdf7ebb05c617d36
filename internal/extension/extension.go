// Package extension binds widget behaviour to document elements: options are
// resolved from defaults, data attributes and overrides, validated against
// declared type patterns, and handed to the widget's Initialize hook.
package extension

import (
	"context"
	"fmt"
	"log/slog"

	"hcext/internal/dom"
	"hcext/internal/render"
	"hcext/internal/util"
)

// Spec declares a widget type.
type Spec[O any] struct {
	// Name identifies the widget, e.g. "tableOfContents". Events are
	// published as "<Name>:<event>".
	Name string
	// Defaults holds the option defaults. Field names come from json tags.
	Defaults O
	// Types maps option names to type patterns such as "(string|null)".
	Types map[string]string
}

// Widget is the behaviour bound to one element.
type Widget[O any] interface {
	Initialize(ctx context.Context, opts O) error
}

// Extension is the state shared by every widget instance.
type Extension[O any] struct {
	Runtime *Runtime
	// El is the managed element. Widgets that re-render into a new element
	// replace it.
	El             *dom.Element
	Name           string
	InstanceNumber int
	ID             string
	Options        O
	// Raw is the validated option record Options was decoded from.
	Raw Options
}

// Constructor builds a widget bound to el. Overrides take precedence over
// data attributes and defaults.
type Constructor[W any] func(ctx context.Context, rt *Runtime, el *dom.Element, overrides map[string]any) (W, error)

// Create returns the constructor for a widget type. build wraps the shared
// Extension state in the widget. Create panics when spec holds an invalid
// type pattern or defaults that cannot be turned into an option record.
func Create[O any, W Widget[O]](spec Spec[O], build func(*Extension[O]) W) Constructor[W] {
	types := compileTypes(spec.Name, spec.Types)
	defaults, err := optionsMap(spec.Defaults)
	if err != nil {
		panic(fmt.Sprintf("extension %s: defaults: %v", spec.Name, err))
	}

	return func(ctx context.Context, rt *Runtime, el *dom.Element, overrides map[string]any) (W, error) {
		var zero W
		if el == nil || el.Node() == nil {
			return zero, ErrNotElement
		}

		n := rt.nextInstance()
		ext := &Extension[O]{
			Runtime:        rt,
			El:             el,
			Name:           spec.Name,
			InstanceNumber: n,
			ID:             fmt.Sprintf("%s%d", rt.idPrefix, n),
		}

		opts := resolve(defaults, types, el, overrides)
		if err := check(spec.Name, opts, types); err != nil {
			return zero, err
		}
		parseJSONOptions(spec.Name, opts, defaults, types, rt.logger)
		if err := decodeOptions(opts, &ext.Options); err != nil {
			return zero, fmt.Errorf("%s: %w", spec.Name, err)
		}
		ext.Raw = opts

		w := build(ext)
		rt.Doc.Data(el)[spec.Name] = w
		rt.logger.Debug("initialize extension", "widget", spec.Name, "id", ext.ID)
		if err := w.Initialize(ctx, ext.Options); err != nil {
			return w, fmt.Errorf("%s %s: %w", spec.Name, ext.ID, err)
		}
		return w, nil
	}
}

// InstanceOf returns the widget of the named type bound to el.
func InstanceOf[W any](doc *dom.Document, el *dom.Element, name string) (W, bool) {
	w, ok := doc.Data(el)[name].(W)
	return w, ok
}

// Logger returns the runtime logger tagged with the widget.
func (e *Extension[O]) Logger() *slog.Logger {
	return e.Runtime.logger.With("widget", e.Name, "id", e.ID)
}

// Document returns the document the widget lives in.
func (e *Extension[O]) Document() *dom.Document { return e.Runtime.Doc }

// ClassName returns the classNames option entry for identifier. Entries may
// be strings or funcs receiving args.
func (e *Extension[O]) ClassName(identifier string, args ...any) (string, bool) {
	names, ok := e.Raw["classNames"].(map[string]any)
	if !ok || util.TypeOf(e.Raw["classNames"]) != "object" {
		return "", false
	}
	switch v := names[identifier].(type) {
	case string:
		return v, true
	case func(...any) string:
		return v(args...), true
	case func() string:
		return v(), true
	}
	return "", false
}

// Render fills the managed element with a template.
func (e *Extension[O]) Render(ctx context.Context, templateID string, data map[string]any) error {
	return e.Runtime.Renderer.Render(ctx, e.El, templateID, data, render.Options{})
}

// Trigger publishes "<Name>:<event>" on the managed element with
// relatedTarget set to it.
func (e *Extension[O]) Trigger(event string, detail map[string]any) *dom.Event {
	d := map[string]any{"relatedTarget": e.El}
	for k, v := range detail {
		d[k] = v
	}
	return e.Runtime.Doc.Trigger(e.El, e.Name+":"+event, d)
}
