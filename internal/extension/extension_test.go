package extension

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"hcext/internal/dom"
	"hcext/internal/render"
)

type demoOptions struct {
	Title      string         `json:"title"`
	Count      int            `json:"count"`
	Threshold  any            `json:"threshold"`
	Labels     []string       `json:"labels"`
	Data       map[string]any `json:"data"`
	Target     any            `json:"target"`
	ClassNames map[string]any `json:"classNames"`
}

type demo struct {
	*Extension[demoOptions]
	initialized int
	got         demoOptions
}

func (d *demo) Initialize(_ context.Context, opts demoOptions) error {
	d.initialized++
	d.got = opts
	return nil
}

var built []*demo

var newDemo = Create(Spec[demoOptions]{
	Name: "demo",
	Defaults: demoOptions{
		Title:      "hello",
		Count:      1,
		Labels:     []string{},
		Data:       map[string]any{"k": "default"},
		ClassNames: map[string]any{},
	},
	Types: map[string]string{
		"title":      "string",
		"count":      "number",
		"threshold":  "(string|number|null)",
		"labels":     "(string|array)",
		"data":       "(string|object)",
		"target":     "(element|null)",
		"classNames": "object",
	},
}, func(e *Extension[demoOptions]) *demo {
	d := &demo{Extension: e}
	built = append(built, d)
	return d
})

func setup(t *testing.T, body string) (*Runtime, *bytes.Buffer) {
	t.Helper()
	doc, err := dom.ParseString("<!doctype html><html><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	var logs bytes.Buffer
	rt := NewRuntime(doc, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	t.Cleanup(rt.Close)
	built = nil
	return rt, &logs
}

func TestConstructRejectsMissingElement(t *testing.T) {
	rt, _ := setup(t, "")
	if _, err := newDemo(context.Background(), rt, nil, nil); !errors.Is(err, ErrNotElement) {
		t.Fatalf("err = %v, want ErrNotElement", err)
	}
}

func TestOptionPrecedence(t *testing.T) {
	rt, _ := setup(t, `<div id="a" data-title="from data" data-count="5" data-threshold="120" data-unknown="x"></div>`)
	el := rt.Doc.GetElementByID("a")

	d, err := newDemo(context.Background(), rt, el, map[string]any{"count": 9})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if d.initialized != 1 {
		t.Errorf("Initialize called %d times", d.initialized)
	}
	if d.got.Title != "from data" {
		t.Errorf("Title = %q, want data attribute value", d.got.Title)
	}
	if d.got.Count != 9 {
		t.Errorf("Count = %d, want override 9", d.got.Count)
	}
	if d.got.Threshold != float64(120) {
		t.Errorf("Threshold = %#v, want number 120", d.got.Threshold)
	}
	if _, ok := d.Raw["unknown"]; ok {
		t.Error("undeclared data attribute became an option")
	}
	if d.Options.Data["k"] != "default" {
		t.Errorf("Data = %v, want defaults", d.Options.Data)
	}
}

func TestOptionTypeMismatch(t *testing.T) {
	rt, _ := setup(t, `<div id="a" data-count="many"></div>`)

	_, err := newDemo(context.Background(), rt, rt.Doc.GetElementByID("a"), nil)
	var te *OptionTypeError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want OptionTypeError", err)
	}
	if te.Option != "count" || te.Actual != "string" || te.Expected != "number" {
		t.Errorf("OptionTypeError = %+v", te)
	}
	if !strings.Contains(err.Error(), `Option "count" provided "string" but expected "number"`) {
		t.Errorf("message = %q", err.Error())
	}
	if len(built) != 0 {
		t.Error("widget was built despite invalid options")
	}
}

func TestTypePatternsAreAnchored(t *testing.T) {
	rt, _ := setup(t, `<div id="a"></div>`)
	el := rt.Doc.GetElementByID("a")

	_, err := newDemo(context.Background(), rt, el, map[string]any{"title": []any{"string"}})
	if err == nil {
		t.Fatal("array accepted for a string option")
	}
	if _, err := newDemo(context.Background(), rt, el, map[string]any{"target": el}); err != nil {
		t.Fatalf("element option rejected: %v", err)
	}
	if _, err := newDemo(context.Background(), rt, el, map[string]any{"target": "#a"}); err == nil {
		t.Fatal("string accepted for an element option")
	}
}

func TestJSONStringOptions(t *testing.T) {
	rt, logs := setup(t, `<div id="a" data-labels='["a","b"]' data-data='{"k":2}'></div><div id="b" data-data="{oops"></div>`)
	ctx := context.Background()

	d, err := newDemo(ctx, rt, rt.Doc.GetElementByID("a"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(d.got.Labels, ",") != "a,b" {
		t.Errorf("Labels = %v", d.got.Labels)
	}
	if d.got.Data["k"] != float64(2) {
		t.Errorf("Data = %v", d.got.Data)
	}

	d, err = newDemo(ctx, rt, rt.Doc.GetElementByID("b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.got.Data["k"] != "default" {
		t.Errorf("invalid JSON should fall back to the default, got %v", d.got.Data)
	}
	if !strings.Contains(logs.String(), "not a valid JSON string") {
		t.Errorf("invalid JSON not logged: %s", logs.String())
	}
}

func TestInstanceNumbers(t *testing.T) {
	rt, _ := setup(t, `<div id="a"></div><div id="b"></div>`)
	ctx := context.Background()

	a, _ := newDemo(ctx, rt, rt.Doc.GetElementByID("a"), nil)
	b, _ := newDemo(ctx, rt, rt.Doc.GetElementByID("b"), nil)
	if a.InstanceNumber != 0 || b.InstanceNumber != 1 {
		t.Errorf("instance numbers = %d, %d", a.InstanceNumber, b.InstanceNumber)
	}
	if b.ID != "hc-1" {
		t.Errorf("ID = %q, want hc-1", b.ID)
	}
	got, ok := InstanceOf[*demo](rt.Doc, rt.Doc.GetElementByID("b"), "demo")
	if !ok || got != b {
		t.Error("InstanceOf did not return the bound widget")
	}
}

func TestClassName(t *testing.T) {
	rt, _ := setup(t, `<div id="a"></div>`)
	d, err := newDemo(context.Background(), rt, rt.Doc.GetElementByID("a"), map[string]any{
		"classNames": map[string]any{
			"stuck":  "is-stuck shadow",
			"hidden": func(args ...any) string { return "hidden-" + args[0].(string) },
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := d.ClassName("stuck"); got != "is-stuck shadow" {
		t.Errorf("ClassName(stuck) = %q", got)
	}
	if got, _ := d.ClassName("hidden", "up"); got != "hidden-up" {
		t.Errorf("ClassName(hidden) = %q", got)
	}
	if _, ok := d.ClassName("missing"); ok {
		t.Error("ClassName(missing) reported a value")
	}
}

func TestTrigger(t *testing.T) {
	rt, _ := setup(t, `<div id="a"></div>`)
	d, _ := newDemo(context.Background(), rt, rt.Doc.GetElementByID("a"), nil)

	var got *dom.Event
	rt.Doc.Subscribe("demo:render", func(ev *dom.Event) { got = ev })
	d.Trigger("render", map[string]any{"extra": 1})
	if got == nil {
		t.Fatal("event not delivered")
	}
	if !got.RelatedTarget().Is(d.El) || got.Detail["extra"] != 1 {
		t.Errorf("detail = %v", got.Detail)
	}
}

func TestBootIsolatesFailures(t *testing.T) {
	rt, _ := setup(t, `<div data-element="demo" data-count="bad"></div><div data-element="demo" data-title="ok"></div>`)
	rt.Register(Registration{
		Element: "demo",
		Construct: func(ctx context.Context, rt *Runtime, el *dom.Element) error {
			_, err := newDemo(ctx, rt, el, nil)
			return err
		},
	})

	err := rt.Boot(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Errorf("got %d errors, want 1", n)
	}
	if len(built) != 1 || built[0].got.Title != "ok" {
		t.Fatalf("valid instance not built: %v", built)
	}

	if err := rt.Boot(context.Background()); err != nil {
		t.Fatalf("second Boot: %v", err)
	}
	if len(built) != 1 {
		t.Errorf("elements constructed again on second Boot")
	}
}

func TestBootDiscoversNestedWidgets(t *testing.T) {
	rt, _ := setup(t, `<div id="host"></div>
<script type="text/template" id="tmpl-host"><div class="js-demo" data-title="inner"></div></script>`)
	rt.Register(Registration{
		Element:  "demo",
		Selector: ".js-demo",
		Nested:   true,
		Construct: func(ctx context.Context, rt *Runtime, el *dom.Element) error {
			_, err := newDemo(ctx, rt, el, nil)
			return err
		},
	})
	ctx := context.Background()
	if err := rt.Boot(ctx); err != nil {
		t.Fatal(err)
	}
	if len(built) != 0 {
		t.Fatalf("built %d widgets before render", len(built))
	}

	host := rt.Doc.GetElementByID("host")
	if err := rt.Renderer.Render(ctx, host, "host", nil, render.Options{}); err != nil {
		t.Fatal(err)
	}
	if len(built) != 1 || built[0].got.Title != "inner" {
		t.Fatalf("nested widget not built: %d", len(built))
	}
	inner := host.QuerySelector("div")
	if inner.HasClass("js-demo") || inner.HasAttr("data-element") {
		t.Error("discovery markers not removed")
	}

	rt.Doc.Trigger(nil, dom.RenderEvent, nil)
	if len(built) != 1 {
		t.Errorf("nested widget constructed %d times", len(built))
	}
}

func TestNestedFailuresAreLogged(t *testing.T) {
	rt, logs := setup(t, `<div id="host"></div>
<script type="text/template" id="tmpl-host"><div class="js-demo" data-count="bad"></div><div class="js-demo" data-title="ok"></div></script>`)
	rt.Register(Registration{
		Element:  "demo",
		Selector: ".js-demo",
		Nested:   true,
		Construct: func(ctx context.Context, rt *Runtime, el *dom.Element) error {
			_, err := newDemo(ctx, rt, el, nil)
			return err
		},
	})
	ctx := context.Background()
	if err := rt.Boot(ctx); err != nil {
		t.Fatal(err)
	}

	host := rt.Doc.GetElementByID("host")
	if err := rt.Renderer.Render(ctx, host, "host", nil, render.Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(built) != 1 || built[0].got.Title != "ok" {
		t.Fatalf("valid nested widget not built: %d", len(built))
	}
	out := logs.String()
	if !strings.Contains(out, "nested widgets failed after render") || !strings.Contains(out, "failed=1") {
		t.Errorf("aggregate failure not logged:\n%s", out)
	}
}
