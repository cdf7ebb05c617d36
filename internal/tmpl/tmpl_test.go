package tmpl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, src string, data any, opts ...Option) string {
	t.Helper()
	tpl, err := Compile(src, opts...)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	out, err := tpl.Execute(data)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	return out
}

func TestDirectives(t *testing.T) {
	data := map[string]any{
		"title": `<b>"Tom" & 'Jerry'</b>`,
		"items": []any{"a", "b", "c"},
		"count": 3,
	}
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"escape", "<%- title %>", "&lt;b&gt;&quot;Tom&quot; &amp; &#x27;Jerry&#x27;&lt;/b&gt;"},
		{"raw", "<%= title %>", `<b>"Tom" & 'Jerry'</b>`},
		{"number", "n=<%= count %>", "n=3"},
		{"loop", "<% items.forEach(function(i) { %>[<%= i %>]<% }); %>", "[a][b][c]"},
		{"print", "<% print('x', 'y') %>!", "xy!"},
		{"null", "<%= missing %>.", "."},
		{"multiline", "a\n'b'\\c\r\n<%= count %>", "a\n'b'\\c\r\n3"},
	}
	data["missing"] = nil
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, tt.src, data); got != tt.want {
				t.Errorf("render(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	literals := []string{
		"",
		"plain text",
		"quotes ' \" ` and \\ backslashes",
		"line\nbreaks\r\nand\u2028separators\u2029",
		"<div class=\"x\">markup</div>",
	}
	for _, lit := range literals {
		for _, data := range []any{nil, map[string]any{"a": 1}} {
			if got := render(t, lit, data); got != lit {
				t.Errorf("literal %q rendered as %q", lit, got)
			}
		}
	}
}

func TestEscapeLaw(t *testing.T) {
	inputs := []string{`<script>alert("x")</script>`, "a & b", "it's `code`", "plain"}
	tpl := MustCompile("<%- s %>|<%= s %>")
	for _, s := range inputs {
		out, err := tpl.Execute(map[string]any{"s": s})
		if err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		escaped, raw, _ := strings.Cut(out, "|")
		stripped := escaped
		for _, ent := range []string{"&amp;", "&lt;", "&gt;", "&quot;", "&#x27;", "&#x60;"} {
			stripped = strings.ReplaceAll(stripped, ent, "")
		}
		if strings.ContainsAny(stripped, "<>&\"'`") {
			t.Errorf("escaped output %q still contains special characters", escaped)
		}
		if raw != s {
			t.Errorf("raw output %q, want %q", raw, s)
		}
	}
}

func TestIdempotent(t *testing.T) {
	tpl := MustCompile("<% var n = (typeof n === 'undefined' ? 0 : n) + 1; %><%= n %>-<%= items.length %>")
	data := map[string]any{"items": []string{"x", "y"}}
	first, err := tpl.Execute(data)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	second, err := tpl.Execute(data)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if first != second || first != "1-2" {
		t.Errorf("renders differ: %q vs %q", first, second)
	}
}

func TestVariable(t *testing.T) {
	got := render(t, "<%= data.name %>", map[string]any{"name": "hc"}, Variable("data"))
	if got != "hc" {
		t.Errorf("render with variable = %q", got)
	}
}

func TestHTMLEntitiesDecoded(t *testing.T) {
	got := render(t, "&lt;% if (ok) { %&gt;yes&lt;% } %&gt;", map[string]any{"ok": true})
	if got != "yes" {
		t.Errorf("render = %q", got)
	}
}

func TestStructFieldsUseJSONNames(t *testing.T) {
	type article struct {
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
	}
	got := render(t, `<a href="<%= a.html_url %>"><%- a.title %></a>`, map[string]any{
		"a": article{Title: "Hi", HTMLURL: "/hc/1"},
	})
	if got != `<a href="/hc/1">Hi</a>` {
		t.Errorf("render = %q", got)
	}
}

func TestCompileError(t *testing.T) {
	_, err := Compile("<% if ( { %>", Name("broken"))
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %v", err)
	}
	if !strings.Contains(cerr.Source, "if ( {") || cerr.Name != "broken" {
		t.Errorf("CompileError missing source: %+v", cerr)
	}
}

func TestExecuteRuntimeError(t *testing.T) {
	tpl := MustCompile("<%= undefinedThing.x %>")
	if _, err := tpl.Execute(map[string]any{}); err == nil {
		t.Fatal("expected reference error")
	}
}

func TestExecuteContextInterrupts(t *testing.T) {
	tpl := MustCompile("<% while (true) {} %>")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := tpl.ExecuteContext(ctx, nil); err == nil {
		t.Fatal("expected interrupt error")
	}
}

func TestGoFunctionsCallable(t *testing.T) {
	data := map[string]any{
		"partial": func(id string, d map[string]any) string { return id + ":" + d["x"].(string) },
	}
	if got := render(t, "<%= partial('card', {x: 'y'}) %>", data); got != "card:y" {
		t.Errorf("render = %q", got)
	}
}
