// Package tmpl compiles micro-templates: text with <%- expr %> (escaped
// interpolation), <%= expr %> (raw interpolation) and <% code %> (statement)
// directives, evaluated as JavaScript.
//
// A compiled Template holds only the parsed program. Each execution runs in a
// fresh goja runtime, so executions share no state and a Template is safe for
// concurrent use.
package tmpl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

var (
	// ErrNotFunction is returned when a compiled program does not evaluate
	// to the render function.
	ErrNotFunction = errors.New("template program is not a function")
)

// CompileError reports a template whose generated code does not parse.
// Source holds the generated code for diagnosis.
type CompileError struct {
	Name   string
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile template %s: %v", e.Name, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// matcher finds escape, interpolate and evaluate directives in that order of
// preference.
var matcher = regexp.MustCompile(`<%-([\s\S]+?)%>|<%=([\s\S]+?)%>|<%([\s\S]+?)%>`)

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\r", `\r`,
	"\n", `\n`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"`", "&#x60;",
)

// Escape replaces & < > " ' and ` with their HTML entities.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

type settings struct {
	name     string
	variable string
}

// Option configures Compile.
type Option func(*settings)

// Name labels the template in errors.
func Name(name string) Option {
	return func(s *settings) { s.name = name }
}

// Variable binds the data object to a named variable instead of exposing its
// properties as free identifiers.
func Variable(name string) Option {
	return func(s *settings) { s.variable = name }
}

// Template is a compiled micro-template.
type Template struct {
	name   string
	source string
	prog   *goja.Program
}

// Compile decodes HTML entities in text, then compiles it.
func Compile(text string, opts ...Option) (*Template, error) {
	s := settings{name: "template"}
	for _, o := range opts {
		o(&s)
	}

	source := generate(html.UnescapeString(text), s.variable)
	prog, err := goja.Compile(s.name, source, false)
	if err != nil {
		return nil, &CompileError{Name: s.name, Source: source, Err: err}
	}
	return &Template{name: s.name, source: source, prog: prog}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string, opts ...Option) *Template {
	t, err := Compile(text, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func generate(text, variable string) string {
	var b strings.Builder
	b.WriteString("__p+='")
	index := 0
	for _, m := range matcher.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(literalEscaper.Replace(text[index:m[0]]))
		index = m[1]
		switch {
		case m[2] >= 0:
			b.WriteString("'+\n((__t=(" + text[m[2]:m[3]] + "))==null?'':__e(__t))+\n'")
		case m[4] >= 0:
			b.WriteString("'+\n((__t=(" + text[m[4]:m[5]] + "))==null?'':__t)+\n'")
		case m[6] >= 0:
			b.WriteString("';\n" + text[m[6]:m[7]] + "\n__p+='")
		}
	}
	b.WriteString(literalEscaper.Replace(text[index:]))
	b.WriteString("';\n")

	body := b.String()
	if variable == "" {
		body = "with(obj||{}){\n" + body + "}\n"
	}
	param := variable
	if param == "" {
		param = "obj"
	}
	return "(function(" + param + ",__e){\n" +
		"var __t,__p='',__j=Array.prototype.join,print=function(){__p+=__j.call(arguments,'');};\n" +
		body + "return __p;\n})"
}

// Name returns the template's label.
func (t *Template) Name() string { return t.name }

// Source returns the generated code.
func (t *Template) Source() string { return t.source }

// Execute renders the template with data.
func (t *Template) Execute(data any) (string, error) {
	return t.ExecuteContext(context.Background(), data)
}

// ExecuteContext renders the template with data, interrupting template code
// that is still running when ctx is done.
func (t *Template) ExecuteContext(ctx context.Context, data any) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
			case <-stop:
			}
		}()
	}

	v, err := vm.RunProgram(t.prog)
	if err != nil {
		return "", fmt.Errorf("execute template %s: %w", t.name, err)
	}
	render, ok := goja.AssertFunction(v)
	if !ok {
		return "", fmt.Errorf("execute template %s: %w", t.name, ErrNotFunction)
	}
	escape := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(Escape(call.Argument(0).String()))
	})

	arg := goja.Undefined()
	if data != nil {
		arg = vm.ToValue(normalize(data))
	}
	out, err := render(goja.Undefined(), arg, escape)
	if err != nil {
		return "", fmt.Errorf("execute template %s: %w", t.name, err)
	}
	return out.String(), nil
}
