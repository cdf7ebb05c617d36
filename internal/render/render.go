// Package render fills elements with compiled micro-templates found in the
// document.
//
// A Renderer mutates the DOM and must be driven from one goroutine at a
// time. Its compiled template cache is safe for concurrent use.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"hcext/internal/dom"
	"hcext/internal/logging"
	"hcext/internal/tmpl"
)

// ErrNoTarget is returned when the element to render into is missing.
var ErrNoTarget = errors.New("a valid HTML element was not specified")

// Options control how rendered markup is inserted.
type Options struct {
	// Prepend inserts the markup before existing children instead of
	// replacing them.
	Prepend bool
	// RemoveEmptyElement removes the target when the template renders to
	// nothing.
	RemoveEmptyElement bool
	// RemoveClasses are removed from the target after rendering.
	RemoveClasses []string
}

// Renderer compiles and caches templates and renders them into elements.
type Renderer struct {
	fetcher SVGFetcher

	cacheMu sync.RWMutex
	cache   map[string]*tmpl.Template
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSVGFetcher sets how inline SVG images are loaded. A nil fetcher
// leaves flagged SVG images untouched.
func WithSVGFetcher(f SVGFetcher) Option {
	return func(r *Renderer) { r.fetcher = f }
}

// New returns a Renderer that fetches inline SVGs over HTTP.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		fetcher: HTTPFetcher{},
		cache:   map[string]*tmpl.Template{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// TemplateString returns the markup of the last #tmpl-<id> element in doc,
// or "" when there is none.
func TemplateString(doc *dom.Document, templateID string) string {
	all := doc.QuerySelectorAll(fmt.Sprintf(`[id="tmpl-%s"]`, templateID))
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1].InnerHTML()
}

// Compile returns the compiled template for text, reusing earlier results.
func (r *Renderer) Compile(text string) (*tmpl.Template, error) {
	r.cacheMu.RLock()
	t, ok := r.cache[text]
	r.cacheMu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := tmpl.Compile(text)
	if err != nil {
		return nil, err
	}
	r.cacheMu.Lock()
	r.cache[text] = t
	r.cacheMu.Unlock()
	return t, nil
}

func (r *Renderer) execute(ctx context.Context, text string, data any) (string, error) {
	t, err := r.Compile(text)
	if err != nil {
		return "", err
	}
	out, err := t.ExecuteContext(ctx, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Render fills target with template templateID evaluated against data.
// Templates call partial(id, data) to render another template inline. When
// the markup is inserted, the template:render event is published on target
// with target as relatedTarget.
func (r *Renderer) Render(ctx context.Context, target *dom.Element, templateID string, data map[string]any, opts Options) error {
	if target == nil {
		return ErrNoTarget
	}
	doc := target.Document()
	logger := logging.FromContext(ctx)

	text := TemplateString(doc, templateID)
	if text == "" {
		logger.Debug("template does not exist", "template", templateID)
		text = Notice(templateID)
	}

	vars := make(map[string]any, len(data)+1)
	for k, v := range data {
		vars[k] = v
	}
	vars["partial"] = func(id string, partialData any) (string, error) {
		el := doc.GetElementByID("tmpl-" + id)
		if el == nil {
			return "", nil
		}
		inner := el.InnerHTML()
		if inner == "" {
			return "", nil
		}
		return r.execute(ctx, inner, partialData)
	}

	out, err := r.execute(ctx, text, vars)
	if err != nil {
		return fmt.Errorf("render %s: %w", templateID, err)
	}

	if out == "" && opts.RemoveEmptyElement {
		target.Remove()
		return nil
	}
	if out != "" {
		if opts.Prepend {
			err = target.PrependHTML(out)
		} else {
			err = target.SetInnerHTML(out)
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", templateID, err)
		}
	}

	r.inlineSVGs(ctx, target)
	target.RemoveClass(opts.RemoveClasses...)

	if out == "" {
		return nil
	}
	doc.Trigger(target, dom.RenderEvent, map[string]any{"relatedTarget": target})
	return nil
}

// RenderSelector renders into the first element matching selector.
func (r *Renderer) RenderSelector(ctx context.Context, doc *dom.Document, selector, templateID string, data map[string]any, opts Options) error {
	target := doc.QuerySelector(selector)
	if target == nil {
		return fmt.Errorf("%s: %w", selector, ErrNoTarget)
	}
	return r.Render(ctx, target, templateID, data, opts)
}
