package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"hcext/internal/api"
	"hcext/internal/dom"
	"hcext/internal/logging"
	"hcext/internal/render"
)

// DefaultIDPrefix prefixes the DOM ids derived from instance numbers.
const DefaultIDPrefix = "hc-"

// Runtime owns the page-wide state widgets share: the document, the API
// client, the renderer and the instance counter. Widgets mutate the
// document, so a Runtime is driven from one goroutine.
type Runtime struct {
	Doc      *dom.Document
	API      *api.Client
	Renderer *render.Renderer

	logger   *slog.Logger
	idPrefix string

	mu            sync.Mutex
	instances     int
	registrations []Registration
	unsubscribe   func()
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

func WithAPI(c *api.Client) RuntimeOption {
	return func(rt *Runtime) { rt.API = c }
}

func WithRenderer(r *render.Renderer) RuntimeOption {
	return func(rt *Runtime) { rt.Renderer = r }
}

func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithIDPrefix sets the prefix of instance ids.
func WithIDPrefix(prefix string) RuntimeOption {
	return func(rt *Runtime) { rt.idPrefix = prefix }
}

// NewRuntime returns a runtime over doc.
func NewRuntime(doc *dom.Document, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		Doc:      doc,
		logger:   logging.Discard(),
		idPrefix: DefaultIDPrefix,
	}
	for _, o := range opts {
		o(rt)
	}
	if rt.Renderer == nil {
		rt.Renderer = render.New()
	}
	return rt
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

func (rt *Runtime) nextInstance() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := rt.instances
	rt.instances++
	return n
}

// Instances returns how many widgets have been constructed.
func (rt *Runtime) Instances() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.instances
}

// Registration tells Boot how to discover and construct one widget type.
type Registration struct {
	// Element is the data-element value marking elements for this widget.
	Element string
	// Selector optionally matches additional elements, e.g. ".js-tabs".
	Selector string
	// Nested widgets are discovered again whenever a template renders. Their
	// markers are removed so each element is constructed once.
	Nested bool
	// Construct builds the widget for el.
	Construct func(ctx context.Context, rt *Runtime, el *dom.Element) error
}

func (r Registration) selector() string {
	sel := fmt.Sprintf(`[data-element=%q]`, r.Element)
	if r.Selector != "" {
		sel += ", " + r.Selector
	}
	return sel
}

// Register adds a widget type to the ones Boot discovers.
func (rt *Runtime) Register(regs ...Registration) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.registrations = append(rt.registrations, regs...)
}

// Boot constructs every registered widget found in the document. A failing
// instance does not stop the others; all failures are returned together.
// Nested registrations keep listening for rendered templates until Close.
func (rt *Runtime) Boot(ctx context.Context) error {
	ctx = logging.WithLogger(ctx, rt.logger)

	rt.mu.Lock()
	regs := append([]Registration(nil), rt.registrations...)
	subscribe := rt.unsubscribe == nil
	rt.mu.Unlock()

	var nested []Registration
	for _, reg := range regs {
		if reg.Nested {
			nested = append(nested, reg)
		}
	}
	if subscribe && len(nested) > 0 {
		unsub := rt.Doc.Subscribe(dom.RenderEvent, func(*dom.Event) {
			var errs error
			for _, reg := range nested {
				errs = multierr.Append(errs, rt.scan(ctx, reg))
			}
			if errs != nil {
				rt.logger.Warn("nested widgets failed after render", "failed", len(multierr.Errors(errs)), "err", errs)
			}
		})
		rt.mu.Lock()
		rt.unsubscribe = unsub
		rt.mu.Unlock()
	}

	var errs error
	for _, reg := range regs {
		errs = multierr.Append(errs, rt.scan(ctx, reg))
	}
	return errs
}

// Close stops listening for rendered templates.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	unsub := rt.unsubscribe
	rt.unsubscribe = nil
	rt.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

const bootedKey = "extension:booted"

func (rt *Runtime) scan(ctx context.Context, reg Registration) error {
	var errs error
	for _, el := range rt.Doc.QuerySelectorAll(reg.selector()) {
		if !el.Connected() {
			continue
		}
		data := rt.Doc.Data(el)
		booted, _ := data[bootedKey].(map[string]bool)
		if booted == nil {
			booted = map[string]bool{}
			data[bootedKey] = booted
		}
		if booted[reg.Element] {
			continue
		}
		booted[reg.Element] = true

		if reg.Nested {
			el.RemoveAttr("data-element")
			if reg.Selector != "" && el.Matches(reg.Selector) {
				removeSelectorClass(el, reg.Selector)
			}
		}

		if err := reg.Construct(ctx, rt, el); err != nil {
			rt.logger.Error("widget failed to initialize", "element", reg.Element, "err", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", reg.Element, err))
		}
	}
	return errs
}

// removeSelectorClass strips a ".class" discovery selector from el.
func removeSelectorClass(el *dom.Element, selector string) {
	if len(selector) > 1 && selector[0] == '.' {
		el.RemoveClass(selector[1:])
	}
}
