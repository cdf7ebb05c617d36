package widgets

import (
	"context"
	"strconv"
	"strings"

	"hcext/internal/dom"
	"hcext/internal/extension"
	"hcext/internal/render"
	"hcext/internal/util"
)

const backToTopTemplate = `<a class="flex button button-primary button-sm p-4 m-4 circle" href="#">` +
	`<svg class="fill-current text-primary-inverse" width="20" height="20" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 100 100">` +
	`<polygon points="12.4,40.1 25.8,53.6 40.5,38.8 40.5,97.5 59.5,97.5 59.5,38.8 74.2,53.6 87.6,40.1 50,2.5" />` +
	`</svg>` +
	`</a>`

// BackToTopOptions configure BackToTop.
type BackToTopOptions struct {
	// Threshold is the scroll offset in pixels after which the link shows.
	Threshold    any            `json:"threshold"`
	Template     any            `json:"template"`
	TemplateData map[string]any `json:"templateData"`
}

// BackToTop renders a link that scrolls the page back to the top.
type BackToTop struct {
	*extension.Extension[BackToTopOptions]

	// Threshold is the parsed threshold, or nil when unset.
	Threshold *int
}

// NewBackToTop constructs a BackToTop bound to el.
var NewBackToTop = extension.Create(extension.Spec[BackToTopOptions]{
	Name: "backToTop",
	Defaults: BackToTopOptions{
		Threshold:    nil,
		Template:     nil,
		TemplateData: map[string]any{},
	},
	Types: map[string]string{
		"threshold":    "(string|number|null)",
		"template":     "(string|null)",
		"templateData": "object",
	},
}, func(e *extension.Extension[BackToTopOptions]) *BackToTop {
	return &BackToTop{Extension: e}
})

func (w *BackToTop) Initialize(ctx context.Context, opts BackToTopOptions) error {
	w.El.AddClass("opacity-0", "z-fixed")
	if n, ok := parseThreshold(opts.Threshold); ok {
		w.Threshold = &n
		w.Options.Threshold = n
	}
	if err := w.render(ctx); err != nil {
		return err
	}
	w.El.AddClass("transition")
	return nil
}

// parseThreshold reads a leading integer the way parseInt does.
func parseThreshold(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
			end++
		}
		n, err := strconv.Atoi(s[:end])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if f, ok := util.ToFloat(v); ok {
		return int(f), true
	}
	return 0, false
}

func (w *BackToTop) render(ctx context.Context) error {
	doc := w.Document()
	templateID, _ := w.Options.Template.(string)
	text := ""
	if templateID != "" {
		text = render.TemplateString(doc, templateID)
	}
	if text == "" {
		text = backToTopTemplate
	}

	t, err := w.Runtime.Renderer.Compile(text)
	if err != nil {
		return err
	}
	data := util.Extend(map[string]any{"threshold": w.Options.Threshold}, w.Options.TemplateData)
	out, err := t.ExecuteContext(ctx, data)
	if err != nil {
		return err
	}
	if html := strings.TrimSpace(out); html != "" {
		if err := w.El.SetInnerHTML(html); err != nil {
			return err
		}
	}
	w.Trigger("render", nil)
	return nil
}

func registerBackToTop(rt *extension.Runtime) {
	rt.Register(extension.Registration{
		Element: "back-to-top",
		Construct: func(ctx context.Context, rt *extension.Runtime, el *dom.Element) error {
			_, err := NewBackToTop(ctx, rt, el, nil)
			return err
		},
	})
}
