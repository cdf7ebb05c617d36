package widgets

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"hcext/internal/dom"
	"hcext/internal/extension"
	"hcext/internal/render"
	"hcext/internal/util"
)

const tabsActiveClass = "is-active"

// TabsOptions configure Tabs.
type TabsOptions struct {
	Initial      int            `json:"initial"`
	ActiveClass  string         `json:"activeClass"`
	Template     any            `json:"template"`
	TemplateData map[string]any `json:"templateData"`
}

// Tab is one pane of a Tabs widget.
type Tab struct {
	InnerHTML string `json:"innerHTML"`
	Title     string `json:"title"`
	ID        string `json:"id"`
}

// Tabs turns the children of an element into a tab list. The element is
// replaced by the rendered markup.
type Tabs struct {
	*extension.Extension[TabsOptions]
}

// NewTabs constructs Tabs bound to el.
var NewTabs = extension.Create(extension.Spec[TabsOptions]{
	Name: "tabs",
	Defaults: TabsOptions{
		Initial:      0,
		ActiveClass:  "text-primary",
		Template:     "tabs",
		TemplateData: map[string]any{},
	},
	Types: map[string]string{
		"initial":      "number",
		"activeClass":  "string",
		"template":     "(string|null)",
		"templateData": "object",
	},
}, func(e *extension.Extension[TabsOptions]) *Tabs {
	return &Tabs{Extension: e}
})

func (w *Tabs) Initialize(ctx context.Context, opts TabsOptions) error {
	if len(w.El.Children()) == 0 {
		return nil
	}
	return w.render(ctx, opts)
}

func tabsTemplate(activeClass, dataAttributes string) string {
	return `<% if (children.length) { %>` +
		`<div class="my-6">` +
		`<ul class="nav nav-tabs overflow-hidden sm:overflow-visible" id="<%= id %>" role="tablist">` +
		`<% children.forEach(function(child, index) { %>` +
		`<li class="nav-item bg-white sm:bg-transparent" role="presentation">` +
		`<a class="nav-link text-inherit font-medium hover:text-primary<% if (initial === index ) { %> ` + activeClass + `<% } %>" role="tab" ` + dataAttributes + ` aria-selected="<%= initial === index %>" id="tab-<%= child.id %>"  href="#<%= child.id %>">` +
		`<%= child.title %>` +
		`</a>` +
		`</li>` +
		`<% }); %>` +
		`</ul>` +
		`<div class="tabs">` +
		`<% children.forEach(function(child, index) { %>` +
		`<div class="tab list-unstyled p-5 mb-4 bg-white border border-radius-bottom<% if (initial === index ) { %> ` + tabsActiveClass + `<% } %>" id="<%= child.id %>" role="tab-panel" aria-labelledby="tab-<%= child.id %>">` +
		`<%= child.innerHTML %>` +
		`</div>` +
		`<% }); %>` +
		`</div>` +
		`</div>` +
		`<% } %>`
}

// Items reads the tab panes from the element's children.
func (w *Tabs) Items() []Tab {
	children := w.El.Children()
	items := make([]Tab, 0, len(children))
	for i, el := range children {
		title := fmt.Sprintf("Tab %d", i)
		id := el.ID()
		if id == "" {
			id = fmt.Sprintf("%s-%d", w.ID, i)
		}
		if v, ok := el.Attr("title"); ok {
			title = v
		} else if v, ok := el.Attr("data-title"); ok {
			title = v
		} else if heading := el.QuerySelector(".tab-heading"); heading != nil {
			title = heading.Text()
			if heading.ID() != "" {
				id = heading.ID()
			}
		}
		items = append(items, Tab{InnerHTML: el.InnerHTML(), Title: title, ID: id})
	}
	return items
}

func (w *Tabs) render(ctx context.Context, opts TabsOptions) error {
	doc := w.Document()

	activeClass := tabsActiveClass
	dataAttributes := `data-toggle="tab"`
	if opts.ActiveClass != "" {
		activeClass += " " + opts.ActiveClass
		dataAttributes += ` data-active-class="` + opts.ActiveClass + `"`
	}

	templateID, _ := opts.Template.(string)
	text := ""
	if templateID != "" {
		text = render.TemplateString(doc, templateID)
	}
	if text == "" {
		text = tabsTemplate(activeClass, dataAttributes)
	}
	t, err := w.Runtime.Renderer.Compile(text)
	if err != nil {
		return err
	}

	items := w.Items()
	if i := slices.IndexFunc(items, func(tab Tab) bool { return tab.ID == doc.Hash() }); i >= 0 {
		opts.Initial = i
		w.Options.Initial = i
	}

	data := util.Extend(map[string]any{
		"id":             w.ID,
		"children":       items,
		"items":          items,
		"initial":        opts.Initial,
		"dataAttributes": dataAttributes,
		"activeClass":    activeClass,
		"options":        w.Raw,
	}, opts.TemplateData)

	out, err := t.ExecuteContext(ctx, data)
	if err != nil {
		return fmt.Errorf("render tabs: %w", err)
	}
	html := strings.TrimSpace(out)
	if html == "" {
		return nil
	}
	el, err := w.El.InsertAfterHTML(html)
	if err != nil {
		return err
	}
	if el == nil {
		return nil
	}
	el.AddClass(w.El.ClassList()...)
	if id := w.El.ID(); id != "" {
		el.SetID(id)
	}

	w.Trigger("render", map[string]any{"relatedTarget": el})

	old := w.El
	old.Remove()
	w.El = el
	doc.Data(el)[w.Name] = w
	doc.Data(old)[w.Name] = w

	doc.Trigger(nil, dom.RenderEvent, map[string]any{"relatedTarget": el})
	return nil
}

func registerTabs(rt *extension.Runtime) {
	rt.Register(extension.Registration{
		Element:  "tabs",
		Selector: ".js-tabs",
		Nested:   true,
		Construct: func(ctx context.Context, rt *extension.Runtime, el *dom.Element) error {
			_, err := NewTabs(ctx, rt, el, nil)
			return err
		},
	})
}
