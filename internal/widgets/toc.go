package widgets

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"hcext/internal/dom"
	"hcext/internal/extension"
	"hcext/internal/util"
)

const anchorIcon = `<svg class="fill-current" width="18" height="18" viewBox="0 0 24 24" xmlns="http://www.w3.org/2000/svg">` +
	`<path d="M14.4833094,12.7886331 C14.0159137,12.3212374 13.2557698,12.3212374 12.7883741,12.7886331 C11.3861871,14.1908201 9.10109353,14.1908201 7.69873381,12.7886331 L3.45906475,8.54896403 C2.77920863,7.86910791 2.40621583,6.96733813 2.40621583,6.00423022 C2.40621583,5.0411223 2.77919137,4.13935252 3.45906475,3.4594964 C4.8612518,2.05730935 7.14159712,2.05730935 8.54870504,3.4594964 L11.1548201,6.06561151 C11.6222158,6.53300719 12.3823597,6.53300719 12.8497554,6.06561151 C13.3171511,5.59821583 13.3171511,4.83807194 12.8497554,4.37067626 L10.2436403,1.76456115 C7.90661871,-0.572460432 4.10119424,-0.572460432 1.76421583,1.76456115 C0.631122302,2.89765468 0.00789928058,4.39899281 0.00789928058,6.00423022 C0.00789928058,7.60471942 0.631122302,9.11080576 1.76421583,10.2438993 L6.00388489,14.4835683 C7.1747482,15.6497266 8.70915108,16.2351367 10.243554,16.2351367 C11.7779568,16.2351367 13.3123597,15.6497266 14.483223,14.4835683 C14.9506187,14.0161727 14.9506187,13.2560288 14.483223,12.7886331 L14.4833094,12.7886331 Z"></path>` +
	`<path d="M22.2353957,13.7564029 L17.9957266,9.51673381 C15.658705,7.17971223 11.8532806,7.17971223 9.51630216,9.51673381 C9.04890647,9.9841295 9.04890647,10.7442734 9.51630216,11.2116691 C9.98369784,11.6790647 10.7438417,11.6790647 11.2112374,11.2116691 C12.6134245,9.80948201 14.8937698,9.80948201 16.3008777,11.2116691 L20.5405468,15.4513381 C21.2204029,16.1311942 21.5933957,17.032964 21.5933957,17.9960719 C21.5933957,18.9591799 21.2204201,19.8609496 20.5405468,20.5408058 C19.1808345,21.900518 16.8107914,21.900518 15.4509065,20.5408058 L12.8494964,17.9346906 C12.3821007,17.467295 11.6219568,17.467295 11.1545612,17.9346906 C10.6871655,18.4020863 10.6871655,19.1622302 11.1545612,19.6296259 L13.7606763,22.231036 C14.8937698,23.3641295 16.3998561,23.9873525 18.0003453,23.9873525 C19.6008345,23.9873525 21.1069209,23.3641295 22.2400144,22.231036 C23.3731079,21.0979424 23.9963309,19.5918561 23.9963309,17.9913669 C23.9916095,16.3908777 23.3684029,14.8895396 22.2353094,13.756446 L22.2353957,13.7564029 Z"></path>` +
	`</svg>`

// TableOfContentsOptions configure TableOfContents.
type TableOfContentsOptions struct {
	// ParentElement scopes the heading search: an element, a selector or nil
	// for the whole document.
	ParentElement any            `json:"parentElement"`
	Selector      string         `json:"selector"`
	AnchorLinks   bool           `json:"anchorLinks"`
	GenerateIDs   bool           `json:"generateIds"`
	Template      any            `json:"template"`
	TemplateData  map[string]any `json:"templateData"`
}

// TOCItem is one heading in the table of contents tree.
type TOCItem struct {
	Level    int        `json:"level"`
	Name     string     `json:"name"`
	HTMLURL  string     `json:"html_url"`
	Parent   *TOCItem   `json:"-"`
	Children []*TOCItem `json:"children"`
}

// TableOfContents lists the headings of an article as nested links.
type TableOfContents struct {
	*extension.Extension[TableOfContentsOptions]

	// Target is the heading named by the document URL's fragment.
	Target *dom.Element
}

// NewTableOfContents constructs a TableOfContents bound to el.
var NewTableOfContents = extension.Create(extension.Spec[TableOfContentsOptions]{
	Name: "tableOfContents",
	Defaults: TableOfContentsOptions{
		ParentElement: nil,
		Selector:      ".content h2",
		AnchorLinks:   true,
		GenerateIDs:   true,
		Template:      nil,
		TemplateData:  map[string]any{},
	},
	Types: map[string]string{
		"parentElement": "(window|element|string|null)",
		"selector":      "string",
		"anchorLinks":   "boolean",
		"generateIds":   "boolean",
		"template":      "(string|null)",
		"templateData":  "(string|object)",
	},
}, func(e *extension.Extension[TableOfContentsOptions]) *TableOfContents {
	return &TableOfContents{Extension: e}
})

var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

func (w *TableOfContents) Initialize(ctx context.Context, opts TableOfContentsOptions) error {
	var headings []*dom.Element
	for _, h := range w.queryHeadings(opts.Selector) {
		if !opts.GenerateIDs && h.ID() == "" {
			continue
		}
		if util.Contains(headingTags, h.TagName()) {
			headings = append(headings, h)
		}
	}

	var existing []string
	for _, h := range headings {
		if id := h.ID(); id != "" && !util.Contains(existing, id) {
			existing = append(existing, id)
		}
	}

	hash := w.Document().Hash()
	number := 1
	for _, h := range headings {
		switch {
		case h.ID() != "":
			number++
		case opts.GenerateIDs:
			id := "heading-" + strconv.Itoa(number)
			number++
			for util.Contains(existing, id) {
				id = "heading-" + strconv.Itoa(number)
				number++
			}
			h.SetID(id)
		default:
			number++
		}
		if h.ID() != "" && hash == h.ID() {
			w.Target = h
		}
		if err := w.maybeAddAnchorLink(h); err != nil {
			return err
		}
	}

	all, items := StructureItems(headings)
	data := util.Extend(map[string]any{"allItems": all, "items": items}, w.Options.TemplateData)
	template, _ := w.Options.Template.(string)
	if err := w.Render(ctx, template, data); err != nil {
		return err
	}
	w.Trigger("render", nil)
	return nil
}

// queryHeadings matches selector within the parent element option, falling
// back to the whole document.
func (w *TableOfContents) queryHeadings(selector string) []*dom.Element {
	doc := w.Document()
	switch p := w.Options.ParentElement.(type) {
	case *dom.Element:
		if p != nil {
			return p.QuerySelectorAll(selector)
		}
	case string:
		if p == "" {
			break
		}
		if el := doc.QuerySelector(p); el != nil {
			return el.QuerySelectorAll(selector)
		}
	}
	return doc.QuerySelectorAll(selector)
}

func (w *TableOfContents) maybeAddAnchorLink(h *dom.Element) error {
	if !w.Options.AnchorLinks || h.QuerySelector(".link-anchor") != nil {
		return nil
	}
	a := w.Document().CreateElement("a")
	a.SetAttr("class", "link-anchor")
	a.SetAttr("href", "#"+h.ID())
	if err := a.SetInnerHTML(anchorIcon); err != nil {
		return err
	}
	h.AppendChild(a)
	return nil
}

// StructureItems nests headings by level. It returns every item in document
// order and the top-level items.
func StructureItems(headings []*dom.Element) (all, items []*TOCItem) {
	var last *TOCItem
	for i, h := range headings {
		item := &TOCItem{
			Level:    int(h.TagName()[1] - '0'),
			Name:     headingName(h),
			HTMLURL:  "#" + h.ID(),
			Children: []*TOCItem{},
		}
		all = append(all, item)

		if i == 0 {
			items = append(items, item)
			last = item
			continue
		}

		switch {
		case item.Level == last.Level:
			item.Parent = last.Parent
			if item.Parent != nil {
				item.Parent.Children = append(item.Parent.Children, item)
			} else {
				items = append(items, item)
			}
		case item.Level > last.Level:
			item.Parent = last
			last.Children = append(last.Children, item)
		default:
			for {
				last = last.Parent
				if last == nil {
					items = append(items, item)
					break
				}
				if last.Level < item.Level {
					item.Parent = last
					last.Children = append(last.Children, item)
					break
				}
				if last.Level == item.Level {
					item.Parent = last.Parent
					if item.Parent != nil {
						item.Parent.Children = append(item.Parent.Children, item)
					} else {
						items = append(items, item)
					}
					break
				}
			}
		}
		last = item
	}
	return all, items
}

var nameEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// headingName joins the trimmed text of each child of h, skipping empty
// parts and the "#" of anchor links.
func headingName(h *dom.Element) string {
	var parts []string
	for c := h.Node().FirstChild; c != nil; c = c.NextSibling {
		text := strings.TrimSpace(nodeText(c))
		if text == "" || text == "#" {
			continue
		}
		parts = append(parts, nameEscaper.Replace(text))
	}
	return strings.Join(parts, " ")
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func registerTableOfContents(rt *extension.Runtime) {
	rt.Register(extension.Registration{
		Element: "table-of-contents",
		Construct: func(ctx context.Context, rt *extension.Runtime, el *dom.Element) error {
			_, err := NewTableOfContents(ctx, rt, el, nil)
			return err
		},
	})
}
