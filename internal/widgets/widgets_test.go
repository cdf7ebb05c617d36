package widgets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hcext/internal/api"
	"hcext/internal/dom"
	"hcext/internal/extension"
	"hcext/internal/helpcentertest"
)

const navTemplate = `<script type="text/template" id="tmpl-nav">
<% if (previousArticle) { %><a class="prev" href="<%= previousArticle.html_url %>"><%- previousTitle %></a><% } %>
<% if (nextArticle) { %><a class="next" href="<%= nextArticle.html_url %>"><%- nextTitle %></a><% } %>
</script>`

func newRuntime(t *testing.T, url, body string, opts ...extension.RuntimeOption) *extension.Runtime {
	t.Helper()
	doc, err := dom.ParseString("<!doctype html><html><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	doc.SetURL(url)
	rt := extension.NewRuntime(doc, opts...)
	t.Cleanup(rt.Close)
	return rt
}

func withServer(t *testing.T) (*helpcentertest.Server, extension.RuntimeOption) {
	t.Helper()
	srv := helpcentertest.Start(t, nil)
	c, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return srv, extension.WithAPI(c)
}

func articleIDs(objs []api.Object) []float64 {
	out := make([]float64, 0, len(objs))
	for _, o := range objs {
		id, _ := o["id"].(float64)
		out = append(out, id)
	}
	return out
}

func equalIDs(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestArticleNavigationOrder(t *testing.T) {
	tests := []struct {
		name      string
		attrs     string
		settings  Settings
		want      []float64
		wantPrev  string
		wantNext  string
		wantTotal int
	}{
		{
			name:      "separate requests",
			attrs:     `data-article-id="1001"`,
			want:      []float64{2102, 2101, 1002, 1001, 1102, 1101},
			wantPrev:  "/hc/en-us/articles/1002-Your-first-steps",
			wantNext:  "/hc/en-us/articles/1102-Access-levels",
			wantTotal: 2,
		},
		{
			name:      "sideloading",
			attrs:     `data-article-id="1001"`,
			settings:  Settings{Sideloading: true},
			want:      []float64{2102, 2101, 1002, 1001, 1102, 1101},
			wantPrev:  "/hc/en-us/articles/1002-Your-first-steps",
			wantNext:  "/hc/en-us/articles/1102-Access-levels",
			wantTotal: 1,
		},
		{
			name:      "labels",
			attrs:     `data-article-id="2101" data-labels='["billing"]'`,
			want:      []float64{2102, 2101},
			wantPrev:  "/hc/en-us/articles/2102-Refunds",
			wantTotal: 2,
		},
		{
			name:      "descending",
			attrs:     `data-article-id="1001" data-sort-order="desc"`,
			want:      []float64{1101, 1102, 1001, 1002, 2101, 2102},
			wantPrev:  "/hc/en-us/articles/1102-Access-levels",
			wantNext:  "/hc/en-us/articles/1002-Your-first-steps",
			wantTotal: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, withAPI := withServer(t)
			rt := newRuntime(t, "https://example.com/hc/en-us",
				`<nav data-element="article-navigation" data-template="nav" `+tt.attrs+`></nav>`+navTemplate, withAPI)
			Register(rt, tt.settings)

			var got []api.Object
			rt.Doc.Subscribe("articleNavigation:render", func(ev *dom.Event) {
				got, _ = ev.Detail["articles"].([]api.Object)
			})
			if err := rt.Boot(context.Background()); err != nil {
				t.Fatalf("Boot: %v", err)
			}

			if ids := articleIDs(got); !equalIDs(ids, tt.want) {
				t.Fatalf("articles = %v, want %v", ids, tt.want)
			}
			nav := rt.Doc.QuerySelector("nav")
			if got := attrOf(nav.QuerySelector("a.prev"), "href"); got != tt.wantPrev {
				t.Fatalf("prev href = %q, want %q", got, tt.wantPrev)
			}
			if got := attrOf(nav.QuerySelector("a.next"), "href"); got != tt.wantNext {
				t.Fatalf("next href = %q, want %q", got, tt.wantNext)
			}
			if got := srv.TotalHits(); got != tt.wantTotal {
				t.Fatalf("TotalHits = %d, want %d", got, tt.wantTotal)
			}
		})
	}
}

func attrOf(el *dom.Element, name string) string {
	if el == nil {
		return ""
	}
	v, _ := el.Attr(name)
	return v
}

func TestArticleNavigationUsesPageURL(t *testing.T) {
	_, withAPI := withServer(t)
	rt := newRuntime(t, "https://example.com/hc/en-us/articles/2102-Refunds",
		`<nav id="n" data-template="nav"></nav>`+navTemplate, withAPI)

	w, err := NewArticleNavigation(context.Background(), rt, rt.Doc.GetElementByID("n"), nil)
	if err != nil {
		t.Fatalf("NewArticleNavigation: %v", err)
	}
	if got := w.Options.ArticleID; got != float64(2102) {
		t.Fatalf("ArticleID = %v, want 2102", got)
	}
	if rt.Doc.QuerySelector("a.prev") != nil {
		t.Fatal("first article should have no previous link")
	}
	if got := attrOf(rt.Doc.QuerySelector("a.next"), "href"); got != "/hc/en-us/articles/2101-Reading-an-invoice" {
		t.Fatalf("next href = %q", got)
	}
}

func TestArticleNavigationNeedsArticleID(t *testing.T) {
	_, withAPI := withServer(t)
	rt := newRuntime(t, "https://example.com/hc/en-us", `<nav id="n"></nav>`, withAPI)
	_, err := NewArticleNavigation(context.Background(), rt, rt.Doc.GetElementByID("n"), nil)
	if !errors.Is(err, ErrNoArticleID) {
		t.Fatalf("err = %v, want ErrNoArticleID", err)
	}
}

func TestArticleNavigationPreloadedCollection(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us", `<nav id="n" data-template="nav"></nav>`+navTemplate)
	collection := map[string]any{
		"categories": []any{map[string]any{"id": 1.0, "position": 0.0}},
		"sections": []any{
			map[string]any{"id": 10.0, "category_id": 1.0, "position": 1.0, "sorting": "manual"},
			map[string]any{"id": 20.0, "category_id": 1.0, "position": 0.0, "sorting": "title"},
		},
		"articles": []any{
			map[string]any{"id": 101.0, "section_id": 10.0, "position": 1.0, "html_url": "/a/101"},
			map[string]any{"id": 102.0, "section_id": 10.0, "position": 0.0, "html_url": "/a/102"},
			map[string]any{"id": 201.0, "section_id": 20.0, "title": "Beta", "html_url": "/a/201"},
			map[string]any{"id": 202.0, "section_id": 20.0, "title": "Alpha", "html_url": "/a/202"},
			map[string]any{"id": 203.0, "section_id": 20.0, "title": "Gamma", "draft": true, "html_url": "/a/203"},
		},
	}

	w, err := NewArticleNavigation(context.Background(), rt, rt.Doc.GetElementByID("n"),
		map[string]any{"collection": collection, "articleId": "102"})
	if err != nil {
		t.Fatalf("NewArticleNavigation: %v", err)
	}
	got := articleIDs(w.SortArticles(collectionFrom(collection)))
	if want := []float64{202, 201, 102, 101}; !equalIDs(got, want) {
		t.Fatalf("SortArticles = %v, want %v", got, want)
	}
	if got := attrOf(rt.Doc.QuerySelector("a.prev"), "href"); got != "/a/201" {
		t.Fatalf("prev href = %q, want /a/201", got)
	}
	if got := attrOf(rt.Doc.QuerySelector("a.next"), "href"); got != "/a/101" {
		t.Fatalf("next href = %q, want /a/101", got)
	}
}

func TestBackToTopThresholdFromDataAttribute(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us", `<div data-element="back-to-top" data-threshold="120"></div>`)
	Register(rt, Settings{})

	rendered := 0
	rt.Doc.Subscribe("backToTop:render", func(*dom.Event) { rendered++ })
	if err := rt.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	el := rt.Doc.QuerySelector(`[data-element="back-to-top"]`)
	w, ok := extension.InstanceOf[*BackToTop](rt.Doc, el, "backToTop")
	if !ok {
		t.Fatal("no backToTop instance bound to element")
	}
	if w.Threshold == nil || *w.Threshold != 120 {
		t.Fatalf("Threshold = %v, want 120", w.Threshold)
	}
	for _, c := range []string{"opacity-0", "z-fixed", "transition"} {
		if !el.HasClass(c) {
			t.Fatalf("class %q missing: %v", c, el.ClassList())
		}
	}
	if el.QuerySelector("a svg") == nil {
		t.Fatalf("default link not rendered: %s", el.InnerHTML())
	}
	if rendered != 1 {
		t.Fatalf("render events = %d, want 1", rendered)
	}
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{"120", 120, true},
		{" 80px", 80, true},
		{"abc", 0, false},
		{float64(42), 42, true},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseThreshold(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("parseThreshold(%v) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTableOfContentsGeneratesIDs(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us/articles/1",
		`<div class="content"><h2>One</h2><h2 id="heading-1">Two</h2><h2>Fish &amp; chips</h2></div>`+
			`<div id="toc" data-template="toc"></div>`+
			`<script type="text/template" id="tmpl-toc"><ul><% items.forEach(function(item) { %><li><a href="<%= item.html_url %>"><%= item.name %></a></li><% }); %></ul></script>`)

	if _, err := NewTableOfContents(context.Background(), rt, rt.Doc.GetElementByID("toc"), nil); err != nil {
		t.Fatalf("NewTableOfContents: %v", err)
	}

	var ids []string
	for _, h := range rt.Doc.QuerySelectorAll(".content h2") {
		ids = append(ids, h.ID())
		a := h.QuerySelector("a.link-anchor")
		if a == nil {
			t.Fatalf("heading %q has no anchor link", h.ID())
		}
		if got := attrOf(a, "href"); got != "#"+h.ID() {
			t.Fatalf("anchor href = %q, want #%s", got, h.ID())
		}
	}
	if got, want := strings.Join(ids, ","), "heading-2,heading-1,heading-4"; got != want {
		t.Fatalf("ids = %s, want %s", got, want)
	}

	links := rt.Doc.QuerySelectorAll("#toc li a")
	if len(links) != 3 {
		t.Fatalf("toc links = %d, want 3", len(links))
	}
	if got := links[2].InnerHTML(); got != "Fish &amp; chips" {
		t.Fatalf("third name = %q", got)
	}
}

func TestTableOfContentsSkipsHeadingsWithoutIDs(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us/articles/1",
		`<div class="content"><h2>One</h2><h2 id="keep">Two</h2><p class="h2">x</p></div><div id="toc"></div>`)
	w, err := NewTableOfContents(context.Background(), rt, rt.Doc.GetElementByID("toc"),
		map[string]any{"generateIds": false, "anchorLinks": false, "selector": ".content h2, .content .h2"})
	if err != nil {
		t.Fatalf("NewTableOfContents: %v", err)
	}
	if rt.Doc.QuerySelector(".link-anchor") != nil {
		t.Fatal("anchor links added with anchorLinks false")
	}
	if h := rt.Doc.QuerySelector(".content h2"); h.ID() != "" {
		t.Fatalf("id generated with generateIds false: %q", h.ID())
	}
	if w.Target != nil {
		t.Fatal("unexpected target")
	}
}

func TestTableOfContentsTarget(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us/articles/1#heading-1",
		`<div class="content"><h2>One</h2></div><div id="toc"></div>`)
	w, err := NewTableOfContents(context.Background(), rt, rt.Doc.GetElementByID("toc"), nil)
	if err != nil {
		t.Fatalf("NewTableOfContents: %v", err)
	}
	if w.Target == nil || w.Target.ID() != "heading-1" {
		t.Fatalf("Target = %v, want heading-1", w.Target)
	}
}

func TestStructureItems(t *testing.T) {
	doc, err := dom.ParseString(`<h2 id="a">A</h2><h3 id="b">B <a class="link-anchor" href="#b">#</a></h3><h4 id="c">C</h4><h2 id="d">D</h2><h3 id="e">E</h3>`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	all, items := StructureItems(doc.QuerySelectorAll("h2, h3, h4"))
	if len(all) != 5 {
		t.Fatalf("all = %d, want 5", len(all))
	}
	if len(items) != 2 || items[0].Name != "A" || items[1].Name != "D" {
		t.Fatalf("top-level items = %+v", items)
	}
	b := items[0].Children[0]
	if b.Name != "B" || b.Level != 3 || b.HTMLURL != "#b" {
		t.Fatalf("B = %+v", b)
	}
	if len(b.Children) != 1 || b.Children[0].Name != "C" || b.Children[0].Parent != b {
		t.Fatalf("B children = %+v", b.Children)
	}
	if e := items[1].Children; len(e) != 1 || e[0].Name != "E" || e[0].Parent != items[1] {
		t.Fatalf("D children = %+v", e)
	}
}

func TestTabsRenderNested(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us/articles/1",
		`<div data-element="tabs" id="outer" class="wide">`+
			`<div title="One"><p>first</p></div>`+
			`<div data-title="Two"><div class="js-tabs"><section><h4 class="tab-heading" id="inner-a">Inner</h4>x</section></div></div>`+
			`</div>`)
	Register(rt, Settings{})

	var related []*dom.Element
	rt.Doc.Subscribe("tabs:render", func(ev *dom.Event) { related = append(related, ev.RelatedTarget()) })
	if err := rt.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if len(related) != 2 {
		t.Fatalf("tabs:render events = %d, want 2", len(related))
	}
	outer := rt.Doc.GetElementByID("outer")
	if outer == nil || !outer.HasClass("wide") || !outer.HasClass("my-6") {
		t.Fatalf("outer wrapper missing id or classes: %v", outer)
	}
	if !outer.Is(related[0]) && !outer.Is(related[1]) {
		t.Fatal("render event should point at the new element")
	}

	tabs := outer.QuerySelectorAll("ul#hc-0 a.nav-link")
	if len(tabs) != 2 {
		t.Fatalf("outer tabs = %d, want 2", len(tabs))
	}
	if tabs[0].Text() != "One" || tabs[1].Text() != "Two" {
		t.Fatalf("titles = %q, %q", tabs[0].Text(), tabs[1].Text())
	}
	if !tabs[0].HasClass("is-active") || !tabs[0].HasClass("text-primary") || tabs[1].HasClass("is-active") {
		t.Fatalf("active classes: %v / %v", tabs[0].ClassList(), tabs[1].ClassList())
	}
	if got := attrOf(tabs[0], "aria-selected"); got != "true" {
		t.Fatalf("aria-selected = %q", got)
	}
	if got := attrOf(tabs[0], "data-active-class"); got != "text-primary" {
		t.Fatalf("data-active-class = %q", got)
	}
	if panel := rt.Doc.GetElementByID("hc-0-0"); panel == nil || !panel.HasClass("is-active") {
		t.Fatal("first panel not active")
	}

	inner := rt.Doc.QuerySelector("ul#hc-1")
	if inner == nil {
		t.Fatalf("nested tabs not rendered: %s", outer.OuterHTML())
	}
	if a := inner.QuerySelector("a.nav-link"); a == nil || a.Text() != "Inner" || attrOf(a, "href") != "#inner-a" {
		t.Fatalf("inner tab link = %v", a)
	}
	if rt.Doc.QuerySelector(`[data-element="tabs"], .js-tabs`) != nil {
		t.Fatal("discovery markers left behind")
	}
	if got := rt.Instances(); got != 2 {
		t.Fatalf("Instances = %d, want 2", got)
	}
}

func TestTabsInitialFromHash(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us/articles/1#second",
		`<div id="t"><div>a</div><div id="second">b</div></div>`)
	w, err := NewTabs(context.Background(), rt, rt.Doc.GetElementByID("t"), nil)
	if err != nil {
		t.Fatalf("NewTabs: %v", err)
	}
	if w.Options.Initial != 1 {
		t.Fatalf("Initial = %d, want 1", w.Options.Initial)
	}
	if panel := rt.Doc.GetElementByID("second"); panel == nil || !panel.HasClass("is-active") {
		t.Fatal("hash panel not active")
	}
	if !w.El.Is(rt.Doc.GetElementByID("t")) {
		t.Fatal("El should point at the rendered element")
	}
}

func TestTabsWithoutChildren(t *testing.T) {
	rt := newRuntime(t, "https://example.com/hc/en-us", `<div id="t"></div>`)
	if _, err := NewTabs(context.Background(), rt, rt.Doc.GetElementByID("t"), nil); err != nil {
		t.Fatalf("NewTabs: %v", err)
	}
	if rt.Doc.QuerySelector("ul") != nil {
		t.Fatal("tabs rendered for empty element")
	}
}
