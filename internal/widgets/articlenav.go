package widgets

import (
	"context"
	"errors"
	"slices"

	"hcext/internal/api"
	"hcext/internal/extension"
	"hcext/internal/util"
)

// ErrNoArticleID is returned when article navigation runs outside an
// article page without an articleId option.
var ErrNoArticleID = errors.New("an article ID must be specified")

// ArticleNavigationOptions configure ArticleNavigation.
type ArticleNavigationOptions struct {
	// Collection holds preloaded categories, sections and articles. When it
	// has articles no API call is made.
	Collection    map[string]any `json:"collection"`
	Sideloading   any            `json:"sideloading"`
	ArticleID     any            `json:"articleId"`
	NextTitle     string         `json:"nextTitle"`
	PreviousTitle string         `json:"previousTitle"`
	Labels        []string       `json:"labels"`
	Properties    []string       `json:"properties"`
	// Filter maps object types to a func(api.Object) bool or the name of a
	// registered filter.
	Filter map[string]any `json:"filter"`
	// Sort maps object types to a func(a, b api.Object) int or the name of
	// an api comparator such as "sortByPosition".
	Sort         map[string]any `json:"sort"`
	SortOrder    string         `json:"sortOrder"`
	Template     any            `json:"template"`
	TemplateData map[string]any `json:"templateData"`
}

// Filters names the object filters article navigation options may refer to.
var Filters = map[string]func(api.Object) bool{
	"isNotDraft": func(o api.Object) bool { return o["draft"] != true },
	"isPromoted": func(o api.Object) bool { return o["promoted"] == true },
}

// ArticleNavigation renders links to the previous and next article in the
// order articles appear in the Help Center.
type ArticleNavigation struct {
	*extension.Extension[ArticleNavigationOptions]
}

// NewArticleNavigation constructs an ArticleNavigation bound to el.
var NewArticleNavigation = extension.Create(extension.Spec[ArticleNavigationOptions]{
	Name: "articleNavigation",
	Defaults: ArticleNavigationOptions{
		Collection:    map[string]any{},
		Sideloading:   false,
		ArticleID:     nil,
		NextTitle:     "Next article",
		PreviousTitle: "Previous article",
		Labels:        []string{},
		Properties: []string{
			"id", "title", "description", "name", "html_url", "position",
			"promoted", "pinned", "draft", "section_id", "sorting",
			"category_id", "parent_section_id", "topic_id", "created_at",
		},
		Filter: map[string]any{
			"categories": nil,
			"sections":   nil,
			"articles":   "isNotDraft",
		},
		Sort: map[string]any{
			"categories": "sortByPosition",
			"sections":   "sortByPosition",
			"articles":   nil,
		},
		SortOrder:    "asc",
		Template:     nil,
		TemplateData: map[string]any{},
	},
	Types: map[string]string{
		"collection":    "object",
		"sideloading":   "(string|boolean)",
		"articleId":     "(string|number|null)",
		"nextTitle":     "string",
		"previousTitle": "string",
		"labels":        "(string|array)",
		"properties":    "(string|array)",
		"sort":          "(string|object)",
		"sortOrder":     "string",
		"filter":        "(string|object|null)",
		"template":      "(string|null)",
		"templateData":  "(string|object)",
	},
}, func(e *extension.Extension[ArticleNavigationOptions]) *ArticleNavigation {
	return &ArticleNavigation{Extension: e}
})

func (w *ArticleNavigation) Initialize(ctx context.Context, opts ArticleNavigationOptions) error {
	if arts, ok := opts.Collection["articles"]; ok && arts != nil {
		return w.render(ctx, collectionFrom(opts.Collection))
	}

	if opts.ArticleID == nil || opts.ArticleID == "" {
		id, ok := util.PageID(w.Document().URL())
		if !ok || !util.IsArticlePage(w.Document().URL()) {
			w.Logger().Error("an article ID must be specified")
			return ErrNoArticleID
		}
		w.Options.ArticleID = float64(id)
	}
	if w.Runtime.API == nil {
		return errors.New("article navigation needs an API client")
	}

	collection, err := w.objects(ctx)
	if err != nil {
		return err
	}
	return w.render(ctx, collection)
}

func (w *ArticleNavigation) sideloading() bool {
	switch v := w.Options.Sideloading.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// objects loads categories, sections and articles.
func (w *ArticleNavigation) objects(ctx context.Context) (api.Response, error) {
	client := w.Runtime.API
	props := w.Options.Properties
	sideload := w.sideloading()

	var out api.Response
	var err error
	switch {
	case len(w.Options.Labels) == 0 && !sideload:
		out, err = client.Get(ctx, []string{"articles"}, props)
	case len(w.Options.Labels) == 0:
		out, err = client.Get(ctx, []string{"categories", "sections", "articles"}, props)
	default:
		var include []string
		if sideload {
			include = []string{"categories", "sections"}
		}
		out, err = client.Request(ctx, client.ArticlesURL(include, w.Options.Labels), props, true)
	}
	if err != nil {
		return nil, err
	}
	if !sideload {
		more, err := client.Get(ctx, []string{"categories", "sections"}, props)
		if err != nil {
			return nil, err
		}
		out.Merge(more)
	}
	return out, nil
}

func collectionFrom(m map[string]any) api.Response {
	out := api.Response{}
	for typ, v := range m {
		switch objs := v.(type) {
		case []api.Object:
			out[typ] = objs
		case []any:
			for _, o := range objs {
				if obj, ok := o.(map[string]any); ok {
					out[typ] = append(out[typ], obj)
				}
			}
		}
	}
	return out
}

func (w *ArticleNavigation) filter(objs []api.Object, typ string) []api.Object {
	var keep func(api.Object) bool
	switch f := w.Options.Filter[typ].(type) {
	case func(api.Object) bool:
		keep = f
	case string:
		keep = Filters[f]
	}
	if keep == nil {
		return slices.Clone(objs)
	}
	out := make([]api.Object, 0, len(objs))
	for _, o := range objs {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func (w *ArticleNavigation) sort(objs []api.Object, typ string) {
	var cmp func(a, b api.Object) int
	switch s := w.Options.Sort[typ].(type) {
	case func(a, b api.Object) int:
		cmp = s
	case string:
		cmp = api.Comparators[s]
	}
	if cmp != nil {
		api.SortBy(objs, cmp)
	}
}

// SortArticles orders articles by category, then top-level section, then
// subsections depth first. Within a section the section's sorting applies
// and promoted articles come first.
func (w *ArticleNavigation) SortArticles(collection api.Response) []api.Object {
	categories := w.filter(collection["categories"], "categories")
	sections := w.filter(collection["sections"], "sections")
	articles := w.filter(collection["articles"], "articles")
	slices.Reverse(categories)
	slices.Reverse(sections)
	w.sort(categories, "categories")
	w.sort(sections, "sections")

	var sorted []api.Object
	var addSection func(section api.Object)
	addSection = func(section api.Object) {
		var inSection []api.Object
		for _, a := range articles {
			if sameID(a["section_id"], section["id"]) {
				inSection = append(inSection, a)
			}
		}
		switch section["sorting"] {
		case "manual":
			api.SortByPosition(inSection)
		case "title":
			api.SortByName(inSection)
		case "creation_asc":
			api.SortByDate(inSection)
		case "creation_desc":
			api.SortByDate(inSection)
			slices.Reverse(inSection)
		}
		api.SortByPromoted(inSection)
		sorted = append(sorted, inSection...)

		for _, sub := range sections {
			if sameID(sub["parent_section_id"], section["id"]) {
				addSection(sub)
			}
		}
	}

	for _, category := range categories {
		for _, section := range sections {
			if sameID(section["category_id"], category["id"]) && section["parent_section_id"] == nil {
				addSection(section)
			}
		}
	}

	if w.Options.SortOrder == "desc" {
		slices.Reverse(sorted)
	}
	return sorted
}

func sameID(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	fa, oka := util.ToFloat(a)
	fb, okb := util.ToFloat(b)
	if oka && okb {
		return fa == fb
	}
	return a == b
}

func (w *ArticleNavigation) render(ctx context.Context, collection api.Response) error {
	articles := w.SortArticles(collection)

	index := -1
	for i, a := range articles {
		if sameID(a["id"], w.articleID()) {
			index = i
			break
		}
	}

	data := map[string]any{
		"collection":      collection,
		"nextTitle":       w.Options.NextTitle,
		"previousTitle":   w.Options.PreviousTitle,
		"currentArticle":  nil,
		"previousArticle": nil,
		"nextArticle":     nil,
	}
	if index >= 0 {
		data["currentArticle"] = articles[index]
		if index > 0 {
			data["previousArticle"] = articles[index-1]
		}
		if index+1 < len(articles) {
			data["nextArticle"] = articles[index+1]
		}
	}
	data = util.Extend(data, w.Options.TemplateData)

	template, _ := w.Options.Template.(string)
	if err := w.Render(ctx, template, data); err != nil {
		return err
	}
	w.Trigger("render", map[string]any{"articles": articles})
	return nil
}

// articleID returns the articleId option as a number when it is numeric.
func (w *ArticleNavigation) articleID() any {
	if s, ok := w.Options.ArticleID.(string); ok {
		return util.CoerceDataValue(s)
	}
	return w.Options.ArticleID
}
