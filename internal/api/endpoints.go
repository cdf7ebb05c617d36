package api

import "strings"

// Endpoint describes how to list one object type from the Help Center API.
type Endpoint struct {
	// Type is the object type and the key of the response array.
	Type string
	// Product is the path segment after /api/v2/, e.g. "help_center/en-us".
	Product string
	// Path is the file name of the listing, e.g. "articles.json".
	Path string
	// Sideloads lists the related types the endpoint can embed via include.
	Sideloads []string
	// Properties are kept on each object when the caller names none.
	Properties []string
}

// URL returns the listing path of the endpoint.
func (e Endpoint) URL() string {
	return "/api/v2/" + e.Product + "/" + e.Path
}

// DefaultEndpoints returns the Help Center and community listings in the
// order requests are planned.
func DefaultEndpoints(locale string) []Endpoint {
	hc := "help_center/" + strings.ToLower(locale)
	return []Endpoint{
		{
			Type:       "articles",
			Product:    hc,
			Path:       "articles.json",
			Sideloads:  []string{"categories", "sections", "users", "translations"},
			Properties: []string{"id", "title", "name", "html_url", "position", "category_id", "parent_section_id", "section_id", "promoted", "sorting"},
		},
		{
			Type:       "sections",
			Product:    hc,
			Path:       "sections.json",
			Sideloads:  []string{"categories", "translations"},
			Properties: []string{"id", "name", "html_url", "position", "category_id", "parent_section_id", "sorting"},
		},
		{
			Type:       "categories",
			Product:    hc,
			Path:       "categories.json",
			Sideloads:  []string{"translations"},
			Properties: []string{"id", "name", "html_url", "position", "sorting"},
		},
		{
			Type:       "posts",
			Product:    "community",
			Path:       "posts.json",
			Sideloads:  []string{"topics", "users"},
			Properties: []string{"id", "title", "html_url", "position", "featured", "pinned", "topic_id"},
		},
		{
			Type:       "topics",
			Product:    "community",
			Path:       "topics.json",
			Sideloads:  []string{},
			Properties: []string{"id", "name", "html_url", "position"},
		},
	}
}

func endpointTypes(eps []Endpoint) []string {
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Type)
	}
	return out
}

// supportedTypes returns every type a response may carry: sideloads first,
// then endpoint types, without duplicates.
func supportedTypes(eps []Endpoint) []string {
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, ep := range eps {
		for _, s := range ep.Sideloads {
			add(s)
		}
	}
	for _, ep := range eps {
		add(ep.Type)
	}
	return out
}
