// Package widgets holds the theme widgets built on the extension framework:
// article navigation, table of contents, back to top and tabs.
package widgets

import (
	"context"

	"hcext/internal/dom"
	"hcext/internal/extension"
)

// Settings are the theme-wide values widgets read at boot.
type Settings struct {
	// Sideloading makes article navigation fetch categories and sections
	// with the articles request.
	Sideloading bool
}

// Register adds every widget to rt's discovery list.
func Register(rt *extension.Runtime, s Settings) {
	rt.Register(extension.Registration{
		Element: "article-navigation",
		Construct: func(ctx context.Context, rt *extension.Runtime, el *dom.Element) error {
			_, err := NewArticleNavigation(ctx, rt, el, extension.Options{"sideloading": s.Sideloading})
			return err
		},
	})
	registerTableOfContents(rt)
	registerBackToTop(rt)
	registerTabs(rt)
}
