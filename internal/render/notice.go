package render

import (
	"strings"

	"hcext/internal/tmpl"
)

// friendlyNames maps template ids to the names used in the pattern library.
var friendlyNames = map[string]string{
	"topbar":            "Top Bar",
	"notification":      "Notification",
	"header-search":     "Header Search",
	"category-dropdown": "Category Dropdown",

	"popular-keywords": "Popular Keywords",
	"custom-blocks":    "Custom Blocks",
	"content-blocks":   "Content Blocks",
	"contact-blocks":   "Contact Blocks",
	"call-to-action":   "Call to Action",

	"table-of-contents": "Table of Contents",

	"form-list": "Form List",
	"form-tip":  "Form Tip",

	"breadcrumbs":        "Breadcrumbs",
	"articles":           "Articles",
	"recent-articles":    "Recent Articles",
	"related-articles":   "Related Articles",
	"promoted-articles":  "Promoted Articles",
	"sidebar-navigation": "Sidebar Navigation",
	"social":             "Social links",

	"back-to-top-link": "Category Dropdown",
}

// FriendlyName returns the pattern library name of a template id, or the id.
func FriendlyName(templateID string) string {
	if name, ok := friendlyNames[templateID]; ok {
		return name
	}
	return templateID
}

const noticeTemplate = `<div class="notification-notice template-notice border border-radius my-5 px-5 py-4 font-size-md">` +
	`<h4>Custom micro-template</h4>` +
	`<p>With the theme <a href="https://support.zendesk.com/hc/en-us/articles/4408842911898#topic_pzy_jb1_wmb" target="_blank">Developer license</a> ` +
	`you can copy-and-paste your desired <b>{{name}}</b> template from our Pattern Library into the bottom of your theme's ` +
	`<a href="https://support.zendesk.com/hc/en-us/articles/4408839332250#topic_h5c_k4w_n3" target="_blank">footer.hbs template</a> ` +
	`and have it appear here automatically.</p>` +
	`</div>`

// Notice returns the markup shown in place of a missing template. The name is
// escaped, so the result is safe to compile as template source.
func Notice(templateID string) string {
	return strings.Replace(noticeTemplate, "{{name}}", tmpl.Escape(FriendlyName(templateID)), 1)
}
