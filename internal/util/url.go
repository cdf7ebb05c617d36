package util

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// GetURLParameter returns the decoded value of the named query parameter in
// rawURL, or "" when it is absent.
func GetURLParameter(name, rawURL string) string {
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	query, _, _ = strings.Cut(query, "#")
	for _, pair := range strings.Split(query, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k != name {
			continue
		}
		decoded, err := url.QueryUnescape(v)
		if err != nil {
			return v
		}
		return decoded
	}
	return ""
}

// SetURLParameter sets the named query parameter on rawURL, keeping the order
// of the other parameters. An empty value removes the parameter.
func SetURLParameter(rawURL, name, value string) string {
	base, query, _ := strings.Cut(rawURL, "?")
	name = encodeURIComponent(name)
	newParam := name + "=" + encodeURIComponent(value)

	var params []string
	replaced := false
	if query != "" {
		for _, pair := range strings.Split(query, "&") {
			if pair == "" {
				continue
			}
			k, _, _ := strings.Cut(pair, "=")
			if k == name {
				if value != "" && !replaced {
					params = append(params, newParam)
					replaced = true
				}
				continue
			}
			params = append(params, pair)
		}
	}
	if value != "" && !replaced {
		params = append(params, newParam)
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + strings.Join(params, "&")
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var (
	homePageRe       = regexp.MustCompile(`^http(s)?://[^/?#]+(/hc(/[a-z-0-9_]+)?(/)?(signin)?([?]([^?/]+)?)?([#]([^#/]+)?)?)?$`)
	categoryPageRe   = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?categories/`)
	sectionPageRe    = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?sections/`)
	articlePageRe    = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?articles/`)
	searchPageRe     = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?search\?*.*`)
	newRequestPageRe = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?requests/new(/)?([?#].*)?$`)
	topicListPageRe  = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?community/topics(/)?([?#].*)?$`)
	postListPageRe   = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?community/posts(/)?([?#].*)?$`)
	topicPageRe      = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?community/topics/[^/?#]+(/)?([?#].*)?$`)
	postPageRe       = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?community/posts/[^/?#]+(/)?([?#].*)?$`)
	newPostPageRe    = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?community/posts/new(/)?([?#].*)?$`)
	profilePageRe    = regexp.MustCompile(`(?i)/hc/([a-z-0-9_]+/)?profiles/[^/?#]+(/)?([?#].*)?$`)
)

func IsHomePage(u string) bool          { return homePageRe.MatchString(u) }
func IsCategoryPage(u string) bool      { return categoryPageRe.MatchString(u) }
func IsSectionPage(u string) bool       { return sectionPageRe.MatchString(u) }
func IsArticlePage(u string) bool       { return articlePageRe.MatchString(u) }
func IsSearchResultsPage(u string) bool { return searchPageRe.MatchString(u) }
func IsNewRequestPage(u string) bool    { return newRequestPageRe.MatchString(u) }
func IsTopicListPage(u string) bool     { return topicListPageRe.MatchString(u) }
func IsPostListPage(u string) bool      { return postListPageRe.MatchString(u) }
func IsTopicPage(u string) bool         { return topicPageRe.MatchString(u) }
func IsNewPostPage(u string) bool       { return newPostPageRe.MatchString(u) }
func IsUserProfilePage(u string) bool   { return profilePageRe.MatchString(u) }

func IsPostPage(u string) bool {
	return !IsNewPostPage(u) && postPageRe.MatchString(u)
}

// PageID returns the numeric object ID leading the last path segment of u,
// e.g. 360001 for ".../articles/360001-Getting-started".
func PageID(u string) (int64, bool) {
	u, _, _ = strings.Cut(u, "#")
	u, _, _ = strings.Cut(u, "?")
	last := u[strings.LastIndex(u, "/")+1:]
	end := 0
	for end < len(last) && last[end] >= '0' && last[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(last[:end], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
