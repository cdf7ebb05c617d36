package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"hcext/internal/dom"
	"hcext/internal/logging"
)

// SVGFetcher loads the markup of an SVG image.
type SVGFetcher interface {
	FetchSVG(ctx context.Context, src string) (string, error)
}

// HTTPFetcher fetches SVG files over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) FetchSVG(ctx context.Context, src string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", src, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const invisibleClass = "invisible"

func isSVGImage(el *dom.Element) bool {
	src, _ := el.Attr("src")
	if el.TagName() != "img" || src == "" {
		return false
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return path.Ext(u.Path) == ".svg"
}

// inlineSVGs replaces img[data-inline-svg] descendants of el that point at
// an SVG file with the inline SVG. Other flagged images become visible.
func (r *Renderer) inlineSVGs(ctx context.Context, el *dom.Element) {
	var images []*dom.Element
	for _, img := range el.QuerySelectorAll("img[data-inline-svg]") {
		if isSVGImage(img) {
			images = append(images, img)
			continue
		}
		img.RemoveClass(invisibleClass)
	}
	if len(images) == 0 || r.fetcher == nil {
		return
	}

	logger := logging.FromContext(ctx)
	markup := make([]string, len(images))
	var g errgroup.Group
	g.SetLimit(4)
	for i, img := range images {
		src := r.resolve(el.Document(), img)
		g.Go(func() error {
			text, err := r.fetcher.FetchSVG(ctx, src)
			if err != nil {
				logger.Warn("inline svg fetch failed", "src", src, "err", err)
				return nil
			}
			markup[i] = text
			return nil
		})
	}
	_ = g.Wait()

	for i, img := range images {
		if markup[i] == "" {
			continue
		}
		if err := replaceWithSVG(img, markup[i]); err != nil {
			logger.Warn("inline svg replace failed", "err", err)
		}
	}
}

func (r *Renderer) resolve(doc *dom.Document, img *dom.Element) string {
	src, _ := img.Attr("src")
	if doc == nil || doc.URL() == "" {
		return src
	}
	base, err := url.Parse(doc.URL())
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

func replaceWithSVG(img *dom.Element, markup string) error {
	holder := img.Document().CreateElement("div")
	if err := holder.SetInnerHTML(strings.TrimSpace(markup)); err != nil {
		return err
	}
	svg := holder.QuerySelector("svg")
	if svg == nil {
		src, _ := img.Attr("src")
		return fmt.Errorf("%s: no <svg> element", src)
	}
	for _, a := range img.Attrs() {
		if a.Key == "class" {
			continue
		}
		svg.SetAttr(a.Key, a.Val)
	}
	svg.AddClass(img.ClassList()...)
	svg.RemoveAttr("data-inline-svg")
	svg.RemoveClass(invisibleClass)
	img.ReplaceWith(svg.Node())
	return nil
}
