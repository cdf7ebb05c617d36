package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"hcext/internal/storage"
	"hcext/internal/util"
)

// page is one decoded listing response.
type page struct {
	objects      Response
	page         int
	pageCount    int
	hasPageCount bool
	nextPage     string
}

func (c *Client) fetch(ctx context.Context, rawURL string, properties []string, item *storage.Item) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "api.Request", trace.WithAttributes(
		attribute.String("http.url", rawURL),
	))
	defer span.End()

	p, err := c.fetchPage(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := c.fetchRemaining(ctx, p, properties); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resp := c.filter(p, properties)
	span.SetAttributes(attribute.Int("hc.pages", max(p.pageCount, 1)))

	if item != nil {
		if err := item.Set(resp); err != nil {
			c.logger.Warn("api cache write failed", "key", item.ID(), "err", err)
		}
	}
	return resp, nil
}

func (c *Client) fetchPage(ctx context.Context, rawURL string) (*page, error) {
	target, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.stats.observe(len(body))
	c.logger.Debug("api response", "url", target, "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.Contains(mt, "application/json") {
		return nil, fmt.Errorf("GET %s: %w", target, ErrNotJSON)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	return decodePage(raw), nil
}

// decodePage keeps the object arrays of raw and its pagination fields.
func decodePage(raw map[string]any) *page {
	p := &page{objects: Response{}}
	if n, ok := util.ToFloat(raw["page"]); ok {
		p.page = int(n)
	}
	if n, ok := util.ToFloat(raw["page_count"]); ok {
		p.pageCount = int(n)
		p.hasPageCount = true
	}
	p.nextPage, _ = raw["next_page"].(string)

	for key, v := range raw {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		objs := make([]Object, 0, len(arr))
		for _, e := range arr {
			if o, ok := e.(map[string]any); ok {
				objs = append(objs, o)
			}
		}
		p.objects[key] = objs
	}
	return p
}

// fetchRemaining appends pages 2..min(page_count, maxPages) to the first
// page. Later pages and single-page listings are left alone.
func (c *Client) fetchRemaining(ctx context.Context, p *page, properties []string) error {
	if p.hasPageCount && (p.pageCount == 1 || p.page > 1) {
		return nil
	}
	last := min(p.pageCount, c.maxPages)
	if last >= 2 && p.nextPage != "" {
		rest := make([]Response, last-1)
		g, gctx := errgroup.WithContext(ctx)
		for i := 2; i <= last; i++ {
			next := util.SetURLParameter(p.nextPage, "page", strconv.Itoa(i))
			g.Go(func() error {
				resp, err := c.Request(gctx, next, properties, false)
				if err != nil {
					return err
				}
				rest[i-2] = resp
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, resp := range rest {
			for typ, objs := range resp {
				if util.Contains(c.supported, typ) {
					p.objects[typ] = append(p.objects[typ], objs...)
				}
			}
		}
	}

	sortPos := util.Contains(properties, "position")
	for typ, objs := range p.objects {
		objs = uniqueByID(objs)
		if sortPos {
			SortByPosition(objs)
		}
		p.objects[typ] = objs
	}
	return nil
}

// uniqueByID drops repeated ids. Objects without a numeric or string id are
// all kept.
func uniqueByID(objs []Object) []Object {
	seen := make(map[any]struct{}, len(objs))
	out := make([]Object, 0, len(objs))
	for _, o := range objs {
		var key any
		if f, ok := util.ToFloat(o["id"]); ok {
			key = f
		} else if s, ok := o["id"].(string); ok {
			key = s
		}
		if key != nil {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, o)
	}
	return out
}

// filter drops drafts, reduces endpoint objects to properties and removes
// every type the client does not know.
func (c *Client) filter(p *page, properties []string) Response {
	sortPos := util.Contains(properties, "position") && p.pageCount == 1
	eps := endpointTypes(c.endpoints)
	out := Response{}
	for typ, objs := range p.objects {
		if !util.Contains(c.supported, typ) {
			continue
		}
		if !util.Contains(eps, typ) {
			out[typ] = objs
			continue
		}
		kept := make([]Object, 0, len(objs))
		for _, o := range objs {
			if draft, _ := o["draft"].(bool); draft {
				continue
			}
			kept = append(kept, util.Pick(o, properties))
		}
		if sortPos {
			SortByPosition(kept)
		}
		out[typ] = kept
	}
	return out
}
