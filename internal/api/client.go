// Package api fetches Help Center objects through the REST API, caching
// responses in session storage and sharing in-flight requests.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hcext/internal/logging"
	"hcext/internal/storage"
	"hcext/internal/util"
)

const (
	DefaultPerPage  = 100
	DefaultMaxPages = 20
	DefaultCacheTTL = time.Hour
)

// Client issues API requests against one Help Center.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      *storage.Store
	session    bool
	locale     string
	signedIn   bool
	perPage    int
	maxPages   int
	ttl        time.Duration
	endpoints  []Endpoint
	supported  []string
	tracer     trace.Tracer
	logger     *slog.Logger

	group singleflight.Group
	stats *statsCollector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStore caches responses in store. session selects the session area.
func WithStore(store *storage.Store, session bool) Option {
	return func(c *Client) {
		c.store = store
		c.session = session
	}
}

func WithLocale(locale string) Option {
	return func(c *Client) { c.locale = strings.ToLower(locale) }
}

// WithSignedIn marks requests as made by a signed-in user. It is part of the
// cache key.
func WithSignedIn(signedIn bool) Option {
	return func(c *Client) { c.signedIn = signedIn }
}

func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithMaxPages bounds how many pages of one listing are fetched.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer("hcext/internal/api") }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for the Help Center at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    true,
		locale:     "en-us",
		perPage:    DefaultPerPage,
		maxPages:   DefaultMaxPages,
		ttl:        DefaultCacheTTL,
		tracer:     otel.Tracer("hcext/internal/api"),
		logger:     logging.Discard(),
		stats:      newStatsCollector(),
	}
	for _, o := range opts {
		o(c)
	}
	c.endpoints = DefaultEndpoints(c.locale)
	c.supported = supportedTypes(c.endpoints)
	return c, nil
}

// Locale returns the locale used in Help Center paths.
func (c *Client) Locale() string { return c.locale }

// Endpoints returns the endpoints in planning order.
func (c *Client) Endpoints() []Endpoint { return c.endpoints }

// Stats returns request counters.
func (c *Client) Stats() Stats { return c.stats.snapshot() }

// ArticlesURL returns the article listing path with optional sideloads and a
// label filter.
func (c *Client) ArticlesURL(include, labels []string) string {
	u := "/api/v2/help_center/" + c.locale + "/articles.json"
	if len(include) > 0 {
		u = util.SetURLParameter(u, "include", strings.Join(include, ","))
	}
	if len(labels) > 0 {
		u = util.SetURLParameter(u, "label_names", strings.Join(labels, ","))
	}
	return u
}

type plannedRequest struct {
	endpoint   Endpoint
	url        string
	properties []string
}

// plan maps object types to the requests that fetch them. Sideloadable types
// are folded into an earlier endpoint's include parameter.
func (c *Client) plan(objectTypes, properties []string) ([]plannedRequest, error) {
	if len(objectTypes) == 0 {
		return nil, ErrInvalidObjects
	}
	supported := util.Intersection(objectTypes, endpointTypes(c.endpoints))
	if len(supported) == 0 {
		return nil, ErrUnsupportedObjects
	}

	var reqs []plannedRequest
	for _, ep := range c.endpoints {
		if !util.Contains(objectTypes, ep.Type) {
			continue
		}
		u := ep.URL()
		sideloads := util.Intersection(objectTypes, ep.Sideloads)
		if len(sideloads) > 0 {
			u += "?include=" + strings.Join(sideloads, ",")
			supported = without(supported, sideloads)
		}
		props := properties
		if len(props) == 0 {
			props = ep.Properties
		}
		reqs = append(reqs, plannedRequest{endpoint: ep, url: u, properties: props})
	}

	out := reqs[:0]
	for _, r := range reqs {
		if util.Contains(supported, r.endpoint.Type) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoEndpoints
	}
	return out, nil
}

func without(s, drop []string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if !util.Contains(drop, v) {
			out = append(out, v)
		}
	}
	return out
}

// Get fetches every requested object type with as few requests as the
// endpoints' sideloads allow. Only requested types are returned.
func (c *Client) Get(ctx context.Context, objectTypes, properties []string) (Response, error) {
	ctx, span := c.tracer.Start(ctx, "api.Get", trace.WithAttributes(
		attribute.StringSlice("hc.object_types", objectTypes),
	))
	defer span.End()

	reqs, err := c.plan(objectTypes, properties)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	responses := make([]Response, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		g.Go(func() error {
			resp, err := c.Request(gctx, r.url, r.properties, true)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := Response{}
	for _, resp := range responses {
		for typ, objs := range resp {
			if util.Contains(objectTypes, typ) {
				out[typ] = objs
			}
		}
	}
	return out, nil
}

// Request fetches one listing URL, following pagination and reducing objects
// to properties. With useCache set, fresh session entries are served without
// a network call and new results are stored.
func (c *Client) Request(ctx context.Context, rawURL string, properties []string, useCache bool) (Response, error) {
	if util.GetURLParameter("per_page", rawURL) == "" {
		rawURL = util.SetURLParameter(rawURL, "per_page", strconv.Itoa(c.perPage))
	}
	key := c.cacheKey(rawURL, properties)

	var item *storage.Item
	if useCache && c.store != nil {
		it, err := c.store.Item(key, c.session)
		if err != nil {
			return nil, err
		}
		item = it
		if cached, ok := c.cached(key, item); ok {
			return cached, nil
		}
	}

	// The shared fetch outlives any single caller; each caller only stops
	// waiting when its own ctx ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if item != nil {
			if cached, ok := c.cached(key, item); ok {
				return cached, nil
			}
		}
		return c.fetch(fetchCtx, rawURL, properties, item)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.stats.shared.Add(1)
		}
		return res.Val.(Response).Clone(), nil
	}
}

// cached returns the session entry for key while it is fresh.
func (c *Client) cached(key string, item *storage.Item) (Response, bool) {
	if !item.IsValid(c.ttl) {
		return nil, false
	}
	var resp Response
	ok, err := item.Get(&resp)
	if err != nil {
		c.logger.Warn("api cache entry unreadable", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.stats.cacheHits.Add(1)
	return resp, true
}

// cacheKey identifies a request by URL, properties and sign-in state.
func (c *Client) cacheKey(rawURL string, properties []string) string {
	s := rawURL + strings.Join(properties, "-") + "-signed-in-" + strconv.FormatBool(c.signedIn)
	return "hc-api-" + strconv.FormatUint(xxhash.Sum64String(s), 16)
}

func (c *Client) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}
