package helpcentertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultPerPage = 30

// Handler serves fixtures at the Help Center REST paths.
type Handler struct {
	router   chi.Router
	fixtures *Fixtures

	mu       sync.Mutex
	hits     map[string]int
	failures map[string]int
	notJSON  map[string]bool
	delay    time.Duration
	overlap  int
	baseURL  string
}

// NewHandler returns a handler over f. baseURL prefixes next_page links;
// when empty the request host is used.
func NewHandler(f *Fixtures, baseURL string) *Handler {
	h := &Handler{
		fixtures: f,
		hits:     map[string]int{},
		failures: map[string]int{},
		notJSON:  map[string]bool{},
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
	r := chi.NewRouter()
	r.Use(h.count)
	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/help_center/{locale}/{file}", h.handleList)
		r.Get("/community/{file}", h.handleList)
	})
	r.Get("/assets/{name}", h.handleAsset)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// count records the hit and applies forced failures and delays.
func (h *Handler) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits[r.URL.Path]++
		status := h.failures[r.URL.Path]
		notJSON := h.notJSON[r.URL.Path]
		delay := h.delay
		h.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		if notJSON {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits returns how many requests reached path.
func (h *Handler) Hits(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

// TotalHits returns the number of requests served.
func (h *Handler) TotalHits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.hits {
		n += c
	}
	return n
}

// Fail makes every request to path answer with status. Zero clears it.
func (h *Handler) Fail(path string, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if status == 0 {
		delete(h.failures, path)
		return
	}
	h.failures[path] = status
}

// ServeHTML makes path answer 200 with an HTML body.
func (h *Handler) ServeHTML(path string, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notJSON[path] = on
}

// SetDelay holds every response for d.
func (h *Handler) SetDelay(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delay = d
}

// SetOverlap makes every page after the first repeat the last n objects of
// the previous page.
func (h *Handler) SetOverlap(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlap = n
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	typ, ok := strings.CutSuffix(file, ".json")
	if !ok {
		http.NotFound(w, r)
		return
	}
	community := chi.URLParam(r, "locale") == ""
	if community != (typ == "posts" || typ == "topics") {
		http.NotFound(w, r)
		return
	}
	objs, ok := h.fixtures.Objects(typ)
	if !ok {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	if labels := splitList(q.Get("label_names")); len(labels) > 0 && typ == "articles" {
		objs = withAnyLabel(objs, labels)
	}

	perPage := atoiDefault(q.Get("per_page"), defaultPerPage)
	pageNum := atoiDefault(q.Get("page"), 1)
	pageCount := max((len(objs)+perPage-1)/perPage, 1)
	start := min((pageNum-1)*perPage, len(objs))
	end := min(start+perPage, len(objs))
	if pageNum > 1 {
		h.mu.Lock()
		start = max(start-h.overlap, 0)
		h.mu.Unlock()
	}

	body := map[string]any{
		typ:             objs[start:end],
		"page":          pageNum,
		"per_page":      perPage,
		"page_count":    pageCount,
		"count":         len(objs),
		"sort_by":       "position",
		"sort_order":    "asc",
		"next_page":     nil,
		"previous_page": nil,
	}
	if pageNum < pageCount {
		body["next_page"] = h.pageURL(r, pageNum+1)
	}
	if pageNum > 1 {
		body["previous_page"] = h.pageURL(r, pageNum-1)
	}
	for _, side := range splitList(q.Get("include")) {
		if side == typ {
			continue
		}
		if objs, ok := h.fixtures.Objects(side); ok {
			body[side] = objs
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) pageURL(r *http.Request, n int) string {
	base := h.baseURL
	if base == "" {
		base = "http://" + r.Host
	}
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return base + u.RequestURI()
}

func (h *Handler) handleAsset(w http.ResponseWriter, r *http.Request) {
	body, ok := h.fixtures.Assets[chi.URLParam(r, "name")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(r.URL.Path, ".svg") {
		w.Header().Set("Content-Type", "image/svg+xml")
	}
	_, _ = w.Write([]byte(body))
}

func withAnyLabel(objs []map[string]any, labels []string) []map[string]any {
	var out []map[string]any
	for _, o := range objs {
		have, _ := o["label_names"].([]any)
		for _, l := range have {
			if s, ok := l.(string); ok && slices.Contains(labels, s) {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is a running fake Help Center.
type Server struct {
	*Handler
	*httptest.Server
}

// NewServer starts a fake Help Center over f. A nil f serves DefaultFixtures.
func NewServer(f *Fixtures) *Server {
	if f == nil {
		f = DefaultFixtures()
	}
	h := NewHandler(f, "")
	return &Server{Handler: h, Server: httptest.NewServer(h)}
}

// Start starts a fake Help Center that is closed when the test ends.
func Start(t testing.TB, f *Fixtures) *Server {
	t.Helper()
	s := NewServer(f)
	t.Cleanup(s.Close)
	return s
}
