// Package searchtest provides an in-memory Elasticsearch-compatible HTTP server for tests.
package searchtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Request is a request observed by the fake cluster.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Index is the state of one index held by the fake cluster.
type Index struct {
	Settings map[string]any
	Mappings map[string]any
	Docs     map[string]map[string]any
}

// Cluster emulates the document, index and cluster-health endpoints of Elasticsearch.
type Cluster struct {
	Server *httptest.Server

	mu         sync.Mutex
	indices    map[string]*Index
	requests   []Request
	health     string
	failStatus  int
	failPaths   []string
	healthDelay time.Duration
}

// NewCluster starts a fake cluster reporting green health. The server is closed
// when the test ends.
func NewCluster(t interface{ Cleanup(func()) }) *Cluster {
	c := &Cluster{
		indices: make(map[string]*Index),
		health:  "green",
	}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.Server.Close)
	return c
}

// URL returns the base URL of the fake cluster.
func (c *Cluster) URL() string { return c.Server.URL }

// HostPort returns the host:port the fake cluster listens on.
func (c *Cluster) HostPort() string { return strings.TrimPrefix(c.Server.URL, "http://") }

// SetHealth sets the status reported by the cluster health endpoint.
func (c *Cluster) SetHealth(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health = status
}

// SetHealthDelay holds cluster health requests that wait for a status for d
// before answering, like a cluster that is slow to turn green.
func (c *Cluster) SetHealthDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthDelay = d
}

// FailWith makes requests whose path contains one of fragments answer with status.
// No fragments means every request except the root ping. A zero status clears it.
func (c *Cluster) FailWith(status int, fragments ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failStatus = status
	c.failPaths = fragments
}

// Requests returns the requests observed so far.
func (c *Cluster) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// CountRequests returns how many requests matched method and path exactly.
func (c *Cluster) CountRequests(method, path string) int {
	n := 0
	for _, r := range c.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Index returns a copy of the named index, or nil when it does not exist.
func (c *Cluster) Index(name string) *Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indices[name]
	if !ok {
		return nil
	}
	docs := make(map[string]map[string]any, len(idx.Docs))
	for id, doc := range idx.Docs {
		docs[id] = cloneDoc(doc)
	}
	return &Index{Settings: idx.Settings, Mappings: idx.Mappings, Docs: docs}
}

// PutDocument stores a document directly, creating the index when needed.
func (c *Cluster) PutDocument(index, id string, source map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndex(index).Docs[id] = cloneDoc(source)
}

func (c *Cluster) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if r.URL.Path == "/_cluster/health" && r.URL.Query().Get("wait_for_status") != "" {
		c.mu.Lock()
		delay := c.healthDelay
		c.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if c.shouldFail(r.URL.Path) {
		writeJSON(w, c.failStatus, map[string]any{"error": map[string]any{"type": "injected_failure"}, "status": c.failStatus})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		writeJSON(w, http.StatusOK, map[string]any{
			"name":         "fake-node",
			"cluster_name": "fake-cluster",
			"version":      map[string]any{"number": "8.19.0", "build_flavor": "default"},
			"tagline":      "You Know, for Search",
		})
	case r.URL.Path == "/_cluster/health":
		c.serveHealth(w, r)
	case len(parts) == 1:
		c.serveIndex(w, r, parts[0], body)
	case len(parts) == 2 && parts[1] == "_refresh":
		c.serveRefresh(w, parts[0])
	case len(parts) == 2 && parts[1] == "_search":
		c.serveSearch(w, parts[0], body)
	case len(parts) == 3 && parts[1] == "_doc":
		c.serveDoc(w, r, parts[0], parts[2], body)
	case len(parts) == 3 && parts[1] == "_update" && r.Method == http.MethodPost:
		c.serveUpdate(w, parts[0], parts[2], body)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported path " + r.URL.Path})
	}
}

func (c *Cluster) shouldFail(path string) bool {
	if c.failStatus == 0 || path == "/" {
		return false
	}
	if len(c.failPaths) == 0 {
		return true
	}
	for _, fragment := range c.failPaths {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

func (c *Cluster) serveHealth(w http.ResponseWriter, r *http.Request) {
	wanted := r.URL.Query().Get("wait_for_status")
	timedOut := wanted != "" && rank(c.health) < rank(wanted)
	status := http.StatusOK
	if timedOut {
		status = http.StatusRequestTimeout
	}
	writeJSON(w, status, map[string]any{
		"cluster_name":    "fake-cluster",
		"status":          c.health,
		"timed_out":       timedOut,
		"number_of_nodes": 1,
	})
}

func (c *Cluster) serveIndex(w http.ResponseWriter, r *http.Request, name string, body []byte) {
	_, exists := c.indices[name]
	switch r.Method {
	case http.MethodHead:
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodPut:
		if exists {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "resource_already_exists_exception"}})
			return
		}
		var req struct {
			Settings map[string]any `json:"settings"`
			Mappings map[string]any `json:"mappings"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
				return
			}
		}
		idx := c.ensureIndex(name)
		idx.Settings = req.Settings
		idx.Mappings = req.Mappings
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "index": name})
	case http.MethodDelete:
		if !exists {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "index_not_found_exception"}})
			return
		}
		delete(c.indices, name)
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (c *Cluster) serveRefresh(w http.ResponseWriter, name string) {
	if _, ok := c.indices[name]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "index_not_found_exception"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"_shards": map[string]any{"successful": 1}})
}

func (c *Cluster) serveDoc(w http.ResponseWriter, r *http.Request, name, id string, body []byte) {
	switch r.Method {
	case http.MethodPut, http.MethodPost:
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid document"})
			return
		}
		idx := c.ensureIndex(name)
		_, existed := idx.Docs[id]
		idx.Docs[id] = doc
		status, result := http.StatusCreated, "created"
		if existed {
			status, result = http.StatusOK, "updated"
		}
		writeJSON(w, status, map[string]any{"_index": name, "_id": id, "result": result})
	case http.MethodGet:
		doc, ok := c.lookup(name, id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"_index": name, "_id": id, "found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"_index": name, "_id": id, "found": true, "_source": doc})
	case http.MethodDelete:
		if _, ok := c.lookup(name, id); !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"_index": name, "_id": id, "result": "not_found"})
			return
		}
		delete(c.indices[name].Docs, id)
		writeJSON(w, http.StatusOK, map[string]any{"_index": name, "_id": id, "result": "deleted"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (c *Cluster) serveUpdate(w http.ResponseWriter, name, id string, body []byte) {
	doc, ok := c.lookup(name, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "document_missing_exception"}})
		return
	}
	var req struct {
		Doc map[string]any `json:"doc"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid update"})
		return
	}
	for k, v := range req.Doc {
		doc[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"_index": name, "_id": id, "result": "updated"})
}

// serveSearch supports the request shape the benchmark sends: a single range
// clause with gte, one ascending sort key, size and optional _source includes.
// Sorting on a field that was mapped dynamically as text is rejected, as
// Elasticsearch does.
func (c *Cluster) serveSearch(w http.ResponseWriter, name string, body []byte) {
	idx, ok := c.indices[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "index_not_found_exception"}})
		return
	}
	var req struct {
		Size  int `json:"size"`
		Query struct {
			Range map[string]struct {
				GTE string `json:"gte"`
			} `json:"range"`
		} `json:"query"`
		Source *struct {
			Includes []string `json:"includes"`
		} `json:"_source"`
		Sort []map[string]json.RawMessage `json:"sort"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid query"})
		return
	}
	for _, clause := range req.Sort {
		for f := range clause {
			if dynamicText(idx, f) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{
						"type":   "illegal_argument_exception",
						"reason": "Text fields are not optimised for operations that require per-document field data like aggregations and sorting, so these operations are disabled by default. Please use a keyword field instead.",
					},
					"status": http.StatusBadRequest,
				})
				return
			}
		}
	}

	var field, from string
	for f, r := range req.Query.Range {
		field, from = f, r.GTE
	}

	type hit struct {
		id  string
		key string
		doc map[string]any
	}
	var hits []hit
	for id, doc := range idx.Docs {
		key, _ := doc[field].(string)
		if field != "" && (key == "" || key < from) {
			continue
		}
		hits = append(hits, hit{id: id, key: key, doc: doc})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].key == hits[j].key {
			return hits[i].id < hits[j].id
		}
		return hits[i].key < hits[j].key
	})
	size := req.Size
	if size <= 0 {
		size = 10
	}
	if len(hits) > size {
		hits = hits[:size]
	}

	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		source := h.doc
		if req.Source != nil && len(req.Source.Includes) > 0 {
			source = make(map[string]any, len(req.Source.Includes))
			for _, f := range req.Source.Includes {
				if v, ok := h.doc[f]; ok {
					source[f] = v
				}
			}
		}
		out = append(out, map[string]any{"_index": name, "_id": h.id, "_source": source})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hits": map[string]any{"total": map[string]any{"value": len(out)}, "hits": out},
	})
}

// dynamicText reports whether field has no explicit mapping but appears in a
// stored document, in which case the cluster would have mapped it as text.
func dynamicText(idx *Index, field string) bool {
	if typ := mappedType(idx, field); typ != "" {
		return typ == "text"
	}
	for _, doc := range idx.Docs {
		if _, ok := doc[field].(string); ok {
			return true
		}
	}
	return false
}

func mappedType(idx *Index, field string) string {
	props, _ := idx.Mappings["properties"].(map[string]any)
	def, _ := props[field].(map[string]any)
	typ, _ := def["type"].(string)
	return typ
}

func (c *Cluster) lookup(name, id string) (map[string]any, bool) {
	idx, ok := c.indices[name]
	if !ok {
		return nil, false
	}
	doc, ok := idx.Docs[id]
	return doc, ok
}

func (c *Cluster) ensureIndex(name string) *Index {
	idx, ok := c.indices[name]
	if !ok {
		idx = &Index{Docs: make(map[string]map[string]any)}
		c.indices[name] = idx
	}
	return idx
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func rank(status string) int {
	switch status {
	case "green":
		return 2
	case "yellow":
		return 1
	default:
		return 0
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
