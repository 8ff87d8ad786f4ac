package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// performFunc sends one request to the cluster. path is relative to the node root
// and may carry a query string.
type performFunc func(ctx context.Context, method, path string, body []byte) (*http.Response, error)

// waitSlack is added to a server-side wait so the request outlives it and the
// cluster's own 408 answer is seen instead of a client deadline.
const waitSlack = 2 * time.Second

type requestTimeoutKey struct{}

// withRequestTimeout raises the per-request deadline a driver applies to calls
// made with ctx.
func withRequestTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, requestTimeoutKey{}, d)
}

// requestTimeout returns the larger of def and any timeout carried by ctx.
func requestTimeout(ctx context.Context, def time.Duration) time.Duration {
	if d, ok := ctx.Value(requestTimeoutKey{}).(time.Duration); ok && d > def {
		return d
	}
	return def
}

// api implements the document API on top of a driver-specific performFunc.
// Every driver embeds it.
type api struct {
	name    string
	perform performFunc
}

// Ping verifies the cluster connection is alive.
func (a *api) Ping(ctx context.Context) error {
	resp, err := a.perform(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode >= http.StatusBadRequest {
		return a.statusError("ping", resp)
	}
	return nil
}

// HealthCheck verifies the cluster is reachable and not red.
func (a *api) HealthCheck(ctx context.Context) error {
	resp, err := a.perform(ctx, http.MethodGet, "/_cluster/health?local=true", nil)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", a.name, err)
	}
	defer drain(resp)
	if resp.StatusCode >= http.StatusBadRequest {
		return a.statusError("health check", resp)
	}
	var health ClusterHealth
	if err := decode(resp.Body, &health); err != nil {
		return err
	}
	if health.Status == HealthRed {
		return fmt.Errorf("%s cluster %s is red", a.name, health.ClusterName)
	}
	return nil
}

// WaitForStatus asks the cluster to hold the request until it reaches status.
// The cluster answers 408 when the wait times out; that is reported as HealthTimeoutError.
func (a *api) WaitForStatus(ctx context.Context, status string, timeout time.Duration) (*ClusterHealth, error) {
	query := url.Values{}
	query.Set("wait_for_status", status)
	if timeout > 0 {
		query.Set("timeout", fmt.Sprintf("%dms", timeout.Milliseconds()))
		ctx = withRequestTimeout(ctx, timeout+waitSlack)
	}
	resp, err := a.perform(ctx, http.MethodGet, "/_cluster/health?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusRequestTimeout {
		return nil, a.statusError("cluster health", resp)
	}

	var health ClusterHealth
	if err := decode(resp.Body, &health); err != nil {
		return nil, err
	}
	if !health.Satisfies(status) {
		return &health, &HealthTimeoutError{Wanted: status, Current: health.Status, Timeout: timeout}
	}
	return &health, nil
}

// IndexExists reports whether index exists.
func (a *api) IndexExists(ctx context.Context, index string) (bool, error) {
	if err := requireIndex(index); err != nil {
		return false, err
	}
	resp, err := a.perform(ctx, http.MethodHead, "/"+url.PathEscape(index), nil)
	if err != nil {
		return false, err
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, a.statusError("index exists", resp)
	}
}

// CreateIndex creates index with the given shard, replica and keyword mapping settings.
func (a *api) CreateIndex(ctx context.Context, index string, settings IndexSettings) error {
	if err := requireIndex(index); err != nil {
		return err
	}
	payload, err := encode(createIndexBody(settings))
	if err != nil {
		return err
	}
	resp, err := a.perform(ctx, http.MethodPut, "/"+url.PathEscape(index), payload)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError("create index", resp)
	}
	return nil
}

// DeleteIndex deletes index. A missing index is not an error.
func (a *api) DeleteIndex(ctx context.Context, index string) error {
	if err := requireIndex(index); err != nil {
		return err
	}
	resp, err := a.perform(ctx, http.MethodDelete, "/"+url.PathEscape(index), nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError("delete index", resp)
	}
	return nil
}

// Refresh makes recent writes visible to search.
func (a *api) Refresh(ctx context.Context, index string) error {
	if err := requireIndex(index); err != nil {
		return err
	}
	resp, err := a.perform(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_refresh", nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError("refresh", resp)
	}
	return nil
}

// GetDocument fetches a document by ID.
func (a *api) GetDocument(ctx context.Context, index, id string) (map[string]any, bool, error) {
	if err := requireDocument(index, id); err != nil {
		return nil, false, err
	}
	resp, err := a.perform(ctx, http.MethodGet, docPath(index, id), nil)
	if err != nil {
		return nil, false, err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, a.statusError("get document", resp)
	}

	var body struct {
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	}
	if err := decode(resp.Body, &body); err != nil {
		return nil, false, err
	}
	if !body.Found {
		return nil, false, nil
	}
	if body.Source == nil {
		body.Source = map[string]any{}
	}
	return body.Source, true, nil
}

// IndexDocument upserts a JSON document in the target index by ID.
func (a *api) IndexDocument(ctx context.Context, index, id string, source map[string]any) error {
	if err := requireDocument(index, id); err != nil {
		return err
	}
	payload, err := encode(source)
	if err != nil {
		return err
	}
	resp, err := a.perform(ctx, http.MethodPut, docPath(index, id), payload)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError("index document", resp)
	}
	return nil
}

// UpdateDocument merges partial into an existing document.
func (a *api) UpdateDocument(ctx context.Context, index, id string, partial map[string]any) error {
	if err := requireDocument(index, id); err != nil {
		return err
	}
	payload, err := encode(map[string]any{"doc": partial})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/%s/_update/%s", url.PathEscape(index), url.PathEscape(id))
	resp, err := a.perform(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError("update document", resp)
	}
	return nil
}

// DeleteDocument deletes a document by ID.
func (a *api) DeleteDocument(ctx context.Context, index, id string) error {
	if err := requireDocument(index, id); err != nil {
		return err
	}
	resp, err := a.perform(ctx, http.MethodDelete, docPath(index, id), nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.statusError("delete document", resp)
	}
	return nil
}

// ScanDocuments runs a sorted range query on the key field.
func (a *api) ScanDocuments(ctx context.Context, req ScanRequest) ([]Document, error) {
	if err := requireIndex(req.Index); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.KeyField) == "" {
		return nil, fmt.Errorf("scan key field is required")
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("scan count must be positive, got %d", req.Count)
	}
	payload, err := encode(scanQuery(req))
	if err != nil {
		return nil, err
	}
	resp, err := a.perform(ctx, http.MethodPost, "/"+url.PathEscape(req.Index)+"/_search", payload)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.statusError("scan", resp)
	}

	var body struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := decode(resp.Body, &body); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		source := hit.Source
		if source == nil {
			source = map[string]any{}
		}
		docs = append(docs, Document{ID: hit.ID, Source: source})
	}
	return docs, nil
}

func (a *api) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{
		Op:         a.name + " " + op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func createIndexBody(settings IndexSettings) map[string]any {
	body := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   settings.Shards,
				"number_of_replicas": settings.Replicas,
			},
		},
	}
	if len(settings.KeywordFields) > 0 {
		properties := make(map[string]any, len(settings.KeywordFields))
		for _, field := range settings.KeywordFields {
			properties[field] = map[string]any{"type": "keyword"}
		}
		body["mappings"] = map[string]any{"properties": properties}
	}
	return body
}

func scanQuery(req ScanRequest) map[string]any {
	query := map[string]any{
		"size": req.Count,
		"query": map[string]any{
			"range": map[string]any{
				req.KeyField: map[string]any{"gte": req.StartKey},
			},
		},
		"sort": []any{
			map[string]any{req.KeyField: map[string]any{"order": "asc", "unmapped_type": "keyword"}},
		},
	}
	if len(req.Fields) > 0 {
		includes := append([]string{req.KeyField}, req.Fields...)
		query["_source"] = map[string]any{"includes": includes}
	}
	return query
}

func docPath(index, id string) string {
	return fmt.Sprintf("/%s/_doc/%s", url.PathEscape(index), url.PathEscape(id))
}

func requireIndex(index string) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	return nil
}

func requireDocument(index, id string) error {
	if err := requireIndex(index); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("document id is required")
	}
	return nil
}

func encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrSerialization, err)
	}
	return payload, nil
}

func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrSerialization, err)
	}
	return nil
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
