package embedded

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/security"
	"github.com/nimburion/esbench/pkg/store/search"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{DataDir: t.TempDir(), ClusterName: "es.ycsb.cluster"}, logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_Validation(t *testing.T) {
	if _, err := Open(context.Background(), Config{ClusterName: "c"}, logger.NewNop()); err == nil {
		t.Error("expected error without data dir")
	}
	if _, err := Open(context.Background(), Config{DataDir: t.TempDir()}, logger.NewNop()); err == nil {
		t.Error("expected error without cluster name")
	}
	if _, err := Open(context.Background(), Config{DataDir: t.TempDir(), ClusterName: "../escape"}, logger.NewNop()); !errors.Is(err, security.ErrPathTraversal) {
		t.Errorf("expected path traversal error, got %v", err)
	}
}

func TestOpen_CreatesDatabaseUnderDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "home")
	store, err := Open(context.Background(), Config{DataDir: dir, ClusterName: "bench"}, logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if store.Path() != filepath.Join(dir, "bench.db") {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := Config{DataDir: dir, ClusterName: "bench"}

	first, err := Open(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := first.IndexDocument(ctx, "usertable", "user1", map[string]any{"f": "v"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	first.Close()

	second, err := Open(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()
	source, found, err := second.GetDocument(ctx, "usertable", "user1")
	if err != nil || !found || source["f"] != "v" {
		t.Fatalf("document not persisted: %v %v %v", source, found, err)
	}
}

func TestStore_IndexLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if exists, err := store.IndexExists(ctx, "bench"); err != nil || exists {
		t.Fatalf("expected no index, exists=%v err=%v", exists, err)
	}
	if err := store.CreateIndex(ctx, "bench", search.IndexSettings{Shards: 2, Replicas: 1, KeywordFields: []string{"ycsb_key"}}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := store.CreateIndex(ctx, "bench", search.IndexSettings{Shards: 1}); err == nil {
		t.Fatal("creating an existing index should fail")
	}
	if err := store.IndexDocument(ctx, "bench", "user1", map[string]any{"f": "v"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	if err := store.DeleteIndex(ctx, "bench"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if _, found, _ := store.GetDocument(ctx, "bench", "user1"); found {
		t.Fatal("deleting an index should drop its documents")
	}
	if err := store.DeleteIndex(ctx, "bench"); err != nil {
		t.Fatalf("deleting a missing index should not fail: %v", err)
	}
}

func TestStore_DocumentOperations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetDocument(ctx, "usertable", "user1"); err != nil || found {
		t.Fatalf("expected missing document, found=%v err=%v", found, err)
	}
	if err := store.IndexDocument(ctx, "usertable", "user1", map[string]any{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if exists, _ := store.IndexExists(ctx, "usertable"); !exists {
		t.Fatal("indexing a document should create its index")
	}
	if err := store.UpdateDocument(ctx, "usertable", "user1", map[string]any{"b": "3", "c": "4"}); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	source, found, err := store.GetDocument(ctx, "usertable", "user1")
	if err != nil || !found {
		t.Fatalf("GetDocument: found=%v err=%v", found, err)
	}
	if source["a"] != "1" || source["b"] != "3" || source["c"] != "4" {
		t.Fatalf("unexpected merged source %v", source)
	}

	if err := store.IndexDocument(ctx, "usertable", "user1", map[string]any{"z": "9"}); err != nil {
		t.Fatalf("re-index: %v", err)
	}
	source, _, _ = store.GetDocument(ctx, "usertable", "user1")
	if len(source) != 1 || source["z"] != "9" {
		t.Fatalf("indexing should replace the document, got %v", source)
	}

	if err := store.DeleteDocument(ctx, "usertable", "user1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if err := store.DeleteDocument(ctx, "usertable", "user1"); !errors.Is(err, search.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.UpdateDocument(ctx, "usertable", "user1", map[string]any{"a": "1"}); !errors.Is(err, search.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of missing document, got %v", err)
	}
}

func TestStore_ScanDocuments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.ScanDocuments(ctx, search.ScanRequest{Index: "usertable", KeyField: "ycsb_key", Count: 1}); !errors.Is(err, search.ErrNotFound) {
		t.Fatalf("scan of missing index should be ErrNotFound, got %v", err)
	}

	for i := 9; i >= 0; i-- {
		key := fmt.Sprintf("user%02d", i)
		if err := store.IndexDocument(ctx, "usertable", key, map[string]any{"ycsb_key": key, "f0": "a" + key, "f1": "b"}); err != nil {
			t.Fatalf("IndexDocument: %v", err)
		}
	}

	docs, err := store.ScanDocuments(ctx, search.ScanRequest{
		Index:    "usertable",
		KeyField: "ycsb_key",
		StartKey: "user03",
		Count:    4,
		Fields:   []string{"f0"},
	})
	if err != nil {
		t.Fatalf("ScanDocuments: %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 docs, got %d", len(docs))
	}
	for i, doc := range docs {
		want := fmt.Sprintf("user%02d", i+3)
		if doc.ID != want {
			t.Fatalf("doc %d: expected %s, got %s", i, want, doc.ID)
		}
		if _, ok := doc.Source["f1"]; ok {
			t.Fatal("unrequested field returned")
		}
		if doc.Source["f0"] != "a"+want {
			t.Fatalf("unexpected source %v", doc.Source)
		}
	}

	tail, err := store.ScanDocuments(ctx, search.ScanRequest{Index: "usertable", KeyField: "ycsb_key", StartKey: "user08", Count: 10})
	if err != nil {
		t.Fatalf("ScanDocuments tail: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 docs at the tail, got %d", len(tail))
	}
}

func TestStore_WaitForStatusIsGreen(t *testing.T) {
	store := openTestStore(t)
	health, err := store.WaitForStatus(context.Background(), search.HealthGreen, 0)
	if err != nil {
		t.Fatalf("WaitForStatus: %v", err)
	}
	if !health.Satisfies(search.HealthGreen) || health.ClusterName != "es.ycsb.cluster" {
		t.Fatalf("unexpected health %+v", health)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8*25)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				key := fmt.Sprintf("w%d-%d", w, i)
				if err := store.IndexDocument(ctx, "usertable", key, map[string]any{"ycsb_key": key}); err != nil {
					errs <- err
					continue
				}
				if err := store.UpdateDocument(ctx, "usertable", key, map[string]any{"n": i}); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write failed: %v", err)
	}

	docs, err := store.ScanDocuments(ctx, search.ScanRequest{Index: "usertable", KeyField: "ycsb_key", Count: 1000})
	if err != nil {
		t.Fatalf("ScanDocuments: %v", err)
	}
	if len(docs) != 200 {
		t.Fatalf("expected 200 docs, got %d", len(docs))
	}
}
