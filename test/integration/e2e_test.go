//go:build integration

package integration_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/igr88/archetect/internal/answers"
	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/cache"
	"github.com/igr88/archetect/internal/catalog"
	"github.com/igr88/archetect/internal/materialize"
	"github.com/igr88/archetect/internal/scaffold"
	"github.com/igr88/archetect/internal/source"
	"github.com/igr88/archetect/internal/switches"
)

var companyRepo = map[string]string{
	"catalog.yaml": `name: Company
entries:
  - label: Service
    description: HTTP service with a client library
    archetype: ./service
`,
	"service/archetype.yaml": `name: service
variables:
  - name: name
  - name: port
    type: int
    default: 8080
archetypes:
  - source: ../lib
    destination: "{{ name }}-client"
    answers:
      label: "{{ name | pascal_case }}"
`,
	"service/contents/README.md":        "# {{ name }}\n\nListens on {{ port }}.\n",
	"service/contents/cmd/{{ name }}.go": "package main // {{ name | snake_case }}\n",
	"lib/archetype.yaml": `name: lib
variables:
  - name: label
`,
	"lib/contents/client.txt": "{{ label }}Client\n",
}

// countingFetcher wraps the go-git fetcher and counts clones.
func countingFetcher(calls *int32) cache.Fetcher {
	return cache.FetcherFunc(func(ctx context.Context, spec source.Spec, dest string) (string, error) {
		atomic.AddInt32(calls, 1)
		return cache.GoGitFetcher{}.Fetch(ctx, spec, dest)
	})
}

func renderFromCatalog(t *testing.T, store *cache.Store, offline bool, catalogURL, dest string, cli map[string]any) error {
	t.Helper()
	ctx := context.Background()
	resolver := &source.Resolver{Cache: store, Offline: offline}

	engine := &catalog.Engine{Resolver: resolver}
	choice, err := engine.Traverse(ctx, catalogURL, "", catalog.PathSelector{1})
	if err != nil {
		return err
	}

	sw := switches.New()
	s := &scaffold.Scaffolder{
		Sources:  resolver,
		Answers:  &answers.Resolver{CLI: cli, Switches: sw},
		Switches: sw,
		Version:  "2.0.0",
	}
	res, err := s.PlanSpec(ctx, choice.Source)
	if err != nil {
		return err
	}
	_, err = (&materialize.Writer{Dest: osfs.New(dest)}).Commit(ctx, res.Plan)
	return err
}

// TestFullFlowCatalogToRender covers the complete flow:
// fetch a remote catalog -> select an archetype -> compose a nested archetype
// -> write the result -> render again offline from the cache.
func TestFullFlowCatalogToRender(t *testing.T) {
	env := setupTestEnv(t)
	url := gitRepo(t, companyRepo)

	var calls int32
	store := cache.New(env.CacheDir, countingFetcher(&calls), nil)

	// Step 1: Render online; the repository is cloned once.
	if err := renderFromCatalog(t, store, false, url, env.DestDir, map[string]any{"name": "billing"}); err != nil {
		t.Fatalf("online render: %v", err)
	}
	if calls != 1 {
		t.Errorf("fetcher called %d times, want 1", calls)
	}
	assertFileContent(t, filepath.Join(env.DestDir, "README.md"), "# billing\n\nListens on 8080.\n")
	assertFileContent(t, filepath.Join(env.DestDir, "cmd", "billing.go"), "package main // billing\n")
	assertFileContent(t, filepath.Join(env.DestDir, "billing-client", "client.txt"), "BillingClient\n")

	// Step 2: The cache lists the repository.
	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("cache has %d entries, want 1", len(entries))
	}

	// Step 3: A new process renders offline from the cache without fetching.
	offlineDest := t.TempDir()
	offlineStore := cache.New(env.CacheDir, countingFetcher(&calls), nil)
	if err := renderFromCatalog(t, offlineStore, true, url, offlineDest, map[string]any{"name": "orders"}); err != nil {
		t.Fatalf("offline render: %v", err)
	}
	if calls != 1 {
		t.Errorf("offline render fetched; calls = %d", calls)
	}
	assertFileContent(t, filepath.Join(offlineDest, "orders-client", "client.txt"), "OrdersClient\n")
}

func TestOfflineMissWritesNothing(t *testing.T) {
	env := setupTestEnv(t)
	url := gitRepo(t, companyRepo)

	var calls int32
	store := cache.New(env.CacheDir, countingFetcher(&calls), nil)
	err := renderFromCatalog(t, store, true, url+"#main", env.DestDir, map[string]any{"name": "x"})
	if apperr.KindOf(err) != apperr.KindOfflineCacheMiss {
		t.Fatalf("err = %v, want an offline cache miss", err)
	}
	if apperr.ExitCode(err) != apperr.ExitOfflineCacheMiss {
		t.Errorf("ExitCode = %d", apperr.ExitCode(err))
	}
	if calls != 0 {
		t.Errorf("fetcher called %d times offline", calls)
	}
	assertEmptyDir(t, env.DestDir)
}

func TestBadAnswerFromCatalogWritesNothing(t *testing.T) {
	env := setupTestEnv(t)
	url := gitRepo(t, companyRepo)

	store := cache.New(env.CacheDir, nil, nil)
	err := renderFromCatalog(t, store, false, url, env.DestDir, map[string]any{"name": "svc", "port": "eighty"})
	if apperr.KindOf(err) != apperr.KindAnswerValidation {
		t.Fatalf("err = %v, want an answer validation error", err)
	}
	assertEmptyDir(t, env.DestDir)
}
