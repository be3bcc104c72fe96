package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/cache"
	"github.com/igr88/archetect/internal/config"
	"github.com/igr88/archetect/internal/materialize"
	"github.com/igr88/archetect/internal/source"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func testSession(t *testing.T, s config.Settings, o *renderOptions) (*session, *bytes.Buffer) {
	t.Helper()
	if s.CacheDir == "" {
		s.CacheDir = t.TempDir()
	}
	var out bytes.Buffer
	ss, err := newSession(s, o, strings.NewReader(""), &out, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(func() { ss.store.Close() })
	return ss, &out
}

func greeterArchetype(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"archetype.yaml": `name: greeter
variables:
  - name: name
    required: true
  - name: greeting
    default: hello
  - name: loud
    type: bool
    when: enabled("loud")
`,
		"contents/{{ name }}.txt": "{{ greeting }} {{ name }}{% if enabled(\"loud\") %}{% if loud %}!{% endif %}{% endif %}\n",
	})
	return dir
}

func TestRender_Headless(t *testing.T) {
	arch := greeterArchetype(t)
	dest := t.TempDir()
	answerFile := filepath.Join(t.TempDir(), "answers.yaml")
	writeFiles(t, filepath.Dir(answerFile), map[string]string{"answers.yaml": "greeting: hi\nname: ignored\n"})

	ss, out := testSession(t, config.Settings{Headless: true, Switches: []string{"loud"}}, &renderOptions{
		answers:     []string{"name=world", "loud=yes"},
		answerFiles: []string{answerFile},
	})
	if err := ss.render(context.Background(), arch, dest); err != nil {
		t.Fatalf("render: %v", err)
	}

	if got := readFile(t, filepath.Join(dest, "world.txt")); got != "hi world!\n" {
		t.Errorf("world.txt = %q, want %q", got, "hi world!\n")
	}
	if !strings.Contains(out.String(), "Rendered greeter into "+dest+": 1 created") {
		t.Errorf("report = %q", out.String())
	}
}

func TestRender_ConfigAnswersRankBelowFiles(t *testing.T) {
	arch := greeterArchetype(t)
	dest := t.TempDir()

	ss, _ := testSession(t, config.Settings{
		Headless: true,
		Answers:  map[string]any{"name": "config", "greeting": "hey"},
	}, &renderOptions{})
	if err := ss.render(context.Background(), arch, dest); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "config.txt")); got != "hey config\n" {
		t.Errorf("config.txt = %q", got)
	}
}

func TestRender_HeadlessMissingAnswer(t *testing.T) {
	arch := greeterArchetype(t)
	dest := t.TempDir()

	ss, _ := testSession(t, config.Settings{}, &renderOptions{headless: true})
	err := ss.render(context.Background(), arch, dest)
	if apperr.KindOf(err) != apperr.KindRequiredVariableMissing {
		t.Fatalf("err = %v, want a missing variable error", err)
	}
	if apperr.ExitCode(err) != apperr.ExitAnswers {
		t.Errorf("ExitCode = %d, want %d", apperr.ExitCode(err), apperr.ExitAnswers)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Errorf("destination has %d entries, want none", len(entries))
	}
}

func TestRender_BadAnswerFlag(t *testing.T) {
	ss, _ := testSession(t, config.Settings{}, &renderOptions{headless: true, answers: []string{"novalue"}})
	err := ss.render(context.Background(), greeterArchetype(t), t.TempDir())
	if apperr.KindOf(err) != apperr.KindAnswerValidation {
		t.Fatalf("err = %v, want an answer validation error", err)
	}
}

func TestRender_DryRun(t *testing.T) {
	arch := greeterArchetype(t)
	dest := t.TempDir()
	writeFiles(t, dest, map[string]string{"world.txt": "edited\n"})

	ss, out := testSession(t, config.Settings{}, &renderOptions{
		headless: true,
		dryRun:   true,
		conflict: "skip",
		answers:  []string{"name=world"},
	})
	if err := ss.render(context.Background(), arch, dest); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "world.txt")); got != "edited\n" {
		t.Errorf("dry run changed world.txt to %q", got)
	}
	if !strings.Contains(out.String(), "preserved") || !strings.Contains(out.String(), "Dry run: 0 of 1") {
		t.Errorf("report = %q", out.String())
	}
}

func TestSessionPolicy(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		config   string
		headless bool
		want     materialize.Policy
		wantErr  bool
	}{
		{"interactive default", "", "", false, materialize.Ask, false},
		{"headless default", "", "", true, materialize.Overwrite, false},
		{"config", "", "skip", true, materialize.Skip, false},
		{"flag beats config", "conflict", "skip", true, materialize.Conflict, false},
		{"unknown", "merge", "", true, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss, _ := testSession(t, config.Settings{Conflict: tt.config}, &renderOptions{conflict: tt.flag, headless: tt.headless})
			got, err := ss.policy()
			if (err != nil) != tt.wantErr {
				t.Fatalf("policy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("policy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession_UnknownFetcher(t *testing.T) {
	_, err := newSession(config.Settings{CacheDir: t.TempDir(), Fetcher: "svn"}, &renderOptions{}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error for an unknown fetcher")
	}
}

func TestRenderFromCatalog(t *testing.T) {
	root := t.TempDir()
	arch := greeterArchetype(t)
	writeFiles(t, root, map[string]string{
		"catalog.yaml": "name: Company\nentries:\n  - label: Nothing\n    archetype: ./nothing\n  - label: Greeter\n    archetype: " + arch + "\n",
	})
	dest := t.TempDir()

	ss, _ := testSession(t, config.Settings{}, &renderOptions{headless: true, answers: []string{"name=cat"}})
	if err := ss.renderFromCatalog(context.Background(), root, dest, "2"); err != nil {
		t.Fatalf("renderFromCatalog: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "cat.txt")); got != "hello cat\n" {
		t.Errorf("cat.txt = %q", got)
	}

	err := ss.renderFromCatalog(context.Background(), root, dest, "")
	if err == nil || !strings.Contains(err.Error(), "--select") {
		t.Errorf("headless without --select: err = %v", err)
	}

	err = ss.renderFromCatalog(context.Background(), root, dest, "5")
	if apperr.KindOf(err) != apperr.KindCatalog {
		t.Errorf("out of range selection: err = %v", err)
	}
}

func TestListCache_Empty(t *testing.T) {
	store := cache.New(t.TempDir(), nil, nil)
	var out bytes.Buffer
	if err := listCache(&out, store, time.Now()); err != nil {
		t.Fatalf("listCache: %v", err)
	}
	if !strings.Contains(out.String(), "is empty") {
		t.Errorf("output = %q", out.String())
	}
}

func TestUpdateCache_Offline(t *testing.T) {
	calls := 0
	store := cache.New(t.TempDir(), cache.FetcherFunc(func(context.Context, source.Spec, string) (string, error) {
		calls++
		return "", nil
	}), nil)

	var out bytes.Buffer
	err := updateCache(context.Background(), &out, store, []string{"git@github.com:org/svc.git"}, true)
	if apperr.KindOf(err) != apperr.KindOfflineCacheMiss {
		t.Fatalf("err = %v, want an offline cache miss", err)
	}
	if apperr.ExitCode(err) != apperr.ExitOfflineCacheMiss {
		t.Errorf("ExitCode = %d, want %d", apperr.ExitCode(err), apperr.ExitOfflineCacheMiss)
	}
	if calls != 0 {
		t.Errorf("fetcher called %d times while offline", calls)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want none", out.String())
	}
}

func TestEntrySpec(t *testing.T) {
	e := &cache.Entry{Source: "github.com/org/repo#v1", URL: "https://github.com/org/repo.git", Ref: "v1"}
	spec, err := entrySpec(e)
	if err != nil {
		t.Fatalf("entrySpec: %v", err)
	}
	if spec.Normalized() != e.Source {
		t.Errorf("Normalized() = %q, want %q", spec.Normalized(), e.Source)
	}
}
