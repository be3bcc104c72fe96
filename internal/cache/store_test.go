package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/source"
)

// countingFetcher writes a marker file into dest and counts calls.
type countingFetcher struct {
	calls atomic.Int32
	fail  func(call int32) error
}

func (f *countingFetcher) Fetch(_ context.Context, spec source.Spec, dest string) (string, error) {
	n := f.calls.Add(1)
	if f.fail != nil {
		if err := f.fail(n); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(filepath.Join(dest, "marker.txt"), []byte(fmt.Sprintf("fetch %d", n)), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%040d", n), nil
}

func mustSpec(t *testing.T, raw string) source.Spec {
	t.Helper()
	s, err := source.Parse(raw, "")
	require.NoError(t, err)
	return s
}

func readMarker(t *testing.T, e *Entry) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.Path, "marker.txt"))
	require.NoError(t, err)
	return string(data)
}

func TestResolve_OfflineMissMakesNoNetworkCalls(t *testing.T) {
	f := &countingFetcher{}
	s := New(t.TempDir(), f, nil)

	_, err := s.Resolve(context.Background(), mustSpec(t, "git@github.com:org/never.git"), true)
	require.Error(t, err)
	assert.Equal(t, apperr.KindOfflineCacheMiss, apperr.KindOf(err))
	assert.True(t, apperr.Is(err, apperr.KindSourceResolution))
	assert.Zero(t, f.calls.Load())
}

func TestResolve_FetchThenOffline(t *testing.T) {
	root := t.TempDir()
	f := &countingFetcher{}
	spec := mustSpec(t, "git@github.com:org/svc.git#main")

	e, err := New(root, f, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.Equal(t, "fetch 1", readMarker(t, e))
	assert.False(t, e.Stale)

	offline := New(root, &countingFetcher{}, nil)
	got, err := offline.Resolve(context.Background(), spec, true)
	require.NoError(t, err)
	assert.Equal(t, e.Path, got.Path)
	assert.Equal(t, e.Commit, got.Commit)
}

func TestResolve_RefreshedOncePerStore(t *testing.T) {
	root := t.TempDir()
	f := &countingFetcher{}
	spec := mustSpec(t, "https://github.com/org/svc.git")

	s := New(root, f, nil)
	first, err := s.Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	second, err := s.Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, first.Path, second.Path)

	// A new store stands in for a new process: it refreshes again.
	third, err := New(root, f, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, "fetch 2", readMarker(t, third))
	assert.Equal(t, first.Tree, third.Previous)
	assert.DirExists(t, first.Path, "previous tree is kept")

	require.NoError(t, s.Close())
	fourth, err := New(root, f, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.NoDirExists(t, first.Path, "trees older than the previous one are pruned")
	assert.DirExists(t, third.Path)
	assert.Equal(t, third.Tree, fourth.Previous)
}

func TestResolve_PinnedIsNeverRefetched(t *testing.T) {
	root := t.TempDir()
	f := &countingFetcher{}
	spec := mustSpec(t, "git@github.com:org/svc.git#0123456789abcdef0123456789abcdef01234567")
	require.True(t, spec.Pinned())

	_, err := New(root, f, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	_, err = New(root, f, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_StaleFallback(t *testing.T) {
	root := t.TempDir()
	spec := mustSpec(t, "git@github.com:org/svc.git")

	good, err := New(root, &countingFetcher{}, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)

	broken := &countingFetcher{fail: func(int32) error { return errors.New("connection reset") }}
	got, err := New(root, broken, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.True(t, got.Stale)
	assert.Equal(t, good.Path, got.Path)
	assert.Equal(t, int32(2), broken.calls.Load(), "one retry before falling back")
}

func TestResolve_NetworkErrorWithoutCache(t *testing.T) {
	broken := &countingFetcher{fail: func(int32) error { return errors.New("no route to host") }}
	_, err := New(t.TempDir(), broken, nil).Resolve(context.Background(), mustSpec(t, "git@github.com:org/svc.git"), false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Equal(t, int32(2), broken.calls.Load())
}

func TestResolve_TransientFailureIsRetried(t *testing.T) {
	flaky := &countingFetcher{fail: func(n int32) error {
		if n == 1 {
			return errors.New("timeout")
		}
		return nil
	}}
	e, err := New(t.TempDir(), flaky, nil).Resolve(context.Background(), mustSpec(t, "git@github.com:org/svc.git"), false)
	require.NoError(t, err)
	assert.Equal(t, "fetch 2", readMarker(t, e))
}

func TestResolve_MissingRefIsNotRetried(t *testing.T) {
	f := &countingFetcher{fail: func(int32) error { return fmt.Errorf("%w: v9", ErrRefNotFound) }}
	_, err := New(t.TempDir(), f, nil).Resolve(context.Background(), mustSpec(t, "git@github.com:org/svc.git#v9"), false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindSourceResolution, apperr.KindOf(err))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := &countingFetcher{}
	s := New(t.TempDir(), f, nil)
	spec := mustSpec(t, "git@github.com:org/svc.git")

	var wg sync.WaitGroup
	paths := make([]string, 8)
	errs := make([]error, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = s.Path(context.Background(), spec, false)
		}(i)
	}
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_LeasedTreeSurvivesRefreshes(t *testing.T) {
	root := t.TempDir()
	f := &countingFetcher{}
	spec := mustSpec(t, "git@github.com:org/svc.git")

	// The reader resolves, then stalls (say on a prompt) while two other
	// invocations refresh the same source.
	reader := New(root, f, nil)
	held, err := reader.Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		other := New(root, f, nil)
		_, err := other.Resolve(context.Background(), spec, false)
		require.NoError(t, err)
		require.NoError(t, other.Close())
	}
	require.Equal(t, int32(3), f.calls.Load())
	assert.Equal(t, "fetch 1", readMarker(t, held), "a leased tree is not pruned")

	require.NoError(t, reader.Close())
	_, err = New(root, f, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	assert.NoDirExists(t, held.Path, "released trees are pruned by the next refresh")
	assert.NoFileExists(t, held.Path+leaseSuffix)
}

func TestLease_PrunedTree(t *testing.T) {
	root := t.TempDir()
	spec := mustSpec(t, "git@github.com:org/svc.git")
	e, err := New(root, &countingFetcher{}, nil).Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(e.Path))

	s := New(root, &countingFetcher{}, nil)
	ok, err := s.lease(e)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, e.Path+leaseSuffix)
}

// overlapFetcher records how many fetches run at the same time.
type overlapFetcher struct {
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
}

func (f *overlapFetcher) Fetch(_ context.Context, _ source.Spec, dest string) (string, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	c := f.calls.Add(1)
	if err := os.WriteFile(filepath.Join(dest, "marker.txt"), []byte(fmt.Sprintf("fetch %d", c)), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%040d", c), nil
}

func TestResolve_SeparateStoresSerializeOnTheLockFile(t *testing.T) {
	root := t.TempDir()
	f := &overlapFetcher{}
	spec := mustSpec(t, "git@github.com:org/svc.git")

	// Each Store stands in for its own process, so only the lock file
	// keeps their fetches apart.
	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := New(root, f, nil)
			defer s.Close()
			_, errs[i] = s.Path(context.Background(), spec, false)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(n), f.calls.Load())
	assert.Equal(t, int32(1), f.peak.Load(), "fetches of one source never overlap")
}

// gateFetcher blocks every fetch until release is closed.
type gateFetcher struct {
	arrived chan string
	release chan struct{}
}

func (f *gateFetcher) Fetch(ctx context.Context, spec source.Spec, dest string) (string, error) {
	f.arrived <- spec.String()
	select {
	case <-f.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if err := os.WriteFile(filepath.Join(dest, "marker.txt"), []byte(spec.String()), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%040d", 1), nil
}

func TestResolve_DifferentSourcesFetchIndependently(t *testing.T) {
	root := t.TempDir()
	f := &gateFetcher{arrived: make(chan string, 2), release: make(chan struct{})}
	specs := []source.Spec{
		mustSpec(t, "git@github.com:org/a.git"),
		mustSpec(t, "git@github.com:org/b.git"),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(specs))
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec source.Spec) {
			defer wg.Done()
			s := New(root, f, nil)
			defer s.Close()
			_, errs[i] = s.Resolve(context.Background(), spec, false)
		}(i, spec)
	}

	for range specs {
		select {
		case <-f.arrived:
		case <-time.After(5 * time.Second):
			close(f.release)
			wg.Wait()
			t.Fatal("a fetch of one source waited on a fetch of another")
		}
	}
	close(f.release)
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestRefresh_IgnoresProcessFreshness(t *testing.T) {
	f := &countingFetcher{}
	s := New(t.TempDir(), f, nil)
	spec := mustSpec(t, "git@github.com:org/svc.git")

	_, err := s.Resolve(context.Background(), spec, false)
	require.NoError(t, err)
	e, err := s.Refresh(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, "fetch 2", readMarker(t, e))
}

func TestListAndClean(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	s := New(t.TempDir(), &countingFetcher{}, nil)
	s.Now = func() time.Time { return now }

	a := mustSpec(t, "git@github.com:org/a.git")
	b := mustSpec(t, "git@github.com:org/b.git#dev")
	for _, spec := range []source.Spec{b, a} {
		_, err := s.Resolve(context.Background(), spec, false)
		require.NoError(t, err)
	}

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "github.com/org/a", entries[0].Source)
	assert.Equal(t, "github.com/org/b#dev", entries[1].Source)
	assert.False(t, entries[0].Outdated(now.Add(24*time.Hour), DefaultMaxAge))
	assert.True(t, entries[0].Outdated(now.Add(8*24*time.Hour), DefaultMaxAge))

	n, err := s.Clean(a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Resolve(context.Background(), a, true)
	assert.Equal(t, apperr.KindOfflineCacheMiss, apperr.KindOf(err))

	n, err = s.Clean()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	entries, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_RejectsLocalSpecs(t *testing.T) {
	_, err := New(t.TempDir(), &countingFetcher{}, nil).Resolve(context.Background(), mustSpec(t, t.TempDir()), false)
	assert.Equal(t, apperr.KindSourceResolution, apperr.KindOf(err))
}

func TestNewFetcher(t *testing.T) {
	f, err := NewFetcher("git")
	require.NoError(t, err)
	assert.IsType(t, GitCLIFetcher{}, f)

	f, err = NewFetcher("")
	require.NoError(t, err)
	assert.IsType(t, GoGitFetcher{}, f)

	_, err = NewFetcher("svn")
	assert.Error(t, err)
}
