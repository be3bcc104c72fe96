package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/logging"
	"github.com/igr88/archetect/internal/source"
	"github.com/igr88/archetect/internal/userdata"
)

// Store is a cache rooted at a directory. It is safe for concurrent use.
type Store struct {
	Root    string
	Fetcher Fetcher
	Logger  *slog.Logger
	Now     func() time.Time

	locks keyedMutex

	mu     sync.Mutex
	fresh  map[string]bool // slots refreshed by this process
	leases map[string]*os.File
}

// New returns a Store rooted at root. A nil fetcher means GoGitFetcher.
func New(root string, fetcher Fetcher, logger *slog.Logger) *Store {
	if fetcher == nil {
		fetcher = GoGitFetcher{}
	}
	return &Store{Root: root, Fetcher: fetcher, Logger: logger}
}

// NewFetcher returns the fetcher registered under name ("go-git" or "git").
func NewFetcher(name string) (Fetcher, error) {
	switch name {
	case "", "go-git":
		return GoGitFetcher{}, nil
	case "git":
		return GitCLIFetcher{}, nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q (want go-git or git)", name)
	}
}

func (s *Store) log() *slog.Logger { return logging.OrDiscard(s.Logger) }

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) slot(spec source.Spec) string {
	return filepath.Join(userdata.GitCacheDir(s.Root), spec.Key())
}

func (s *Store) isFresh(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh[key]
}

func (s *Store) markFresh(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh == nil {
		s.fresh = make(map[string]bool)
	}
	s.fresh[key] = true
}

// Path resolves spec and returns the local path of its tree.
func (s *Store) Path(ctx context.Context, spec source.Spec, offline bool) (string, error) {
	e, err := s.Resolve(ctx, spec, offline)
	if err != nil {
		return "", err
	}
	return e.Path, nil
}

// Resolve returns the cache entry for spec, fetching it when needed.
//
// Offline, only an existing entry is returned and the fetcher is never
// called. Online, a pinned spec that is already cached is returned as is;
// anything else is refreshed at most once per Store. When a refresh fails
// and an older copy exists, the older copy is returned with Stale set and a
// warning is logged.
//
// The returned tree is leased until Close, so refreshes by other processes
// do not prune it while it is being read.
func (s *Store) Resolve(ctx context.Context, spec source.Spec, offline bool) (*Entry, error) {
	for attempt := 1; ; attempt++ {
		e, err := s.resolve(ctx, spec, offline)
		if err != nil {
			return nil, err
		}
		ok, err := s.lease(e)
		if err != nil {
			return nil, err
		}
		if ok {
			return e, nil
		}
		if attempt == maxLeaseAttempts {
			return nil, apperr.New(apperr.KindSourceResolution, "resolve cached source", spec.String(),
				"cached tree kept disappearing while it was being resolved")
		}
		s.log().Debug("cached tree was pruned before it could be leased, resolving again", "path", e.Path)
	}
}

const maxLeaseAttempts = 3

func (s *Store) resolve(ctx context.Context, spec source.Spec, offline bool) (*Entry, error) {
	if !spec.IsRemote() {
		return nil, apperr.New(apperr.KindSourceResolution, "resolve cached source", spec.String(), "only remote sources are cached")
	}
	key := spec.Key()
	slot := s.slot(spec)

	if offline {
		e, err := loadEntry(slot)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindSourceResolution, "resolve cached source", spec.String(), err)
		}
		if e == nil {
			return nil, apperr.New(apperr.KindOfflineCacheMiss, "resolve cached source", spec.String(),
				"source is not cached and network access is disabled")
		}
		s.log().Debug("using cached source", "source", spec.String(), "commit", e.Commit)
		return e, nil
	}

	if spec.Pinned() || s.isFresh(key) {
		if e, err := loadEntry(slot); err == nil && e != nil {
			return e, nil
		}
	}

	unlock, err := s.lockSlot(key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, err := loadEntry(slot)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "resolve cached source", spec.String(), err)
	}
	if prev != nil && (spec.Pinned() || s.isFresh(key)) {
		return prev, nil
	}

	e, err := s.fetch(ctx, spec, slot, prev)
	if err != nil {
		if prev != nil && ctx.Err() == nil {
			s.log().Warn("refresh failed, using cached copy",
				"source", spec.String(), "fetched_at", prev.FetchedAt.Format(time.RFC3339), "error", err)
			prev.Stale = true
			s.markFresh(key)
			return prev, nil
		}
		return nil, err
	}
	s.markFresh(key)
	return e, nil
}

// Refresh fetches spec unconditionally, unless it is pinned and already
// cached. Unlike Resolve it reports a failed fetch even when an older copy
// exists.
func (s *Store) Refresh(ctx context.Context, spec source.Spec) (*Entry, error) {
	if !spec.IsRemote() {
		return nil, apperr.New(apperr.KindSourceResolution, "refresh cached source", spec.String(), "only remote sources are cached")
	}
	key := spec.Key()
	slot := s.slot(spec)

	unlock, err := s.lockSlot(key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, err := loadEntry(slot)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "refresh cached source", spec.String(), err)
	}
	if prev != nil && spec.Pinned() {
		return prev, nil
	}
	e, err := s.fetch(ctx, spec, slot, prev)
	if err != nil {
		return nil, err
	}
	s.markFresh(key)
	return e, nil
}

// fetch stages a new tree for spec and swaps it into slot. The caller holds
// the slot lock.
func (s *Store) fetch(ctx context.Context, spec source.Spec, slot string, prev *Entry) (*Entry, error) {
	staging := userdata.StagingRoot(s.Root)
	if err := os.MkdirAll(staging, userdata.DirPermNormal); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "stage source", spec.String(), err)
	}
	stage, err := os.MkdirTemp(staging, spec.Key()+"-")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "stage source", spec.String(), err)
	}
	defer os.RemoveAll(stage)

	if prev == nil {
		s.log().Info("cloning", "source", spec.String())
	} else {
		s.log().Info("fetching", "source", spec.String())
	}
	commit, err := s.fetchWithRetry(ctx, spec, stage)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(slot, userdata.DirPermNormal); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "update cache", spec.String(), err)
	}
	now := s.now()
	tree := fmt.Sprintf("%s%s-%d", treePrefix, shortCommit(commit), now.UnixNano())
	if err := os.Rename(stage, filepath.Join(slot, tree)); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "update cache", spec.String(), err)
	}

	e := &Entry{
		Source:    spec.Normalized(),
		URL:       spec.URL,
		Ref:       spec.Ref,
		Commit:    commit,
		Tree:      tree,
		FetchedAt: now.UTC(),
		Key:       filepath.Base(slot),
		Path:      filepath.Join(slot, tree),
	}
	if prev != nil {
		e.Previous = prev.Tree
	}
	if err := saveEntry(slot, e); err != nil {
		os.RemoveAll(e.Path)
		return nil, apperr.Wrap(apperr.KindSourceResolution, "update cache", spec.String(), err)
	}
	s.prune(slot, e)
	s.log().Debug("cached source", "source", spec.String(), "commit", commit, "path", e.Path)
	return e, nil
}

func (s *Store) fetchWithRetry(ctx context.Context, spec source.Spec, stage string) (string, error) {
	commit, err := s.Fetcher.Fetch(ctx, spec, stage)
	if err != nil && !permanent(err) && ctx.Err() == nil {
		s.log().Info("fetch failed, retrying once", "source", spec.String(), "error", err)
		if rerr := resetDir(stage); rerr != nil {
			return "", apperr.Wrap(apperr.KindSourceResolution, "stage source", spec.String(), rerr)
		}
		commit, err = s.Fetcher.Fetch(ctx, spec, stage)
	}
	if err != nil {
		if errors.Is(err, ErrRefNotFound) || errors.Is(err, ErrNoDefaultBranch) {
			return "", apperr.Wrap(apperr.KindSourceResolution, "fetch source", spec.String(), err)
		}
		return "", apperr.Wrap(apperr.KindNetwork, "fetch source", spec.String(), err)
	}
	return commit, nil
}

// prune removes trees other than the current and previous one, skipping any
// tree a reader still leases.
func (s *Store) prune(slot string, e *Entry) {
	entries, err := os.ReadDir(slot)
	if err != nil {
		return
	}
	for _, de := range entries {
		name := de.Name()
		if !de.IsDir() || !strings.HasPrefix(name, treePrefix) || name == e.Tree || name == e.Previous {
			continue
		}
		dir := filepath.Join(slot, name)
		removed, err := removeTree(dir)
		switch {
		case err != nil:
			s.log().Debug("could not prune cache tree", "path", dir, "error", err)
		case !removed:
			s.log().Debug("cache tree is in use, keeping it", "path", dir)
		}
	}
}

// List returns every populated entry, sorted by source.
func (s *Store) List() ([]*Entry, error) {
	dir := userdata.GitCacheDir(s.Root)
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	var out []*Entry
	for _, de := range des {
		if !de.IsDir() {
			continue
		}
		e, err := loadEntry(filepath.Join(dir, de.Name()))
		if err != nil {
			s.log().Warn("skipping unreadable cache entry", "slot", de.Name(), "error", err)
			continue
		}
		if e != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// Clean removes the slots of specs, or the whole cache when none are given.
// It returns the number of slots removed.
func (s *Store) Clean(specs ...source.Spec) (int, error) {
	var keys []string
	if len(specs) == 0 {
		des, err := os.ReadDir(userdata.GitCacheDir(s.Root))
		if err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("reading cache directory: %w", err)
		}
		for _, de := range des {
			if de.IsDir() {
				keys = append(keys, de.Name())
			}
		}
	} else {
		for _, spec := range specs {
			if !spec.IsRemote() {
				return 0, apperr.New(apperr.KindSourceResolution, "clean cache", spec.String(), "only remote sources are cached")
			}
			keys = append(keys, spec.Key())
		}
	}

	removed := 0
	for _, key := range keys {
		slot := filepath.Join(userdata.GitCacheDir(s.Root), key)
		if _, err := os.Stat(slot); os.IsNotExist(err) {
			continue
		}
		unlock, err := s.lockSlot(key)
		if err != nil {
			return removed, err
		}
		err = os.RemoveAll(slot)
		unlock()
		if err != nil {
			return removed, fmt.Errorf("removing cache slot %s: %w", key, err)
		}
		s.mu.Lock()
		delete(s.fresh, key)
		s.mu.Unlock()
		removed++
	}
	if len(specs) == 0 {
		if err := os.RemoveAll(userdata.StagingRoot(s.Root)); err != nil {
			return removed, fmt.Errorf("removing staging directory: %w", err)
		}
	}
	return removed, nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, userdata.DirPermNormal)
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	if commit == "" {
		return "unknown"
	}
	return commit
}
