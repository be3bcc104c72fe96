package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/userdata"
)

// keyedMutex serializes goroutines of this process per cache key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// lockSlot takes the exclusive lock for key, first within the process and
// then across processes through a lock file. It blocks until the lock is
// held; the returned func releases both.
func (s *Store) lockSlot(key string) (func(), error) {
	m := s.locks.get(key)
	m.Lock()

	dir := userdata.LockDir(s.Root)
	if err := os.MkdirAll(dir, userdata.DirPermNormal); err != nil {
		m.Unlock()
		return nil, apperr.Wrap(apperr.KindCacheLock, "lock cache slot", key, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, key+".lock"), os.O_CREATE|os.O_RDWR, userdata.FilePermNormal)
	if err != nil {
		m.Unlock()
		return nil, apperr.Wrap(apperr.KindCacheLock, "lock cache slot", key, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		m.Unlock()
		return nil, apperr.Wrap(apperr.KindCacheLock, "lock cache slot", key, fmt.Errorf("acquiring file lock: %w", err))
	}
	return func() {
		_ = unlockFile(f)
		f.Close()
		m.Unlock()
	}, nil
}

const leaseSuffix = ".lock"

// lease holds a shared lock on the lock file next to e's tree until the Store
// is closed. prune skips any tree it cannot lock exclusively, so a tree stays
// on disk while some process is still reading it. lease reports false when
// the tree was pruned before the lock was taken.
func (s *Store) lease(e *Entry) (bool, error) {
	s.mu.Lock()
	_, held := s.leases[e.Path]
	s.mu.Unlock()
	if held {
		return true, nil
	}

	name := e.Path + leaseSuffix
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, userdata.FilePermNormal)
	if err != nil {
		return false, apperr.Wrap(apperr.KindCacheLock, "lease cache tree", e.Path, err)
	}
	if err := lockFileShared(f); err != nil {
		f.Close()
		return false, apperr.Wrap(apperr.KindCacheLock, "lease cache tree", e.Path, fmt.Errorf("acquiring file lock: %w", err))
	}
	if _, err := os.Stat(e.Path); err != nil {
		_ = unlockFile(f)
		f.Close()
		os.Remove(name)
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.leases[e.Path]; held {
		_ = unlockFile(f)
		f.Close()
		return true, nil
	}
	if s.leases == nil {
		s.leases = make(map[string]*os.File)
	}
	s.leases[e.Path] = f
	return true, nil
}

// Close releases the trees this Store resolved so later refreshes may prune
// them. The Store stays usable.
func (s *Store) Close() error {
	s.mu.Lock()
	leases := s.leases
	s.leases = nil
	s.mu.Unlock()

	var errs []error
	for _, f := range leases {
		if err := unlockFile(f); err != nil {
			errs = append(errs, err)
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// removeTree deletes an unleased tree and its lock file. It reports false
// when a reader still holds the tree.
func removeTree(dir string) (bool, error) {
	f, err := os.OpenFile(dir+leaseSuffix, os.O_CREATE|os.O_RDWR, userdata.FilePermNormal)
	if err != nil {
		return false, err
	}
	defer f.Close()
	ok, err := tryLockFile(f)
	if err != nil || !ok {
		return false, err
	}
	defer unlockFile(f)
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	os.Remove(dir + leaseSuffix)
	return true, nil
}
