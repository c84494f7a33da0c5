// Package lock serializes work on a shared path across goroutines and
// processes with an exclusive OS file lock.
//
// Every acquisition opens its own descriptor, so two goroutines of one
// process exclude each other exactly like two separate processes do. The
// lock file is transient: it is created on acquisition and removed on
// release. To keep removal safe, an acquirer that finds the path no longer
// names the file it locked drops that lock and starts over, so at most one
// holder exists for a path at any time.
package lock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// PollInterval is how often a contended lock is retried while waiting
var PollInterval = 50 * time.Millisecond

// Lock is a held exclusive file lock
type Lock struct {
	path string
	file *os.File
}

// Acquire blocks until the exclusive lock on path is held or ctx is done.
// The lock file and its parent directory are created if absent.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create lock directory")
	}

	waiting := false
	for {
		l, err := tryAcquire(path)
		if err != nil {
			return nil, err
		}
		if l != nil {
			if waiting {
				log.WithField("path", path).Debug("lock acquired after waiting")
			}
			return l, nil
		}

		if !waiting {
			log.WithField("path", path).Debug("waiting for lock held by another install")
			waiting = true
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
}

// tryAcquire makes one non-blocking attempt. It returns a nil Lock without
// error when the lock is held elsewhere or the file was replaced underneath.
func tryAcquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open lock file")
	}

	locked, err := tryLockFile(file)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to lock file")
	}
	if !locked {
		file.Close()
		return nil, nil
	}

	// The previous holder may have removed the file between our open and
	// our lock; a lock on an unlinked inode protects nothing.
	if !stillLinked(file, path) {
		unlockFile(file)
		file.Close()
		return nil, nil
	}

	return &Lock{path: path, file: file}, nil
}

func stillLinked(file *os.File, path string) bool {
	held, err := file.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file and releases the lock. Removing the file is
// best effort; the lock itself is always released.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	if removeWhileLocked {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", l.path).Debug("could not remove lock file")
		}
	}

	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if !removeWhileLocked {
		// Fails harmlessly while another process still has the file open.
		os.Remove(l.path)
	}

	if unlockErr != nil {
		return errors.Wrap(unlockErr, "failed to unlock file")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "failed to close lock file")
	}
	return nil
}

// WithLock runs body while holding the exclusive lock on path. The lock is
// released on every exit path, including a panic in body.
func WithLock(ctx context.Context, path string, body func() error) (err error) {
	l, err := Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := l.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	return body()
}
