// Package registry manages the yvm data root: one directory per installed
// ylem version plus a pointer file naming the global version.
//
// The filesystem is the only state. Every call re-reads it, so concurrent
// processes working on the same root always see each other's changes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/pkg/errors"
)

const (
	// GlobalVersionFile holds the canonical string of the global version,
	// or nothing when unset.
	GlobalVersionFile = ".global-version"

	lockFilePrefix = ".lock-ylem-"
)

// Registry is a view onto one data root
type Registry struct {
	Root string
}

// New returns a Registry rooted at root
func New(root string) *Registry {
	return &Registry{Root: root}
}

// VersionDir returns the directory holding the artifact of version
func (r *Registry) VersionDir(version *semver.Version) string {
	return filepath.Join(r.Root, version.String())
}

// BinaryPath returns the installed ylem executable path of version
func (r *Registry) BinaryPath(version *semver.Version) string {
	return filepath.Join(r.VersionDir(version), BinaryName(version))
}

// BinaryName is the file name of an installed ylem executable
func BinaryName(version *semver.Version) string {
	return fmt.Sprintf("ylem-%s", version)
}

// GlobalVersionPath returns the path of the global version pointer file
func (r *Registry) GlobalVersionPath() string {
	return filepath.Join(r.Root, GlobalVersionFile)
}

// LockPath returns the install lock path of version
func (r *Registry) LockPath(version *semver.Version) string {
	return filepath.Join(r.Root, lockFilePrefix+version.String())
}

// Setup creates the data root and an empty global version file if they do
// not exist yet. Calling it repeatedly is harmless.
func (r *Registry) Setup() error {
	if err := os.MkdirAll(r.Root, 0755); err != nil {
		return errors.Wrap(err, "failed to create data directory")
	}

	path := r.GlobalVersionPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to stat global version file")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to create global version file")
	}
	log.WithField("path", r.Root).Debug("initialized data directory")
	return errors.Wrap(f.Close(), "failed to close global version file")
}

// InstalledVersions lists the versions with a directory under the root,
// sorted ascending. A directory whose name is not a version makes the whole
// listing fail with yvmerr.ErrUnknownVersion. Files such as the global
// version pointer or lock files are not versions and are skipped.
func (r *Registry) InstalledVersions() ([]*semver.Version, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read data directory")
	}

	var versions []*semver.Version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := semver.StrictNewVersion(entry.Name())
		if err != nil {
			return nil, yvmerr.UnknownVersion(entry.Name())
		}
		versions = append(versions, v)
	}

	sort.Sort(semver.Collection(versions))
	return versions, nil
}

// IsInstalled reports whether version has a directory under the root
func (r *Registry) IsInstalled(version *semver.Version) (bool, error) {
	info, err := os.Stat(r.VersionDir(version))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to stat version directory")
	}
	return info.IsDir(), nil
}

// CurrentVersion returns the global version, or nil when the pointer file is
// empty or does not hold a version.
func (r *Registry) CurrentVersion() (*semver.Version, error) {
	data, err := os.ReadFile(r.GlobalVersionPath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read global version")
	}

	content := strings.TrimRight(string(data), "\r\n")
	if content == "" {
		return nil, nil
	}

	v, err := semver.StrictNewVersion(content)
	if err != nil {
		log.WithField("content", content).Debug("global version file does not hold a version")
		return nil, nil
	}
	return v, nil
}

// SetGlobalVersion records version as the global version
func (r *Registry) SetGlobalVersion(version *semver.Version) error {
	if err := os.WriteFile(r.GlobalVersionPath(), []byte(version.String()), 0644); err != nil {
		return errors.Wrap(err, "failed to write global version")
	}
	log.WithField("version", version.String()).Debug("global version set")
	return nil
}

// UnsetGlobalVersion clears the global version
func (r *Registry) UnsetGlobalVersion() error {
	if err := os.WriteFile(r.GlobalVersionPath(), nil, 0644); err != nil {
		return errors.Wrap(err, "failed to clear global version")
	}
	log.Debug("global version unset")
	return nil
}

// RemoveVersion deletes the directory of version and everything in it.
// Removing a version that is not installed fails with an error wrapping
// fs.ErrNotExist. The global version pointer is left untouched.
func (r *Registry) RemoveVersion(version *semver.Version) error {
	dir := r.VersionDir(version)
	if _, err := os.Lstat(dir); err != nil {
		return errors.Wrapf(err, "failed to remove ylem %s", version)
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "failed to remove ylem %s", version)
	}
	log.WithField("version", version.String()).Debug("removed version directory")
	return nil
}
