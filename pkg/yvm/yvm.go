// Package yvm installs and switches between versions of the ylem compiler.
//
// A Manager ties the platform catalog, the download pipeline and the data
// root together. Installs are verified in memory before anything touches the
// disk, then written under a per-version lock so that concurrent installs of
// one version, from goroutines or separate processes, serialize.
package yvm

import (
	"context"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/catalog"
	"github.com/core-coin/yvm/pkg/config"
	"github.com/core-coin/yvm/pkg/fetch"
	"github.com/core-coin/yvm/pkg/httpclient"
	"github.com/core-coin/yvm/pkg/install"
	"github.com/core-coin/yvm/pkg/lock"
	"github.com/core-coin/yvm/pkg/platform"
	"github.com/core-coin/yvm/pkg/registry"
	"github.com/core-coin/yvm/pkg/yvmerr"
)

// Manager manages the ylem versions of one data root
type Manager struct {
	platform  platform.Platform
	releases  *catalog.Releases
	registry  *registry.Registry
	fetcher   *fetch.Fetcher
	installer *install.Installer
}

// Option customizes a Manager
type Option func(*options)

type options struct {
	platform   platform.Platform
	releases   *catalog.Releases
	patcher    install.Patcher
	nixos      *bool
	httpClient *http.Client
	progress   fetch.ProgressFunc
}

// WithPlatform overrides the detected host platform
func WithPlatform(p platform.Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithCatalog replaces the embedded catalog of the platform
func WithCatalog(releases *catalog.Releases) Option {
	return func(o *options) { o.releases = releases }
}

// WithPatcher replaces the NixOS linker patcher
func WithPatcher(p install.Patcher) Option {
	return func(o *options) { o.patcher = p }
}

// WithNixOS overrides NixOS detection
func WithNixOS(enabled bool) Option {
	return func(o *options) { o.nixos = &enabled }
}

// WithHTTPClient replaces the download client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithProgress reports download progress
func WithProgress(fn fetch.ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// New creates a Manager for cfg. Without WithCatalog the host platform must
// be supported, otherwise the error wraps yvmerr.ErrUnsupportedPlatform.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &options{platform: platform.Resolve()}
	for _, opt := range opts {
		opt(o)
	}

	releases := o.releases
	if releases == nil {
		var err error
		releases, err = catalog.ForPlatform(o.platform)
		if err != nil {
			return nil, err
		}
	}

	client := o.httpClient
	if client == nil {
		client = httpclient.New(cfg.Timeout)
	}

	nixos := false
	switch {
	case o.nixos != nil:
		nixos = *o.nixos
	case cfg.NixPatch != nil:
		nixos = *cfg.NixPatch
	default:
		nixos = platform.IsNixOS(context.Background())
	}

	reg := registry.New(cfg.DataDir)
	return &Manager{
		platform: o.platform,
		releases: releases,
		registry: reg,
		fetcher: &fetch.Fetcher{
			Client:   client,
			BaseURL:  cfg.ReleasesURL,
			Progress: o.progress,
		},
		installer: &install.Installer{
			Registry: reg,
			Patcher:  o.patcher,
			NixOS:    nixos,
		},
	}, nil
}

// Platform returns the platform the catalog belongs to
func (m *Manager) Platform() platform.Platform {
	return m.platform
}

// Catalog returns the release catalog in use
func (m *Manager) Catalog() *catalog.Releases {
	return m.releases
}

// Registry returns the data root view
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Fetcher returns the download pipeline
func (m *Manager) Fetcher() *fetch.Fetcher {
	return m.fetcher
}

// AllVersions lists every version available for the platform, ascending
func (m *Manager) AllVersions() []*semver.Version {
	return m.releases.Versions()
}

// BinaryPath returns the ylem executable path of version
func (m *Manager) BinaryPath(version *semver.Version) string {
	return m.registry.BinaryPath(version)
}

// Install downloads, verifies and installs version and returns the path of
// its ylem executable. An unknown version fails with yvmerr.ErrUnknownVersion
// before any version directory is created. A download that fails
// verification leaves nothing behind.
func (m *Manager) Install(ctx context.Context, version *semver.Version) (string, error) {
	if err := m.registry.Setup(); err != nil {
		return "", err
	}

	artifact, ok := m.releases.Artifact(version)
	if !ok {
		return "", yvmerr.UnknownVersion(version.String())
	}

	logger := log.WithFields(log.Fields{
		"version":  version.String(),
		"platform": m.platform.String(),
	})
	logger.Debug("installing ylem")

	data, err := m.fetcher.FetchAndVerify(ctx, m.releases, version)
	if err != nil {
		return "", err
	}

	var binPath string
	err = lock.WithLock(ctx, m.registry.LockPath(version), func() error {
		var installErr error
		binPath, installErr = m.installer.Install(ctx, version, artifact, data)
		return installErr
	})
	if err != nil {
		return "", err
	}

	logger.WithField("path", binPath).Debug("ylem installed")
	return binPath, nil
}

// Remove deletes an installed version. When it was the global version the
// newest remaining installed version becomes global, or the global version
// is unset if none remain. It returns the new global version, which may be
// nil.
func (m *Manager) Remove(version *semver.Version) (*semver.Version, error) {
	current, err := m.registry.CurrentVersion()
	if err != nil {
		return nil, err
	}

	if err := m.registry.RemoveVersion(version); err != nil {
		return nil, err
	}

	if current == nil || !current.Equal(version) {
		return current, nil
	}

	remaining, err := m.registry.InstalledVersions()
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		return nil, m.registry.UnsetGlobalVersion()
	}

	newest := remaining[len(remaining)-1]
	if err := m.registry.SetGlobalVersion(newest); err != nil {
		return nil, err
	}
	return newest, nil
}

// Use makes an installed version global
func (m *Manager) Use(version *semver.Version) error {
	installed, err := m.registry.IsInstalled(version)
	if err != nil {
		return err
	}
	if !installed {
		return yvmerr.UnknownVersion(version.String())
	}
	return m.registry.SetGlobalVersion(version)
}

// CurrentBinary returns the executable of the global version
func (m *Manager) CurrentBinary() (string, error) {
	current, err := m.registry.CurrentVersion()
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", yvmerr.ErrGlobalVersionNotSet
	}
	return m.registry.BinaryPath(current), nil
}
