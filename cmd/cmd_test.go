package cmd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/core-coin/yvm/pkg/catalog"
	"github.com/core-coin/yvm/pkg/config"
	"github.com/core-coin/yvm/pkg/platform"
	"github.com/core-coin/yvm/pkg/registry"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv points every command at a fake release server and a temporary
// data root
type testEnv struct {
	dataDir   string
	server    *httptest.Server
	artifacts map[string][]byte
}

func fakeBinary(version string) []byte {
	return []byte(fmt.Sprintf("\x7fELF ylem %s %s", version, strings.Repeat("y", 2048)))
}

func newTestEnv(t *testing.T, versions ...string) *testEnv {
	t.Helper()

	env := &testEnv{
		dataDir:   filepath.Join(t.TempDir(), ".yvm"),
		artifacts: make(map[string][]byte, len(versions)),
	}
	var builds, releases []string
	for _, v := range versions {
		data := fakeBinary(v)
		env.artifacts[v] = data
		sum := sha256.Sum256(data)
		builds = append(builds, fmt.Sprintf(`{"version": %q, "sha256": %q}`, v, hex.EncodeToString(sum[:])))
		releases = append(releases, fmt.Sprintf(`%q: "ylem-linux-amd64"`, v))
	}
	cat, err := catalog.Parse([]byte(fmt.Sprintf(`{"builds": [%s], "releases": {%s}}`,
		strings.Join(builds, ","), strings.Join(releases, ","))))
	require.NoError(t, err)

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		data, ok := env.artifacts[parts[0]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Write(data)
	}))
	t.Cleanup(env.server.Close)

	origManager, origInteractive, origStdin, origPick := newManager, isInteractive, stdin, pickVersion
	t.Cleanup(func() {
		newManager, isInteractive, stdin, pickVersion = origManager, origInteractive, origStdin, origPick
	})

	newManager = func(cmd *cobra.Command, opts ...yvm.Option) (*yvm.Manager, error) {
		cfg := &config.Config{
			DataDir:     env.dataDir,
			ReleasesURL: env.server.URL,
			Timeout:     time.Minute,
		}
		opts = append([]yvm.Option{
			yvm.WithPlatform(platform.LinuxAmd64),
			yvm.WithCatalog(cat),
			yvm.WithHTTPClient(env.server.Client()),
			yvm.WithNixOS(false),
		}, opts...)
		m, err := yvm.New(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return m, m.Registry().Setup()
	}
	isInteractive = func() bool { return false }
	stdin = strings.NewReader("")
	pickVersion = func([]*semver.Version, *semver.Version) (*semver.Version, error) {
		return nil, errNoSelection
	}

	return env
}

func (e *testEnv) registry() *registry.Registry {
	return registry.New(e.dataDir)
}

func resetFlags() {
	configFile, dataDir = "", ""
	verbose, quiet, assumeYes = false, false, false
	listOutput = "text"
	checkInstalled, checkJobs = false, 4
	manifestVersion, manifestRepo = "latest", "core-coin/ylem"
	manifestMode, manifestFile, manifestWrite = "calculate", "", ""
	manifestPlatforms = nil
}

// run executes the root command and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.Execute()
	return stdout.String(), err
}

func listJSON(t *testing.T) versionList {
	t.Helper()
	out, err := run(t, "list", "--output", "json")
	require.NoError(t, err)

	var list versionList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	return list
}

func TestListEmpty(t *testing.T) {
	newTestEnv(t, "1.0.1", "1.1.2")

	list := listJSON(t)
	assert.Equal(t, "linux-x86_64", list.Platform)
	assert.Empty(t, list.Current)
	assert.Empty(t, list.Installed)
	assert.Equal(t, []string{"1.0.1", "1.1.2"}, list.Available)
}

func TestListFormats(t *testing.T) {
	newTestEnv(t, "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.1", "--quiet")
	require.NoError(t, err)

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, "list", "-o", "yaml")
		require.NoError(t, err)

		var list versionList
		require.NoError(t, yaml.Unmarshal([]byte(out), &list))
		assert.Equal(t, "1.0.1", list.Current)
		assert.Equal(t, []string{"1.0.1"}, list.Installed)
		assert.Equal(t, []string{"1.1.2"}, list.Available)
	})

	t.Run("text", func(t *testing.T) {
		out, err := run(t, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version:")
		assert.Contains(t, out, "* 1.0.1")
		assert.Contains(t, out, "Available versions (linux-x86_64):")
		assert.Contains(t, out, "  1.1.2")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := run(t, "list", "-o", "xml")
		assert.ErrorContains(t, err, "invalid output format")
	})
}

func TestInstallSetsFirstVersionGlobal(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")

	out, err := run(t, "install", "1.0.1", "1.1.2", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded Ylem: 1.0.1")
	assert.Contains(t, out, "Downloaded Ylem: 1.1.2")
	assert.Equal(t, 1, strings.Count(out, "Global version set:"))

	reg := env.registry()
	current, err := reg.CurrentVersion()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "1.0.1", current.String())

	data, err := os.ReadFile(reg.BinaryPath(semver.MustParse("1.1.2")))
	require.NoError(t, err)
	assert.Equal(t, env.artifacts["1.1.2"], data)
}

func TestInstallLatest(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")

	_, err := run(t, "install", "latest", "--quiet")
	require.NoError(t, err)

	installed, err := env.registry().InstalledVersions()
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "1.1.2", installed[0].String())
}

func TestInstallUnsupportedVersion(t *testing.T) {
	env := newTestEnv(t, "1.0.1")

	out, err := run(t, "install", "9.9.9", "1.0.1", "--quiet")
	require.Error(t, err)
	assert.True(t, errors.Is(err, yvmerr.ErrUnknownVersion))
	assert.Contains(t, err.Error(), "9.9.9")

	// Supported versions in the same invocation are still installed
	assert.Contains(t, out, "Downloaded Ylem: 1.0.1")
	assert.NoDirExists(t, filepath.Join(env.dataDir, "9.9.9"))
}

func TestInstallInvalidVersion(t *testing.T) {
	newTestEnv(t, "1.0.1")

	_, err := run(t, "install", "not-a-version")
	assert.True(t, errors.Is(err, yvmerr.ErrUnknownVersion))
}

func TestInstallAlreadyInstalled(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.1", "1.1.2", "--quiet")
	require.NoError(t, err)

	t.Run("declined without a terminal", func(t *testing.T) {
		out, err := run(t, "install", "1.1.2")
		require.NoError(t, err)
		assert.Contains(t, out, "Ylem 1.1.2 is already installed")

		current, err := env.registry().CurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, "1.0.1", current.String())
	})

	t.Run("accepted with --yes", func(t *testing.T) {
		out, err := run(t, "install", "1.1.2", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Global version set: 1.1.2")

		current, err := env.registry().CurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, "1.1.2", current.String())
	})
}

func TestUse(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.1", "--quiet")
	require.NoError(t, err)

	t.Run("not installed and declined", func(t *testing.T) {
		out, err := run(t, "use", "1.1.2")
		require.NoError(t, err)
		assert.Contains(t, out, "Ylem 1.1.2 is not installed")

		installed, err := env.registry().IsInstalled(semver.MustParse("1.1.2"))
		require.NoError(t, err)
		assert.False(t, installed)
	})

	t.Run("not installed and accepted", func(t *testing.T) {
		out, err := run(t, "use", "1.1.2", "--yes", "--quiet")
		require.NoError(t, err)
		assert.Contains(t, out, "Downloaded Ylem: 1.1.2")

		installed, err := env.registry().IsInstalled(semver.MustParse("1.1.2"))
		require.NoError(t, err)
		assert.True(t, installed)
	})

	t.Run("installed", func(t *testing.T) {
		out, err := run(t, "use", "1.1.2")
		require.NoError(t, err)
		assert.Contains(t, out, "Global version set: 1.1.2")

		current, err := env.registry().CurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, "1.1.2", current.String())
	})

	t.Run("unsupported", func(t *testing.T) {
		out, err := run(t, "use", "9.9.9")
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestUseInteractivePick(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.1", "1.1.2", "--quiet")
	require.NoError(t, err)

	t.Run("aborted", func(t *testing.T) {
		_, err := run(t, "use")
		require.NoError(t, err)

		current, err := env.registry().CurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, "1.0.1", current.String())
	})

	t.Run("picked", func(t *testing.T) {
		var offered []string
		pickVersion = func(versions []*semver.Version, current *semver.Version) (*semver.Version, error) {
			offered = versionStrings(versions)
			assert.Equal(t, "1.0.1", current.String())
			return versions[1], nil
		}

		out, err := run(t, "use")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0.1", "1.1.2"}, offered)
		assert.Contains(t, out, "Global version set: 1.1.2")
	})
}

func TestRemove(t *testing.T) {
	env := newTestEnv(t, "1.0.0", "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.0", "1.0.1", "1.1.2", "--quiet")
	require.NoError(t, err)
	_, err = run(t, "use", "1.0.1")
	require.NoError(t, err)

	t.Run("declined without a terminal", func(t *testing.T) {
		_, err := run(t, "remove", "1.0.1")
		require.NoError(t, err)
		assert.DirExists(t, filepath.Join(env.dataDir, "1.0.1"))
	})

	t.Run("global falls back to newest remaining", func(t *testing.T) {
		out, err := run(t, "remove", "1.0.1", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Removed ylem 1.0.1")
		assert.Contains(t, out, "Global version set: 1.1.2")
		assert.NoDirExists(t, filepath.Join(env.dataDir, "1.0.1"))
	})

	t.Run("non global keeps current", func(t *testing.T) {
		out, err := run(t, "rm", "1.0.0", "--yes")
		require.NoError(t, err)
		assert.NotContains(t, out, "Global version")

		current, err := env.registry().CurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, "1.1.2", current.String())
	})

	t.Run("not installed", func(t *testing.T) {
		out, err := run(t, "remove", "1.0.0", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Ylem 1.0.0 is not installed")
	})

	t.Run("last version unsets global", func(t *testing.T) {
		out, err := run(t, "remove", "1.1.2", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Global version unset")

		current, err := env.registry().CurrentVersion()
		require.NoError(t, err)
		assert.Nil(t, current)
	})
}

func TestRemoveAll(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.1", "1.1.2", "--quiet")
	require.NoError(t, err)

	_, err = run(t, "remove", "all", "--yes")
	require.NoError(t, err)

	reg := env.registry()
	installed, err := reg.InstalledVersions()
	require.NoError(t, err)
	assert.Empty(t, installed)

	current, err := reg.CurrentVersion()
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.FileExists(t, reg.GlobalVersionPath())
}

func TestWhich(t *testing.T) {
	env := newTestEnv(t, "1.1.2")

	_, err := run(t, "which")
	assert.True(t, errors.Is(err, yvmerr.ErrGlobalVersionNotSet))

	_, err = run(t, "install", "1.1.2", "--quiet")
	require.NoError(t, err)

	out, err := run(t, "which")
	require.NoError(t, err)
	assert.Equal(t, env.registry().BinaryPath(semver.MustParse("1.1.2")), strings.TrimSpace(out))
}

func TestCheckArtifacts(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")

	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.Equal(t, 2, strings.Count(out, "✓ EXISTS"))

	delete(env.artifacts, "1.0.1")
	out, err = run(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 artifacts are missing")
	assert.Contains(t, out, "✗ MISSING")
}

func TestCheckInstalled(t *testing.T) {
	env := newTestEnv(t, "1.0.1", "1.1.2")
	_, err := run(t, "install", "1.0.1", "1.1.2", "--quiet")
	require.NoError(t, err)

	out, err := run(t, "check", "--installed")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "✓ OK"))

	// Simulate a truncated write
	binPath := env.registry().BinaryPath(semver.MustParse("1.1.2"))
	require.NoError(t, os.WriteFile(binPath, env.artifacts["1.1.2"][:100], 0755))

	out, err = run(t, "check", "--installed")
	require.Error(t, err)
	assert.Contains(t, out, "✗ MISMATCH")
}

func TestConfirm(t *testing.T) {
	newTestEnv(t)
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})

	tests := []struct {
		name        string
		assumeYes   bool
		interactive bool
		input       string
		want        bool
	}{
		{name: "assume yes", assumeYes: true, want: true},
		{name: "not a terminal", interactive: false, want: false},
		{name: "empty answer defaults to yes", interactive: true, input: "\n", want: true},
		{name: "yes", interactive: true, input: "yes\n", want: true},
		{name: "no", interactive: true, input: "n\n", want: false},
		{name: "eof", interactive: true, input: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			assumeYes = tt.assumeYes
			isInteractive = func() bool { return tt.interactive }
			stdin = strings.NewReader(tt.input)

			got, err := confirm(cmd, "Continue?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManifestWrite(t *testing.T) {
	env := newTestEnv(t, "7.7.7")

	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"data_dir: %s\nreleases_url: %s\n", env.dataDir, env.server.URL)), 0644))
	outDir := filepath.Join(t.TempDir(), "manifests")

	out, err := run(t, "manifest", "-c", cfgPath,
		"--version", "7.7.7",
		"--platform", "linux-x86_64",
		"--write", outDir)
	require.NoError(t, err)

	sum := sha256.Sum256(env.artifacts["7.7.7"])
	assert.Contains(t, out, hex.EncodeToString(sum[:]))

	data, err := os.ReadFile(filepath.Join(outDir, "linux-amd64.json"))
	require.NoError(t, err)
	releases, err := catalog.Parse(data)
	require.NoError(t, err)

	v := semver.MustParse("7.7.7")
	got, ok := releases.Checksum(v)
	require.True(t, ok)
	assert.Equal(t, sum[:], got)

	// Existing releases are kept
	bundled, err := catalog.ForPlatform(platform.LinuxAmd64)
	require.NoError(t, err)
	assert.Len(t, releases.Versions(), len(bundled.Versions())+1)

	// Only the requested platform is written
	assert.NoFileExists(t, filepath.Join(outDir, "windows-amd64.json"))
}

func TestManifestInvalidFlags(t *testing.T) {
	newTestEnv(t)

	_, err := run(t, "manifest", "--mode", "download", "--version", "1.0.0")
	assert.ErrorContains(t, err, "invalid mode")

	_, err = run(t, "manifest", "--mode", "checksum-file", "--version", "1.0.0")
	assert.ErrorContains(t, err, "--file flag is required")

	_, err = run(t, "manifest", "--platform", "plan9-mips", "--version", "1.0.0")
	assert.ErrorContains(t, err, "unknown platform")
}
