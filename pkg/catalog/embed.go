package catalog

import (
	"embed"
	"fmt"
	"sync"

	"github.com/core-coin/yvm/pkg/platform"
	"github.com/core-coin/yvm/pkg/yvmerr"
)

//go:embed manifests/*.json
var manifests embed.FS

var manifestNames = map[platform.Platform]string{
	platform.LinuxAmd64:   "linux-amd64.json",
	platform.LinuxAarch64: "linux-aarch64.json",
	platform.MacOSAmd64:   "macos-amd64.json",
	platform.MacOSAarch64: "macos-aarch64.json",
	platform.WindowsAmd64: "windows-amd64.json",
}

var embedded = func() map[platform.Platform]func() *Releases {
	m := make(map[platform.Platform]func() *Releases, len(manifestNames))
	for p, name := range manifestNames {
		m[p] = lazyManifest(p, name)
	}
	return m
}()

// lazyManifest parses an embedded manifest on first use. The manifests ship
// inside the binary, so a parse failure is a build defect and panics.
func lazyManifest(p platform.Platform, name string) func() *Releases {
	return sync.OnceValue(func() *Releases {
		data, err := manifests.ReadFile("manifests/" + name)
		if err != nil {
			panic(fmt.Sprintf("missing ylem release manifest for %s: %v", p, err))
		}
		r, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("failed to parse ylem releases for %s, please contact maintainers: %v", p, err))
		}
		return r
	})
}

// ForPlatform returns the bundled release catalog of a platform.
// The returned value is shared and must not be modified.
func ForPlatform(p platform.Platform) (*Releases, error) {
	load, ok := embedded[p]
	if !ok {
		return nil, yvmerr.UnsupportedPlatform(p.String())
	}
	return load(), nil
}

// ManifestBytes returns the raw embedded manifest of a platform
func ManifestBytes(p platform.Platform) ([]byte, error) {
	name, err := ManifestName(p)
	if err != nil {
		return nil, err
	}
	return manifests.ReadFile("manifests/" + name)
}

// ManifestName returns the filename a platform's manifest is embedded under
func ManifestName(p platform.Platform) (string, error) {
	name, ok := manifestNames[p]
	if !ok {
		return "", yvmerr.UnsupportedPlatform(p.String())
	}
	return name, nil
}
