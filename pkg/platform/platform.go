package platform

import (
	"context"
	"runtime"
	"strings"

	"github.com/apex/log"
	"github.com/shirou/gopsutil/v4/host"
)

// Platform identifies a host OS/architecture pair that ylem releases exist for
type Platform int

const (
	Unsupported Platform = iota
	LinuxAmd64
	LinuxAarch64
	MacOSAmd64
	MacOSAarch64
	WindowsAmd64
)

// String returns the display form of the platform
func (p Platform) String() string {
	switch p {
	case LinuxAmd64:
		return "linux-x86_64"
	case LinuxAarch64:
		return "linux-aarch64"
	case MacOSAmd64:
		return "macos-x86_64"
	case MacOSAarch64:
		return "macos-aarch64"
	case WindowsAmd64:
		return "windows-x86_64"
	default:
		return "unsupported"
	}
}

// Parse maps a display string back to a Platform. Unknown strings yield Unsupported.
func Parse(s string) Platform {
	for _, p := range All() {
		if strings.EqualFold(p.String(), s) {
			return p
		}
	}
	return Unsupported
}

// All returns every supported platform
func All() []Platform {
	return []Platform{LinuxAmd64, LinuxAarch64, MacOSAmd64, MacOSAarch64, WindowsAmd64}
}

// Resolve returns the platform of the running process
func Resolve() Platform {
	return For(runtime.GOOS, runtime.GOARCH)
}

// For maps Go's GOOS/GOARCH values to a Platform
func For(goos, goarch string) Platform {
	switch goos {
	case "linux":
		switch goarch {
		case "amd64":
			return LinuxAmd64
		case "arm64":
			return LinuxAarch64
		}
	case "darwin":
		switch goarch {
		case "amd64":
			return MacOSAmd64
		case "arm64":
			return MacOSAarch64
		}
	case "windows":
		if goarch == "amd64" {
			return WindowsAmd64
		}
	}
	return Unsupported
}

// AssetName returns the upstream artifact filename a platform's raw binary is
// published under. Installs always use the catalog; this is only used when
// new manifest entries are generated.
func AssetName(p Platform) string {
	switch p {
	case LinuxAmd64:
		return "ylem-linux-amd64"
	case LinuxAarch64:
		return "ylem-linux-arm64"
	case MacOSAmd64:
		return "ylem-darwin-x86_64"
	case MacOSAarch64:
		return "ylem-darwin-arm64"
	case WindowsAmd64:
		return "ylem-windows-amd64.exe"
	default:
		return ""
	}
}

// IsNixOS reports whether the host runs NixOS, whose dynamic linker lives
// outside the standard FHS path. Detection failures count as "not NixOS".
func IsNixOS(ctx context.Context) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	name, _, _, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		log.WithError(err).Debug("linux distribution detection failed")
		return false
	}
	return strings.EqualFold(strings.TrimSpace(name), "nixos")
}
