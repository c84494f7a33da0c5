package install

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/archive"
	"github.com/core-coin/yvm/pkg/registry"
	"github.com/pkg/errors"
)

// NixPatchConstraint selects the releases that are not fully static and need
// their dynamic linker patched on NixOS.
var NixPatchConstraint = mustConstraint(">=0.7.6")

// legacyZipBinary is the executable name inside zipped releases
const legacyZipBinary = "ylem.exe"

// Installer writes verified artifacts into the registry
type Installer struct {
	Registry *registry.Registry
	// Patcher fixes up the dynamic linker when NixOS is set
	Patcher Patcher
	// NixOS enables linker patching for versions matching NixPatchConstraint
	NixOS bool
}

// Install writes data, the verified artifact of version, into the version
// directory and returns the path of the ylem executable. The caller holds the
// install lock of version.
//
// Raw artifacts land through a temporary file renamed into place, so a
// crashed install never leaves a truncated executable at the final path.
func (i *Installer) Install(ctx context.Context, version *semver.Version, artifact string, data []byte) (string, error) {
	versionDir := i.Registry.VersionDir(version)
	if err := os.MkdirAll(versionDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create version directory")
	}

	targetPath, err := filepath.Abs(i.Registry.BinaryPath(version))
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve binary path")
	}

	switch archive.DetectFormat(artifact) {
	case archive.FormatZip:
		if err := installZip(data, versionDir, targetPath); err != nil {
			return "", err
		}
	default:
		if err := writeBinary(data, versionDir, targetPath); err != nil {
			return "", err
		}
	}

	log.WithFields(log.Fields{
		"version": version.String(),
		"path":    targetPath,
	}).Debug("binary installed")

	if i.NixOS && NixPatchConstraint.Check(version) {
		patcher := i.Patcher
		if patcher == nil {
			patcher = PatchelfPatcher{}
		}
		log.WithField("path", targetPath).Debug("patching dynamic linker for NixOS")
		if err := patcher.Patch(ctx, targetPath); err != nil {
			return "", err
		}
	}

	return targetPath, nil
}

// writeBinary writes data to targetPath with executable permissions
func writeBinary(data []byte, targetDir, targetPath string) error {
	// Create temporary file in target directory for atomic replacement
	tmpFile, err := os.CreateTemp(targetDir, "."+filepath.Base(targetPath)+"-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmpPath := tmpFile.Name()

	// Clean up on error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "failed to write binary")
	}

	// Set executable permissions
	if runtime.GOOS != "windows" {
		if err := tmpFile.Chmod(0755); err != nil {
			tmpFile.Close()
			return errors.Wrap(err, "failed to set permissions")
		}
	}

	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close temporary file")
	}

	if err := atomicInstall(tmpPath, targetPath); err != nil {
		return err
	}

	success = true
	return nil
}

// installZip extracts a zipped release into the version directory and moves
// its executable to targetPath
func installZip(data []byte, versionDir, targetPath string) error {
	if err := archive.ExtractZip(data, versionDir); err != nil {
		return err
	}
	return atomicInstall(filepath.Join(versionDir, legacyZipBinary), targetPath)
}

// atomicInstall performs an atomic file replacement
func atomicInstall(sourcePath, targetPath string) error {
	// On Unix, rename is atomic
	if err := os.Rename(sourcePath, targetPath); err != nil {
		// On Windows or cross-device, fall back to remove + rename
		if runtime.GOOS == "windows" || os.IsExist(err) {
			if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "failed to remove existing file")
			}
			if err := os.Rename(sourcePath, targetPath); err != nil {
				return errors.Wrap(err, "failed to install binary")
			}
		} else {
			return errors.Wrap(err, "failed to install binary")
		}
	}
	return nil
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}
