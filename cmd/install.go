package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/spf13/cobra"
)

// InstallCommand represents the install command
var InstallCommand = &cobra.Command{
	Use:   "install VERSION...",
	Short: "Install ylem versions",
	Long: `Downloads, verifies and installs the given ylem versions.

The first version installed while no global version is set becomes the global
version. Installing a version that is already present offers to make it the
global version instead.`,
	Example: `  # Install a specific version
  yvm install 1.1.2

  # Install the newest version available for this platform
  yvm install latest

  # Install several versions without prompts
  yvm install 1.0.1 1.1.2 --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	progress := newDownloadProgress(cmd.ErrOrStderr())
	var opts []yvm.Option
	if !quiet {
		opts = append(opts, yvm.WithProgress(progress.Report))
	}

	m, err := newManager(cmd, opts...)
	if err != nil {
		return err
	}

	var unsupported []string
	for _, arg := range args {
		v, err := parseVersionArg(m, arg)
		if err != nil {
			return err
		}
		if err := installVersion(cmd.Context(), cmd, m, progress, v); err != nil {
			if errors.Is(err, yvmerr.ErrUnknownVersion) {
				unsupported = append(unsupported, v.String())
				continue
			}
			return err
		}
	}

	if len(unsupported) > 0 {
		return fmt.Errorf("%w: %s not available for %s", yvmerr.ErrUnknownVersion, strings.Join(unsupported, ", "), m.Platform())
	}
	return nil
}

// installVersion installs one version, following the interactive rules of
// the install command
func installVersion(ctx context.Context, cmd *cobra.Command, m *yvm.Manager, progress *downloadProgress, v *semver.Version) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	installed, err := m.Registry().IsInstalled(v)
	if err != nil {
		return err
	}
	if installed {
		fmt.Fprintf(w, "Ylem %s is already installed\n", v)
		ok, err := confirm(cmd, "Would you like to set it as the global version?")
		if err != nil || !ok {
			return err
		}
		if err := m.Use(v); err != nil {
			return err
		}
		fmt.Fprintf(w, "Global version set: %s\n", v)
		return nil
	}

	if !m.Catalog().Contains(v) {
		log.Warnf("Version %s is not supported on %s", v, m.Platform())
		return yvmerr.UnknownVersion(v.String())
	}

	current, err := m.Registry().CurrentVersion()
	if err != nil {
		return err
	}

	log.Infof("Downloading ylem %s", v)
	progress.Start(fmt.Sprintf("ylem %s", v))
	binPath, err := m.Install(ctx, v)
	progress.Finish()
	if err != nil {
		log.WithError(err).Errorf("Failed to install ylem %s", v)
		return err
	}
	fmt.Fprintf(w, "Downloaded Ylem: %s\n", v)
	log.Debugf("Installed to %s", binPath)

	if current == nil {
		if err := m.Registry().SetGlobalVersion(v); err != nil {
			return err
		}
		fmt.Fprintf(w, "Global version set: %s\n", v)
	}
	return nil
}
