package cmd

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"
)

// errNoSelection is returned by pickVersion when the user aborts
var errNoSelection = errors.New("no version selected")

// pickVersion lets the user choose one of versions interactively
var pickVersion = func(versions []*semver.Version, current *semver.Version) (*semver.Version, error) {
	idx, err := fuzzyfinder.Find(
		versions,
		func(i int) string {
			if current != nil && current.Equal(versions[i]) {
				return versions[i].String() + " (current)"
			}
			return versions[i].String()
		},
		fuzzyfinder.WithPromptString("ylem> "),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, errNoSelection
		}
		return nil, fmt.Errorf("fuzzy finder failed: %w", err)
	}
	return versions[idx], nil
}

// UseCommand represents the use command
var UseCommand = &cobra.Command{
	Use:   "use [VERSION]",
	Short: "Set the global ylem version",
	Long: `Makes an installed ylem version the global version run by the ylem launcher.

A version that is available but not installed can be installed on the spot.
Without an argument the version is picked interactively from the installed
versions.`,
	Example: `  # Switch to a version
  yvm use 1.1.2

  # Pick from installed versions
  yvm use`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(cmd)
		if err != nil {
			return err
		}

		var v *semver.Version
		if len(args) == 0 {
			v, err = selectInstalled(m)
			if errors.Is(err, errNoSelection) {
				return nil
			}
		} else {
			v, err = parseVersionArg(m, args[0])
		}
		if err != nil {
			return err
		}

		return useVersion(cmd, m, v)
	},
}

func selectInstalled(m *yvm.Manager) (*semver.Version, error) {
	installed, err := m.Registry().InstalledVersions()
	if err != nil {
		return nil, err
	}
	if len(installed) == 0 {
		return nil, fmt.Errorf("no ylem versions installed, run 'yvm install' first")
	}
	current, err := m.Registry().CurrentVersion()
	if err != nil {
		return nil, err
	}
	return pickVersion(installed, current)
}

func useVersion(cmd *cobra.Command, m *yvm.Manager, v *semver.Version) error {
	w := cmd.OutOrStdout()

	installed, err := m.Registry().IsInstalled(v)
	if err != nil {
		return err
	}
	if installed {
		if err := m.Use(v); err != nil {
			return err
		}
		fmt.Fprintf(w, "Global version set: %s\n", v)
		return nil
	}

	if !m.Catalog().Contains(v) {
		log.Warnf("Version %s is not supported on %s", v, m.Platform())
		return nil
	}

	fmt.Fprintf(w, "Ylem %s is not installed\n", v)
	ok, err := confirm(cmd, "Would you like to install it?")
	if err != nil || !ok {
		return err
	}

	progress := newDownloadProgress(cmd.ErrOrStderr())
	if !quiet {
		m.Fetcher().Progress = progress.Report
	}
	return installVersion(cmd.Context(), cmd, m, progress, v)
}
