package cmd

import (
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/resolve"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/spf13/cobra"
)

// RemoveCommand represents the remove command
var RemoveCommand = &cobra.Command{
	Use:     "remove VERSION|all",
	Aliases: []string{"rm", "uninstall"},
	Short:   "Remove a ylem version",
	Long: `Removes an installed ylem version. When the removed version was the global
version, the newest remaining version becomes global.

'all' removes every installed version and unsets the global version.`,
	Example: `  # Remove one version
  yvm remove 1.0.0

  # Remove everything without asking
  yvm remove all --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(cmd)
		if err != nil {
			return err
		}

		if strings.EqualFold(args[0], "all") {
			return removeAll(cmd, m)
		}

		v, err := resolve.Parse(args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		installed, err := m.Registry().IsInstalled(v)
		if err != nil {
			return err
		}
		if !installed {
			fmt.Fprintf(w, "Ylem %s is not installed\n", v)
			return nil
		}

		ok, err := confirm(cmd, fmt.Sprintf("Remove ylem %s. Are you sure?", v))
		if err != nil || !ok {
			return err
		}

		before, err := m.Registry().CurrentVersion()
		if err != nil {
			return err
		}
		after, err := m.Remove(v)
		if err != nil {
			log.WithError(err).Errorf("Failed to remove ylem %s", v)
			return err
		}
		fmt.Fprintf(w, "Removed ylem %s\n", v)

		if before != nil && before.Equal(v) {
			if after != nil {
				fmt.Fprintf(w, "Global version set: %s\n", after)
			} else {
				fmt.Fprintln(w, "Global version unset")
			}
		}
		return nil
	},
}

func removeAll(cmd *cobra.Command, m *yvm.Manager) error {
	installed, err := m.Registry().InstalledVersions()
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, fmt.Sprintf("Remove all %d installed ylem versions?", len(installed)))
	if err != nil || !ok {
		return err
	}

	w := cmd.OutOrStdout()
	for _, v := range installed {
		if err := m.Registry().RemoveVersion(v); err != nil {
			log.WithError(err).Errorf("Failed to remove ylem %s", v)
			return err
		}
		fmt.Fprintf(w, "Removed ylem %s\n", v)
	}

	return m.Registry().UnsetGlobalVersion()
}
