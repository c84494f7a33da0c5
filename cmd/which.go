package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// WhichCommand represents the which command
var WhichCommand = &cobra.Command{
	Use:   "which",
	Short: "Print the path of the global ylem binary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(cmd)
		if err != nil {
			return err
		}

		binPath, err := m.CurrentBinary()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), binPath)
		return nil
	},
}
