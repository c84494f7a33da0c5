package cmd

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	dataDir    string
	verbose    bool
	quiet      bool
	assumeYes  bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "yvm",
	Short: "Version manager for the ylem compiler",
	Long: `yvm (ylem version manager) installs, switches and removes versions of the ylem
compiler. Releases are downloaded from GitHub and verified against SHA-256
digests shipped inside yvm before they are installed.

The ylem launcher runs whichever version is currently selected with 'yvm use'.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.New(cmd.ErrOrStderr()))
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.Debugf("Verbose logging enabled")
		} else if quiet {
			log.SetLevel(log.ErrorLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
		log.Debugf("Config file: %s", configFile)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		log.WithError(err).Fatal("command execution failed")
	}
}

func init() {
	// Disable automatic command sorting to maintain semantic order
	cobra.EnableCommandSorting = false

	// Add global flags
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: $XDG_CONFIG_HOME/yvm/config.yml)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding installed versions (default: ~/.yvm)")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Increase log verbosity")
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress output")
	RootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation prompt")

	// Add command groups
	RootCmd.AddGroup(&cobra.Group{
		ID:    "versions",
		Title: "Version Commands:",
	})
	RootCmd.AddGroup(&cobra.Group{
		ID:    "utility",
		Title: "Utility Commands:",
	})

	// Set group for built-in commands
	RootCmd.SetHelpCommandGroupID("utility")
	RootCmd.SetCompletionCommandGroupID("utility")

	ListCommand.GroupID = "versions"
	InstallCommand.GroupID = "versions"
	UseCommand.GroupID = "versions"
	RemoveCommand.GroupID = "versions"
	WhichCommand.GroupID = "versions"
	CheckCommand.GroupID = "utility"
	ManifestCommand.GroupID = "utility"

	RootCmd.AddCommand(ListCommand)
	RootCmd.AddCommand(InstallCommand)
	RootCmd.AddCommand(UseCommand)
	RootCmd.AddCommand(RemoveCommand)
	RootCmd.AddCommand(WhichCommand)
	RootCmd.AddCommand(CheckCommand)
	RootCmd.AddCommand(ManifestCommand)
}
