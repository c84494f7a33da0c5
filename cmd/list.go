package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var (
	// Flags for list command
	listOutput string
)

// versionList is the machine readable form of the list command output
type versionList struct {
	Platform  string   `json:"platform" yaml:"platform"`
	Current   string   `json:"current,omitempty" yaml:"current,omitempty"`
	Installed []string `json:"installed" yaml:"installed"`
	Available []string `json:"available" yaml:"available"`
}

// ListCommand represents the list command
var ListCommand = &cobra.Command{
	Use:   "list",
	Short: "List all versions of ylem",
	Long: `Lists the global version, the installed versions and the versions that are
available for this platform but not installed yet.`,
	Example: `  # Show versions
  yvm list

  # Machine readable output
  yvm list --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(cmd)
		if err != nil {
			return err
		}

		installed, err := m.Registry().InstalledVersions()
		if err != nil {
			log.WithError(err).Error("Failed to read installed versions")
			return err
		}
		current, err := m.Registry().CurrentVersion()
		if err != nil {
			return err
		}
		available := availableVersions(m.AllVersions(), installed)

		w := cmd.OutOrStdout()
		switch listOutput {
		case "text", "":
			printVersionsText(w, m, current, installed, available)
			return nil
		case "json", "yaml":
			list := versionList{
				Platform:  m.Platform().String(),
				Installed: versionStrings(installed),
				Available: versionStrings(available),
			}
			if current != nil {
				list.Current = current.String()
			}
			return writeStructured(w, listOutput, list)
		default:
			return fmt.Errorf("invalid output format: %s (expected text, json or yaml)", listOutput)
		}
	},
}

func init() {
	ListCommand.Flags().StringVarP(&listOutput, "output", "o", "text", "Output format (text, json, yaml)")
}

// availableVersions returns the versions of all that are not installed
func availableVersions(all, installed []*semver.Version) []*semver.Version {
	seen := make(map[string]bool, len(installed))
	for _, v := range installed {
		seen[v.String()] = true
	}

	var available []*semver.Version
	for _, v := range all {
		if !seen[v.String()] {
			available = append(available, v)
		}
	}
	return available
}

func printVersionsText(w io.Writer, m *yvm.Manager, current *semver.Version, installed, available []*semver.Version) {
	fmt.Fprintln(w, headerStyle.Render("Current version:"))
	if current != nil {
		fmt.Fprintf(w, "  %s\n", currentStyle.Render(current.String()))
	} else {
		fmt.Fprintf(w, "  %s\n", faintStyle.Render("none"))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Installed versions:"))
	if len(installed) == 0 {
		fmt.Fprintf(w, "  %s\n", faintStyle.Render("none"))
	}
	for _, v := range installed {
		marker := " "
		label := v.String()
		if current != nil && current.Equal(v) {
			marker = "*"
			label = currentStyle.Render(label)
		}
		size := ""
		if info, err := os.Stat(m.BinaryPath(v)); err == nil {
			size = faintStyle.Render(fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size()))))
		}
		fmt.Fprintf(w, "%s %s%s\n", marker, label, size)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Available versions (%s):", m.Platform())))
	if len(available) == 0 {
		fmt.Fprintf(w, "  %s\n", faintStyle.Render("none"))
	}
	for _, v := range available {
		fmt.Fprintf(w, "  %s\n", v)
	}
}

// writeStructured encodes v as json or yaml
func writeStructured(w io.Writer, format string, v any) error {
	if format == "yaml" {
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionStrings(versions []*semver.Version) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.String())
	}
	return out
}
