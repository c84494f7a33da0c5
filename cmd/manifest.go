package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/catalog"
	"github.com/core-coin/yvm/pkg/checksums"
	"github.com/core-coin/yvm/pkg/fetch"
	"github.com/core-coin/yvm/pkg/httpclient"
	"github.com/core-coin/yvm/pkg/platform"
	"github.com/core-coin/yvm/pkg/resolve"
	"github.com/spf13/cobra"
)

var (
	// Flags for manifest command
	manifestVersion   string
	manifestRepo      string
	manifestMode      string
	manifestFile      string
	manifestPlatforms []string
	manifestWrite     string
)

// ManifestCommand represents the manifest command
var ManifestCommand = &cobra.Command{
	Use:   "manifest",
	Short: "Generate release manifest entries for a ylem version",
	Long: `Produces the artifact name and SHA-256 digest of a ylem release for every
supported platform. This command supports two modes of operation:
- calculate: Downloads the artifacts and calculates checksums directly
- checksum-file: Uses a local sha256sum style checksum file

With --write the entries are merged into the bundled manifests and written to
the given directory, ready to replace pkg/catalog/manifests.`,
	Example: `  # Show entries for the latest release
  yvm manifest

  # Regenerate the manifests for a release
  yvm manifest --version 1.1.2 --write pkg/catalog/manifests

  # Use a published checksum file
  yvm manifest --version 1.1.2 --mode checksum-file --file SHA256SUMS`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("Running manifest command...")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		client := httpclient.New(cfg.Timeout)

		var mode checksums.Mode
		switch manifestMode {
		case string(checksums.ModeCalculate):
			mode = checksums.ModeCalculate
		case string(checksums.ModeChecksumFile):
			mode = checksums.ModeChecksumFile
		default:
			return fmt.Errorf("invalid mode: %s. Must be one of: calculate, checksum-file", manifestMode)
		}
		if mode == checksums.ModeChecksumFile && manifestFile == "" {
			log.Error("--file flag is required for checksum-file mode")
			return fmt.Errorf("--file flag is required for checksum-file mode")
		}

		platforms, err := parsePlatforms(manifestPlatforms)
		if err != nil {
			return err
		}

		version, err := manifestTargetVersion(ctx, client)
		if err != nil {
			return err
		}

		generator := &checksums.Generator{
			Mode:    mode,
			Version: version,
			Fetcher: &fetch.Fetcher{
				Client:  client,
				BaseURL: cfg.ReleasesURL,
			},
			Platforms:    platforms,
			ChecksumFile: manifestFile,
		}

		log.Infof("Generating checksums using %s mode for version: %s", mode, version)
		entries, err := generator.Generate(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to generate checksums")
			return err
		}

		printManifestEntries(cmd, entries)

		if manifestWrite == "" {
			return nil
		}
		return writeManifests(manifestWrite, version, entries)
	},
}

func init() {
	ManifestCommand.Flags().StringVar(&manifestVersion, "version", resolve.Latest, "Version to generate entries for")
	ManifestCommand.Flags().StringVar(&manifestRepo, "repo", resolve.DefaultRepo, "GitHub repository queried for the latest release")
	ManifestCommand.Flags().StringVarP(&manifestMode, "mode", "m", string(checksums.ModeCalculate), "Checksums acquisition mode (calculate, checksum-file)")
	ManifestCommand.Flags().StringVarP(&manifestFile, "file", "f", "", "Path to checksum file (required for checksum-file mode)")
	ManifestCommand.Flags().StringSliceVar(&manifestPlatforms, "platform", nil, "Platforms to include (default: all)")
	ManifestCommand.Flags().StringVarP(&manifestWrite, "write", "w", "", "Directory to write the merged manifests to")
}

// manifestTargetVersion resolves --version, asking GitHub for "latest"
func manifestTargetVersion(ctx context.Context, client *http.Client) (*semver.Version, error) {
	if manifestVersion != "" && manifestVersion != resolve.Latest {
		return resolve.Parse(manifestVersion)
	}

	log.Infof("Resolving latest release of %s", manifestRepo)
	v, err := resolve.LatestRelease(ctx, resolve.NewGitHubClient(client), manifestRepo)
	if err != nil {
		log.WithError(err).Error("Failed to resolve latest release")
		return nil, err
	}
	log.Infof("Latest release: %s", v)
	return v, nil
}

func parsePlatforms(names []string) ([]platform.Platform, error) {
	platforms := make([]platform.Platform, 0, len(names))
	for _, name := range names {
		p := platform.Parse(name)
		if p == platform.Unsupported {
			return nil, fmt.Errorf("unknown platform: %s", name)
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func printManifestEntries(cmd *cobra.Command, entries []checksums.Entry) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tARTIFACT\tSHA256")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Platform, e.Artifact, e.SHA256)
	}
	tw.Flush()
}

// writeManifests merges entries into the bundled manifests and writes one
// file per platform to dir
func writeManifests(dir string, version *semver.Version, entries []checksums.Entry) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).Errorf("Failed to create output directory: %s", dir)
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	for _, e := range entries {
		releases, err := catalog.ForPlatform(e.Platform)
		if err != nil {
			return err
		}
		name, err := catalog.ManifestName(e.Platform)
		if err != nil {
			return err
		}

		data, err := checksums.Encode(checksums.Merge(releases, version, e.Artifact, e.SHA256))
		if err != nil {
			return err
		}

		outputFile := filepath.Join(dir, name)
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			log.WithError(err).Errorf("Failed to write manifest: %s", outputFile)
			return fmt.Errorf("failed to write manifest %s: %w", outputFile, err)
		}
		log.Infof("Wrote %s", outputFile)
	}
	return nil
}
