package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/archive"
	"github.com/core-coin/yvm/pkg/fetch"
	"github.com/core-coin/yvm/pkg/verify"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/spf13/cobra"
)

var (
	// Flags for check command
	checkInstalled bool
	checkJobs      int
)

// CheckCommand represents the check command
var CheckCommand = &cobra.Command{
	Use:   "check",
	Short: "Check release artifacts and installed binaries",
	Long: `Checks the bundled release catalog of this platform by:
- Sending a HEAD request for every cataloged artifact (default)
- Re-hashing installed binaries against the catalog (--installed)

This makes it easy to spot releases that moved upstream or binaries that were
damaged after installation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if checkInstalled {
			log.Info("Verifying installed binaries...")
			if err := checkInstalledBinaries(cmd.OutOrStdout(), m); err != nil {
				log.WithError(err).Error("Installed binary check failed")
				return err
			}
		} else {
			log.Infof("Checking release artifacts for %s...", m.Platform())
			if err := checkArtifactsExist(ctx, cmd.OutOrStdout(), m, checkJobs); err != nil {
				log.WithError(err).Error("Artifact availability check failed")
				return fmt.Errorf("artifact availability check failed: %w", err)
			}
		}

		log.Info("✓ Check completed successfully")
		return nil
	},
}

func init() {
	CheckCommand.Flags().BoolVar(&checkInstalled, "installed", false, "Verify installed binaries instead of remote artifacts")
	CheckCommand.Flags().IntVarP(&checkJobs, "jobs", "j", 4, "Number of concurrent requests")
}

// checkResult is the outcome of checking one version
type checkResult struct {
	Version  *semver.Version
	Artifact string
	Status   string
	OK       bool
}

// checkArtifactsExist sends a HEAD request for every cataloged artifact and
// renders the results as a table
func checkArtifactsExist(ctx context.Context, w io.Writer, m *yvm.Manager, jobs int) error {
	versions := m.AllVersions()
	results := make([]checkResult, len(versions))

	if jobs < 1 {
		jobs = 1
	}
	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup

	for i, v := range versions {
		wg.Add(1)
		go func(i int, v *semver.Version) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			artifact, _ := m.Catalog().Artifact(v)
			url := fetch.ArtifactURL(m.Fetcher().BaseURL, v, artifact)
			log.Debugf("Checking %s", url)

			result := checkResult{Version: v, Artifact: artifact, Status: "✓ EXISTS", OK: true}
			if err := m.Fetcher().Head(ctx, url); err != nil {
				log.WithError(err).Debugf("HEAD %s failed", url)
				result.Status = "✗ MISSING"
				result.OK = false
			}
			results[i] = result
		}(i, v)
	}
	wg.Wait()

	missing := renderCheckTable(w, results)
	if missing > 0 {
		return fmt.Errorf("%d of %d artifacts are missing", missing, len(results))
	}
	return nil
}

// checkInstalledBinaries re-hashes installed raw binaries against the
// catalog to detect damaged installs
func checkInstalledBinaries(w io.Writer, m *yvm.Manager) error {
	installed, err := m.Registry().InstalledVersions()
	if err != nil {
		return err
	}
	if len(installed) == 0 {
		log.Info("No versions installed")
		return nil
	}

	results := make([]checkResult, 0, len(installed))
	for _, v := range installed {
		artifact, ok := m.Catalog().Artifact(v)
		result := checkResult{Version: v, Artifact: artifact, OK: true}

		expected, hasChecksum := m.Catalog().Checksum(v)
		switch {
		case !ok || !hasChecksum:
			result.Status = "- NOT IN CATALOG"
		case archive.DetectFormat(artifact) == archive.FormatZip:
			// The checksum covers the archive, not the extracted binary
			result.Status = "- SKIPPED (archive)"
		default:
			if err := verify.ChecksumFile(v.String(), m.BinaryPath(v), expected); err != nil {
				log.WithError(err).Debugf("ylem %s failed verification", v)
				result.Status = "✗ MISMATCH"
				result.OK = false
			} else {
				result.Status = "✓ OK"
			}
		}
		results = append(results, result)
	}

	if bad := renderCheckTable(w, results); bad > 0 {
		return fmt.Errorf("%d installed binaries do not match the catalog, reinstall them with 'yvm remove' and 'yvm install'", bad)
	}
	return nil
}

// renderCheckTable writes the results and returns how many failed
func renderCheckTable(w io.Writer, results []checkResult) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tARTIFACT\tSTATUS")
	failed := 0
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Version, r.Artifact, r.Status)
		if !r.OK {
			failed++
		}
	}
	tw.Flush()
	return failed
}
