package resolve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/core-coin/yvm/pkg/catalog"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/google/go-github/v72/github"
	"github.com/pkg/errors"
)

// Latest is the version argument naming the newest release
const Latest = "latest"

// DefaultRepo is the GitHub repository ylem is released from
const DefaultRepo = "core-coin/ylem"

// Version resolves a user supplied version argument against releases.
// "latest" names the newest cataloged version. Anything that is not a
// version, or not in the catalog, fails with yvmerr.ErrUnknownVersion.
func Version(releases *catalog.Releases, arg string) (*semver.Version, error) {
	if arg == Latest {
		latest := releases.Latest()
		if latest == nil {
			return nil, yvmerr.UnknownVersion(arg)
		}
		return latest, nil
	}

	v, err := Parse(arg)
	if err != nil {
		return nil, err
	}
	if !releases.Contains(v) {
		return nil, yvmerr.UnknownVersion(arg)
	}
	return v, nil
}

// Parse parses a version argument without consulting a catalog. A leading
// "v" is tolerated.
func Parse(arg string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(arg, "v"))
	if err != nil {
		return nil, yvmerr.UnknownVersion(arg)
	}
	return v, nil
}

// NewGitHubClient creates a GitHub API client on top of httpClient, which may
// be nil. GITHUB_TOKEN is used for authentication when set.
func NewGitHubClient(httpClient *http.Client) *github.Client {
	client := github.NewClient(httpClient)

	// Use GitHub token if available
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

// LatestRelease returns the version of the newest upstream release of repo
func LatestRelease(ctx context.Context, client *github.Client, repo string) (*semver.Version, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid repository format: %s", repo)
	}

	release, resp, err := client.Repositories.GetLatestRelease(ctx, parts[0], parts[1])
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			// Try to list releases and get the first one
			releases, _, err := client.Repositories.ListReleases(ctx, parts[0], parts[1], &github.ListOptions{
				PerPage: 1,
			})
			if err != nil {
				return nil, errors.Wrap(err, "failed to fetch releases")
			}
			if len(releases) == 0 {
				return nil, fmt.Errorf("no releases found for %s", repo)
			}
			return Parse(releases[0].GetTagName())
		}
		return nil, errors.Wrap(err, "failed to fetch latest release")
	}

	return Parse(release.GetTagName())
}
