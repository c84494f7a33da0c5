package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/catalog"
	"github.com/core-coin/yvm/pkg/httpclient"
	"github.com/core-coin/yvm/pkg/verify"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/pkg/errors"
)

// DefaultReleasesURL is where upstream ylem release artifacts are published
const DefaultReleasesURL = "https://github.com/core-coin/ylem/releases/download"

// MaxArtifactSize bounds a single download. Larger responses, announced or
// streamed, fail with *yvmerr.TransportError wrapping ErrArtifactTooLarge.
var MaxArtifactSize int64 = 512 << 20

// preallocLimit caps the buffer reserved up front from Content-Length
const preallocLimit = 64 << 20

// ErrArtifactTooLarge is wrapped when a response exceeds MaxArtifactSize
var ErrArtifactTooLarge = errors.New("artifact exceeds size limit")

// ProgressFunc is a callback for download progress. total is -1 when the
// server did not announce a length.
type ProgressFunc func(downloaded, total int64)

// Fetcher downloads release artifacts and verifies them against a catalog
type Fetcher struct {
	// Client performs the requests; its Timeout bounds each download
	Client *http.Client
	// BaseURL is the release download root, DefaultReleasesURL when empty
	BaseURL string
	// Progress is called while the body is read, if set
	Progress ProgressFunc
}

// New creates a Fetcher with the default client and release URL
func New() *Fetcher {
	return &Fetcher{
		Client:  httpclient.New(httpclient.DefaultTimeout),
		BaseURL: DefaultReleasesURL,
	}
}

// ArtifactURL builds the download URL of an artifact: <base>/<version>/<artifact>
func ArtifactURL(base string, version *semver.Version, artifact string) string {
	if base == "" {
		base = DefaultReleasesURL
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), version, artifact)
}

// URL returns the download URL of a version's artifact in releases
func (f *Fetcher) URL(releases *catalog.Releases, version *semver.Version) (string, error) {
	artifact, ok := releases.Artifact(version)
	if !ok {
		return "", yvmerr.UnknownVersion(version.String())
	}
	return ArtifactURL(f.BaseURL, version, artifact), nil
}

// FetchAndVerify downloads the artifact of version and returns its bytes once
// their SHA-256 matches the catalog. Nothing is retried.
//
// A version that has an artifact but no recorded checksum is a broken
// catalog; installing it unverified is never an option, so this panics.
func (f *Fetcher) FetchAndVerify(ctx context.Context, releases *catalog.Releases, version *semver.Version) ([]byte, error) {
	url, err := f.URL(releases, version)
	if err != nil {
		return nil, err
	}

	data, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	expected, ok := releases.Checksum(version)
	if !ok {
		panic(fmt.Sprintf("checksum not available: %q", version.String()))
	}

	if err := verify.Checksum(version.String(), data, expected); err != nil {
		log.WithError(err).WithField("version", version.String()).Debug("discarding downloaded artifact")
		return nil, err
	}

	log.WithFields(log.Fields{
		"version": version.String(),
		"bytes":   len(data),
	}).Debug("artifact verified")
	return data, nil
}

// Get downloads url into memory. Non-2xx statuses are reported as
// *yvmerr.UnsuccessfulResponseError, transport failures and timeouts as
// *yvmerr.TransportError.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = httpclient.New(httpclient.DefaultTimeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	log.WithField("url", url).Debug("downloading artifact")
	resp, err := client.Do(req)
	if err != nil {
		return nil, &yvmerr.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &yvmerr.UnsuccessfulResponseError{URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > MaxArtifactSize {
		return nil, &yvmerr.TransportError{URL: url, Err: ErrArtifactTooLarge}
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(min(resp.ContentLength, preallocLimit)))
	}

	var body io.Reader = resp.Body
	if f.Progress != nil {
		body = &progressReader{Reader: resp.Body, Total: resp.ContentLength, report: f.Progress}
	}

	// One byte past the limit tells an oversized body from an exact fit
	n, err := io.Copy(&buf, io.LimitReader(body, MaxArtifactSize+1))
	if err != nil {
		return nil, &yvmerr.TransportError{URL: url, Err: err}
	}
	if n > MaxArtifactSize {
		return nil, &yvmerr.TransportError{URL: url, Err: ErrArtifactTooLarge}
	}

	return buf.Bytes(), nil
}

// Head checks that url answers a HEAD request with a 2xx status
func (f *Fetcher) Head(ctx context.Context, url string) error {
	client := f.Client
	if client == nil {
		client = httpclient.New(httpclient.DefaultTimeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return &yvmerr.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &yvmerr.UnsuccessfulResponseError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// progressReader wraps an io.Reader to report progress
type progressReader struct {
	io.Reader
	Total   int64
	Current int64
	report  ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		pr.report(pr.Current, pr.Total)
	}
	return n, err
}
