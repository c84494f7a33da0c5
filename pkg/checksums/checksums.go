package checksums

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/catalog"
	"github.com/core-coin/yvm/pkg/fetch"
	"github.com/core-coin/yvm/pkg/platform"
)

// Mode represents the checksum acquisition mode
type Mode string

const (
	// ModeCalculate downloads artifacts and calculates checksums
	ModeCalculate Mode = "calculate"
	// ModeChecksumFile uses a local sha256sum style file
	ModeChecksumFile Mode = "checksum-file"
)

// Entry is the manifest data of one version on one platform
type Entry struct {
	Platform platform.Platform
	Artifact string
	SHA256   catalog.HexBytes
}

// Generator produces manifest entries for a new ylem release
type Generator struct {
	Mode    Mode
	Version *semver.Version
	// Fetcher downloads artifacts in calculate mode
	Fetcher *fetch.Fetcher
	// Platforms to generate entries for, all supported platforms when empty
	Platforms []platform.Platform
	// ChecksumFile is read in checksum-file mode
	ChecksumFile string
}

// Generate returns one entry per platform the release could be hashed for,
// in platform order. Platforms whose artifact is unavailable are skipped
// with a warning; it is an error when none remain.
func (g *Generator) Generate(ctx context.Context) ([]Entry, error) {
	if g.Version == nil {
		return nil, fmt.Errorf("version is required")
	}

	var (
		entries []Entry
		err     error
	)
	switch g.Mode {
	case ModeCalculate, "":
		entries, err = g.calculateChecksums(ctx)
	case ModeChecksumFile:
		entries, err = g.checksumsFromFile()
	default:
		return nil, fmt.Errorf("invalid mode: %s", g.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate checksums: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Platform < entries[j].Platform })
	return entries, nil
}

func (g *Generator) platforms() []platform.Platform {
	if len(g.Platforms) > 0 {
		return g.Platforms
	}
	return platform.All()
}

// ArtifactName returns the artifact filename of version on p: the cataloged
// name when the version is already known, the default upstream name otherwise
func ArtifactName(p platform.Platform, version *semver.Version) string {
	if releases, err := catalog.ForPlatform(p); err == nil {
		if artifact, ok := releases.Artifact(version); ok {
			return artifact
		}
	}
	return platform.AssetName(p)
}

// checksumsFromFile maps the entries of a local checksum file to platforms
func (g *Generator) checksumsFromFile() ([]Entry, error) {
	if g.ChecksumFile == "" {
		return nil, fmt.Errorf("checksum file path is required for checksum-file mode")
	}

	log.Infof("Parsing checksums from file: %s", g.ChecksumFile)
	sums, err := parseChecksumFile(g.ChecksumFile)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, p := range g.platforms() {
		artifact := ArtifactName(p, g.Version)
		hash, ok := sums[artifact]
		if !ok {
			log.Warnf("No checksum for %s (%s)", artifact, p)
			continue
		}
		sum, err := hex.DecodeString(hash)
		if err != nil {
			return nil, fmt.Errorf("invalid checksum for %s: %w", artifact, err)
		}
		entries = append(entries, Entry{Platform: p, Artifact: artifact, SHA256: sum})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no checksum in %s matches a ylem artifact", g.ChecksumFile)
	}
	return entries, nil
}

// parseChecksumFile parses a checksum file and returns a map of filename to hash
func parseChecksumFile(checksumFile string) (map[string]string, error) {
	checksums := make(map[string]string)

	file, err := os.Open(checksumFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Format: <hash> [*]<filename>
		parts := strings.Fields(line)
		if len(parts) < 2 {
			log.Warnf("Ignoring invalid checksum line: %s", line)
			continue
		}

		// If the filename starts with *, remove it (binary mode marker)
		checksums[strings.TrimPrefix(parts[1], "*")] = strings.ToLower(parts[0])
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading checksum file: %w", err)
	}

	if len(checksums) == 0 {
		return nil, fmt.Errorf("no checksums found in file")
	}

	return checksums, nil
}

// Merge returns a copy of releases with version recorded as artifact with
// the given digest. An existing entry for version is replaced. releases is
// not modified.
func Merge(releases *catalog.Releases, version *semver.Version, artifact string, sum []byte) *catalog.Releases {
	merged := &catalog.Releases{
		Note:     releases.Note,
		Builds:   make([]catalog.BuildInfo, 0, len(releases.Builds)+1),
		Releases: make(map[string]string, len(releases.Releases)+1),
	}

	for k, v := range releases.Releases {
		merged.Releases[k] = v
	}
	merged.Releases[version.String()] = artifact

	for _, b := range releases.Builds {
		if b.Version.Equal(version) {
			continue
		}
		merged.Builds = append(merged.Builds, b)
	}
	merged.Builds = append(merged.Builds, catalog.BuildInfo{
		Version: version,
		SHA256:  append(catalog.HexBytes(nil), sum...),
	})

	sort.SliceStable(merged.Builds, func(i, j int) bool {
		return merged.Builds[i].Version.LessThan(merged.Builds[j].Version)
	})
	return merged
}

// Encode renders releases as an indented manifest document
func Encode(releases *catalog.Releases) ([]byte, error) {
	data, err := json.MarshalIndent(releases, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}
