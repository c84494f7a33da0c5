// Package catalog holds the per-platform table of known ylem releases: which
// artifact each version is published as and the SHA-256 digest it must have.
//
// Catalogs are immutable once parsed. The manifests shipped with yvm are
// embedded at build time and parsed at most once per process; callers that
// need a synthetic catalog (tests, manifest tooling) build one with Parse.
package catalog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// HexBytes is a byte slice that is encoded as a hex string in JSON. A
// leading "0x" or "0X" is accepted when decoding.
type HexBytes []byte

// MarshalJSON encodes the bytes as bare lowercase hex
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON decodes a hex string, with or without a 0x or 0X prefix
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	digits := s
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return errors.Wrapf(err, "invalid hex digest %q", s)
	}
	*h = b
	return nil
}

// String returns the hex form of the bytes
func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

// BuildInfo records the expected SHA-256 digest of one version's artifact
type BuildInfo struct {
	Version *semver.Version `json:"version"`
	SHA256  HexBytes        `json:"sha256"`
}

// UnmarshalJSON requires the version to be strict semver
func (b *BuildInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version string   `json:"version"`
		SHA256  HexBytes `json:"sha256"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := semver.StrictNewVersion(raw.Version)
	if err != nil {
		return errors.Wrapf(err, "invalid build version %q", raw.Version)
	}
	b.Version = v
	b.SHA256 = raw.SHA256
	return nil
}

// Releases is the parsed release manifest of one platform
type Releases struct {
	// Note is free text about the provenance of the manifest
	Note string `json:"note,omitempty"`
	// Builds lists the checksum of each version's artifact
	Builds []BuildInfo `json:"builds"`
	// Releases maps the canonical version string to the artifact filename
	Releases map[string]string `json:"releases"`
}

// Parse decodes and validates a release manifest.
// Every release key must be a strict semantic version, and every version
// that has a checksum must also have an artifact.
func Parse(data []byte) (*Releases, error) {
	var raw Releases
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode release manifest")
	}

	r := &Releases{
		Note:     raw.Note,
		Builds:   raw.Builds,
		Releases: make(map[string]string, len(raw.Releases)),
	}
	if r.Builds == nil {
		r.Builds = []BuildInfo{}
	}

	for key, artifact := range raw.Releases {
		v, err := semver.StrictNewVersion(key)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid release version %q", key)
		}
		if artifact == "" {
			return nil, fmt.Errorf("release %s has an empty artifact name", key)
		}
		r.Releases[v.String()] = artifact
	}

	for _, b := range r.Builds {
		if _, ok := r.Releases[b.Version.String()]; !ok {
			return nil, fmt.Errorf("checksum recorded for %s but no artifact is listed", b.Version)
		}
		if len(b.SHA256) == 0 {
			return nil, fmt.Errorf("empty checksum recorded for %s", b.Version)
		}
	}

	return r, nil
}

// Artifact returns the artifact filename for a version
func (r *Releases) Artifact(v *semver.Version) (string, bool) {
	artifact, ok := r.Releases[v.String()]
	return artifact, ok
}

// Checksum returns the expected SHA-256 digest of a version's artifact
func (r *Releases) Checksum(v *semver.Version) ([]byte, bool) {
	for _, b := range r.Builds {
		if b.Version.Equal(v) {
			return b.SHA256, true
		}
	}
	return nil, false
}

// Versions returns every version with an artifact, in ascending order
func (r *Releases) Versions() []*semver.Version {
	versions := make([]*semver.Version, 0, len(r.Releases))
	for key := range r.Releases {
		// Keys were validated in Parse.
		versions = append(versions, semver.MustParse(key))
	}
	sort.Sort(semver.Collection(versions))
	return versions
}

// Contains reports whether the catalog has an artifact for the version
func (r *Releases) Contains(v *semver.Version) bool {
	_, ok := r.Artifact(v)
	return ok
}

// Latest returns the highest version in the catalog, or nil if it is empty
func (r *Releases) Latest() *semver.Version {
	versions := r.Versions()
	if len(versions) == 0 {
		return nil
	}
	return versions[len(versions)-1]
}
