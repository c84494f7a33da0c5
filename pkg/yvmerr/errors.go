// Package yvmerr defines the errors returned by the yvm install and version
// packages. Sentinels are matched with errors.Is, the typed errors with
// errors.As. Everything else is an I/O error wrapped with context.
package yvmerr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned when the host OS/arch has no releases.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrUnknownVersion is returned for versions missing from the catalog and
	// for data directory entries that are not versions.
	ErrUnknownVersion = errors.New("unknown version")
	// ErrGlobalVersionNotSet is returned when an active version is required
	// but none is set.
	ErrGlobalVersionNotSet = errors.New("global version not set")
)

// UnsupportedPlatform wraps ErrUnsupportedPlatform with the platform display string.
func UnsupportedPlatform(platform string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
}

// UnknownVersion wraps ErrUnknownVersion with the offending version string.
func UnknownVersion(version string) error {
	return fmt.Errorf("%w: %s", ErrUnknownVersion, version)
}

// UnsuccessfulResponseError reports a non-2xx HTTP status for an artifact download.
type UnsuccessfulResponseError struct {
	URL        string
	StatusCode int
}

func (e *UnsuccessfulResponseError) Error() string {
	return fmt.Sprintf("unsuccessful response from %s: status %d", e.URL, e.StatusCode)
}

// ChecksumMismatchError reports downloaded bytes whose SHA-256 differs from the catalog.
// Expected and Actual are hex encoded.
type ChecksumMismatchError struct {
	Version  string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for ylem %s: expected %s, got %s", e.Version, e.Expected, e.Actual)
}

// NixPatchError reports a failed dynamic linker patch. The binary stays on
// disk but is not fully installed.
type NixPatchError struct {
	Stdout string
	Stderr string
}

func (e *NixPatchError) Error() string {
	return fmt.Sprintf("could not patch ylem binary for NixOS:\nstdout: %s\nstderr: %s", e.Stdout, e.Stderr)
}

// TransportError reports a failed HTTP exchange, including timeouts.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
