package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/pkg/errors"
)

// Sum returns the SHA-256 digest of data
func Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SumFile computes the hex encoded SHA-256 digest of a file
func SumFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", errors.Wrap(err, "failed to compute checksum")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Checksum verifies that data hashes to the expected SHA-256 digest.
// The comparison is exact byte equality; on mismatch both digests are
// reported hex encoded.
func Checksum(version string, data, expected []byte) error {
	actual := Sum(data)
	if !bytes.Equal(actual, expected) {
		return &yvmerr.ChecksumMismatchError{
			Version:  version,
			Expected: hex.EncodeToString(expected),
			Actual:   hex.EncodeToString(actual),
		}
	}
	return nil
}

// ChecksumFile verifies a file on disk against the expected digest
func ChecksumFile(version, filePath string, expected []byte) error {
	actual, err := SumFile(filePath)
	if err != nil {
		return err
	}
	if want := hex.EncodeToString(expected); actual != want {
		return &yvmerr.ChecksumMismatchError{
			Version:  version,
			Expected: want,
			Actual:   actual,
		}
	}
	return nil
}
