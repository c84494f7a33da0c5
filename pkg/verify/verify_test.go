package verify

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorldSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestSum(t *testing.T) {
	assert.Equal(t, helloWorldSHA256, hex.EncodeToString(Sum([]byte("hello world"))))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hex.EncodeToString(Sum(nil)))
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		expected string
		wantErr  bool
	}{
		{
			name:     "matching digest",
			content:  []byte("hello world"),
			expected: helloWorldSHA256,
		},
		{
			name:     "single bit flipped",
			content:  []byte("hello worle"),
			expected: helloWorldSHA256,
			wantErr:  true,
		},
		{
			name:     "truncated digest never matches",
			content:  []byte("hello world"),
			expected: helloWorldSHA256[:32],
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Checksum("1.1.2", tt.content, mustHex(t, tt.expected))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var mismatch *yvmerr.ChecksumMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, "1.1.2", mismatch.Version)
			assert.Equal(t, tt.expected, mismatch.Expected)
			assert.Equal(t, hex.EncodeToString(Sum(tt.content)), mismatch.Actual)
			assert.Contains(t, err.Error(), "checksum mismatch")
		})
	}
}

func TestChecksumFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ylem-1.1.2")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0755))

	got, err := SumFile(path)
	require.NoError(t, err)
	assert.Equal(t, helloWorldSHA256, got)

	assert.NoError(t, ChecksumFile("1.1.2", path, mustHex(t, helloWorldSHA256)))

	err = ChecksumFile("1.1.2", path, Sum([]byte("other")))
	var mismatch *yvmerr.ChecksumMismatchError
	assert.True(t, errors.As(err, &mismatch))

	_, err = SumFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
