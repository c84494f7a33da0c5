package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format represents the packaging of a release artifact
type Format string

const (
	FormatZip Format = "zip"
	FormatRaw Format = "raw"
)

// DetectFormat detects the artifact format based on the filename
func DetectFormat(filename string) Format {
	if strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return FormatZip
	}

	// Everything else is a bare executable
	return FormatRaw
}

// ExtractZip extracts an in-memory zip archive into destDir. Entries that
// would land outside destDir are rejected.
func ExtractZip(data []byte, destDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, "failed to open zip archive")
	}

	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return errors.Wrap(err, "failed to resolve destination directory")
	}

	for _, file := range reader.File {
		target := filepath.Join(destDir, file.Name)

		// Ensure the target path is within destDir
		if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
			return fmt.Errorf("invalid path in archive: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrap(err, "failed to create directory")
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Wrap(err, "failed to create parent directory")
		}

		if err := extractFile(file, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, target string) error {
	fileReader, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open file in archive")
	}
	defer fileReader.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	targetFile, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer targetFile.Close()

	if _, err := io.Copy(targetFile, fileReader); err != nil {
		return errors.Wrap(err, "failed to extract file")
	}
	return nil
}
