// Package launcher runs the globally selected ylem binary in place of the
// ylem command.
package launcher

import (
	"context"
	"io"
	"os/exec"

	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/registry"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/pkg/errors"
)

// FallbackExitCode is returned when the child's exit status is unavailable,
// for instance because it was killed by a signal
const FallbackExitCode = 1

// Stdio is the standard streams handed to the child
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the global version's ylem with args and the given streams
// and returns the child's exit code. It fails with
// yvmerr.ErrGlobalVersionNotSet when no version is selected.
func Run(ctx context.Context, reg *registry.Registry, args []string, stdio Stdio) (int, error) {
	current, err := reg.CurrentVersion()
	if err != nil {
		return FallbackExitCode, err
	}
	if current == nil {
		return FallbackExitCode, yvmerr.ErrGlobalVersionNotSet
	}

	binPath := reg.BinaryPath(current)
	log.WithFields(log.Fields{
		"version": current.String(),
		"path":    binPath,
	}).Debug("launching ylem")

	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return FallbackExitCode, nil
	}
	return FallbackExitCode, errors.Wrapf(err, "failed to run ylem %s", current)
}
