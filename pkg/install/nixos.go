package install

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/core-coin/yvm/pkg/yvmerr"
)

// patchTargetEnv carries the binary path into the nix-shell script so the
// path is never parsed as shell syntax
const patchTargetEnv = "YVM_PATCH_TARGET"

const patchelfScript = `patchelf --set-interpreter "$(cat "$NIX_CC/nix-support/dynamic-linker")" "$` + patchTargetEnv + `"`

// Patcher rewrites an installed binary so it runs on the host
type Patcher interface {
	Patch(ctx context.Context, path string) error
}

// PatchelfPatcher points the ELF interpreter of a binary at the NixOS
// dynamic linker using patchelf from a nix-shell
type PatchelfPatcher struct{}

// Patch runs patchelf on path. A failed run is reported as
// *yvmerr.NixPatchError carrying the captured output.
func (PatchelfPatcher) Patch(ctx context.Context, path string) error {
	cmd := patchelfCommand(ctx, path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() == 0 {
			stderr.WriteString(err.Error())
		}
		return &yvmerr.NixPatchError{Stdout: stdout.String(), Stderr: stderr.String()}
	}
	return nil
}

func patchelfCommand(ctx context.Context, path string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "nix-shell", "-p", "patchelf", "--run", patchelfScript)
	cmd.Env = append(os.Environ(), patchTargetEnv+"="+path)
	return cmd
}
