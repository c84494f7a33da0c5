package install

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchelfCommand(t *testing.T) {
	path := "/home/dev/my data/.yvm/1.1.2/ylem-1.1.2; touch pwned $(id)"
	cmd := patchelfCommand(context.Background(), path)

	require.NotEmpty(t, cmd.Args)
	script := cmd.Args[len(cmd.Args)-1]
	assert.Equal(t, []string{"nix-shell", "-p", "patchelf", "--run", script}, cmd.Args)
	assert.NotContains(t, script, path)
	assert.Contains(t, script, `"$YVM_PATCH_TARGET"`)
	assert.Contains(t, cmd.Env, "YVM_PATCH_TARGET="+path)
}

func TestPatchelfScriptQuotesTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "my data; touch injected", "ylem-1.1.2")

	// Stand in for patchelf and the nix dynamic linker file
	nixCC := filepath.Join(dir, "cc")
	require.NoError(t, os.MkdirAll(filepath.Join(nixCC, "nix-support"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(nixCC, "nix-support", "dynamic-linker"), []byte("/nix/ld.so"), 0644))
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(bin, 0755))
	fake := "#!/bin/sh\nfor a in \"$@\"; do printf '%s\\n' \"$a\"; done\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "patchelf"), []byte(fake), 0755))

	cmd := exec.Command("/bin/sh", "-c", patchelfScript)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"PATH="+bin+string(os.PathListSeparator)+os.Getenv("PATH"),
		"NIX_CC="+nixCC,
		patchTargetEnv+"="+target,
	)
	out, err := cmd.Output()
	require.NoError(t, err)

	assert.Equal(t, "--set-interpreter\n/nix/ld.so\n"+target+"\n", string(out))
	assert.NoFileExists(t, filepath.Join(dir, "injected"))
}
