package updater

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallMissingArtifact(t *testing.T) {
	u := New(Options{CurrentVersion: "1.0.0", goos: "linux"})
	err := u.Install(filepath.Join(t.TempDir(), "nope.AppImage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat artifact")
}

func TestInstallEmptyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.AppImage")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	u := New(Options{CurrentVersion: "1.0.0", goos: "linux"})
	err := u.Install(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact is empty")
}

func TestBuildHelperScriptUnix(t *testing.T) {
	script := buildHelperScript("linux", 4242, "/tmp/qms-update.AppImage", "/usr/local/bin/qms", false)

	assert.Contains(t, script, "#!/bin/sh")
	assert.Contains(t, script, "while kill -0 4242 2>/dev/null; do sleep 0.2; done")
	assert.Contains(t, script, "cp -f '/tmp/qms-update.AppImage' '/usr/local/bin/qms'")
	assert.Contains(t, script, "chmod 755 '/usr/local/bin/qms'")
	assert.Contains(t, script, "rm -f '/tmp/qms-update.AppImage'")
	assert.Contains(t, script, `rm -f -- "$0"`)
	assert.NotContains(t, script, "&\n", "no relaunch without the flag")
}

func TestBuildHelperScriptUnixRelaunch(t *testing.T) {
	script := buildHelperScript("darwin", 99, "/tmp/a.dmg", "/opt/qms", true)
	assert.Contains(t, script, "'/opt/qms' >/dev/null 2>&1 &")
}

func TestBuildHelperScriptWindows(t *testing.T) {
	script := buildHelperScript("windows", 4242, `C:\Temp\qms.exe`, `C:\Program Files\qms.exe`, true)

	assert.Contains(t, script, `tasklist /FI "PID eq 4242"`)
	assert.Contains(t, script, "goto wait")
	assert.Contains(t, script, `copy /y "C:\Temp\qms.exe" "C:\Program Files\qms.exe"`)
	assert.Contains(t, script, `start "" "C:\Program Files\qms.exe"`)
	assert.Contains(t, script, `del /f /q "C:\Temp\qms.exe"`)
	assert.Contains(t, script, `del /f /q "%~f0"`)
}

func TestWriteHelperScript(t *testing.T) {
	path, err := writeHelperScript("linux", 1, "/tmp/a", "/tmp/b", false)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	assert.Contains(t, path, ".sh")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buildHelperScript("linux", 1, "/tmp/a", "/tmp/b", false), string(content))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestInstallSetsExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit is POSIX only")
	}

	dir := t.TempDir()
	artifact := filepath.Join(dir, "qms-update.AppImage")
	require.NoError(t, os.WriteFile(artifact, []byte("binary payload"), 0o644))
	target := filepath.Join(dir, "qms")
	require.NoError(t, os.WriteFile(target, []byte("old binary"), 0o755))

	u := New(Options{
		CurrentVersion: "1.0.0",
		InstallTarget:  target,
		goos:           runtime.GOOS,
	})
	require.NoError(t, u.Install(artifact))
	assert.Equal(t, StateInstalling, u.State())

	info, err := os.Stat(artifact)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
