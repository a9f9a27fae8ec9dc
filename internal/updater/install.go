package updater

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Install hands the downloaded artifact to a detached helper process
// and returns. The helper waits for this process to exit before
// copying the artifact over the install target, because the running
// executable cannot be replaced while it executes. The caller is
// expected to exit shortly after a successful return.
func (u *Updater) Install(artifactPath string) error {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return eris.Wrap(err, "updater: stat artifact")
	}
	if info.Size() == 0 {
		return eris.New("updater: artifact is empty")
	}

	target := u.opts.InstallTarget
	if target == "" {
		target, err = defaultInstallTarget()
		if err != nil {
			return err
		}
	}

	if u.opts.goos != "windows" {
		if err := os.Chmod(artifactPath, 0o755); err != nil {
			return eris.Wrap(err, "updater: set artifact executable")
		}
	}

	u.setState(StateInstalling, "")

	script, err := writeHelperScript(u.opts.goos, os.Getpid(), artifactPath, target, u.opts.Relaunch)
	if err != nil {
		return err
	}

	cmd := helperCommand(script)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		os.Remove(script)
		return eris.Wrap(err, "updater: start install helper")
	}
	// The helper outlives us; drop the handle without waiting.
	if err := cmd.Process.Release(); err != nil {
		zap.L().Warn("releasing install helper process", zap.Error(err))
	}

	zap.L().Info("install helper started; update completes after exit",
		zap.Int("helper_pid", cmd.Process.Pid),
		zap.String("target", target),
	)
	return nil
}

// buildHelperScript renders the swap script. The helper polls until
// the parent PID is gone, copies the artifact over the target,
// optionally relaunches it, then removes the artifact and itself.
func buildHelperScript(goos string, pid int, artifact, target string, relaunch bool) string {
	if goos == "windows" {
		var b strings.Builder
		b.WriteString("@echo off\r\n")
		b.WriteString(":wait\r\n")
		fmt.Fprintf(&b, "tasklist /FI \"PID eq %d\" 2>nul | findstr \"%d\" >nul\r\n", pid, pid)
		b.WriteString("if not errorlevel 1 (\r\n")
		b.WriteString("  timeout /t 1 /nobreak >nul\r\n")
		b.WriteString("  goto wait\r\n")
		b.WriteString(")\r\n")
		fmt.Fprintf(&b, "copy /y \"%s\" \"%s\" >nul\r\n", artifact, target)
		if relaunch {
			fmt.Fprintf(&b, "start \"\" \"%s\"\r\n", target)
		}
		fmt.Fprintf(&b, "del /f /q \"%s\"\r\n", artifact)
		b.WriteString("del /f /q \"%~f0\"\r\n")
		return b.String()
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "while kill -0 %d 2>/dev/null; do sleep 0.2; done\n", pid)
	fmt.Fprintf(&b, "cp -f '%s' '%s'\n", artifact, target)
	fmt.Fprintf(&b, "chmod 755 '%s'\n", target)
	if relaunch {
		fmt.Fprintf(&b, "'%s' >/dev/null 2>&1 &\n", target)
	}
	fmt.Fprintf(&b, "rm -f '%s'\n", artifact)
	b.WriteString("rm -f -- \"$0\"\n")
	return b.String()
}

func writeHelperScript(goos string, pid int, artifact, target string, relaunch bool) (string, error) {
	ext := ".sh"
	if goos == "windows" {
		ext = ".bat"
	}
	f, err := os.CreateTemp("", "qms-install-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "updater: create helper script")
	}
	path := f.Name()
	_, werr := f.WriteString(buildHelperScript(goos, pid, artifact, target, relaunch))
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil && goos != "windows" {
		werr = os.Chmod(path, 0o700)
	}
	if werr != nil {
		os.Remove(path)
		return "", eris.Wrap(werr, "updater: write helper script")
	}
	return path, nil
}
