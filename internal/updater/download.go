package updater

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProgressFunc receives download progress. totalBytes is 0 when the
// server did not report a content length; callers should render an
// indeterminate bar in that case.
type ProgressFunc func(bytesSoFar, totalBytes int64)

// progressInterval throttles progress callbacks so a fast local
// download does not flood the caller.
const progressInterval = 100 * time.Millisecond

// Download streams the artifact at url to a temporary file and
// returns its path. Cancellation removes the partial file and returns
// the updater to UpdateAvailable; a partial artifact is never left
// behind for install to pick up.
func (u *Updater) Download(ctx context.Context, url string, progress ProgressFunc) (string, error) {
	u.setState(StateDownloading, "")

	path, err := u.download(ctx, url, progress)
	if err != nil {
		u.setState(StateUpdateAvailable, eris.Cause(err).Error())
		return "", err
	}
	u.setState(StateDownloaded, "")
	return path, nil
}

func (u *Updater) download(ctx context.Context, url string, progress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "updater: build download request")
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "updater: download")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("updater: download returned %d", resp.StatusCode)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	tmp, err := os.CreateTemp("", "qms-update-*"+artifactExt(u.opts.goos))
	if err != nil {
		return "", eris.Wrap(err, "updater: create temp file")
	}
	path := tmp.Name()

	written, err := copyWithProgress(ctx, tmp, resp.Body, total, progress)
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			zap.L().Warn("removing partial download", zap.String("path", path), zap.Error(rmErr))
		}
		if ctx.Err() != nil {
			return "", eris.Wrap(ctx.Err(), "updater: download cancelled")
		}
		return "", eris.Wrap(err, "updater: download")
	}

	zap.L().Info("update downloaded",
		zap.String("path", path),
		zap.Int64("bytes", written),
	)
	return path, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	limiter := rate.NewLimiter(rate.Every(progressInterval), 1)
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil && limiter.Allow() {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, rerr
		}
	}
	// Final callback so the caller always sees 100%.
	if progress != nil {
		progress(written, total)
	}
	return written, nil
}

// artifactExt matches the release artifact naming per platform.
func artifactExt(goos string) string {
	switch goos {
	case "windows":
		return ".exe"
	case "linux":
		return ".AppImage"
	case "darwin":
		return ".dmg"
	default:
		return ""
	}
}

// defaultInstallTarget resolves the path the helper will overwrite.
func defaultInstallTarget() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", eris.Wrap(err, "updater: resolve executable path")
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return exe, nil
	}
	return resolved, nil
}
