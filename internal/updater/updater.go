// Package updater checks a release metadata endpoint for newer
// versions of the qms binary, downloads the platform artifact, and
// hands the final swap to a detached helper process so the running
// executable is never overwritten while it executes.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/resilience"
)

// State is the updater's lifecycle position. Transitions follow
// Idle -> Checking -> {UpToDate, UpdateAvailable} -> Downloading ->
// Downloaded -> Installing. A failed check returns to Idle with a
// recorded reason rather than surfacing a fatal condition.
type State string

const (
	StateIdle            State = "idle"
	StateChecking        State = "checking"
	StateUpToDate        State = "up_to_date"
	StateUpdateAvailable State = "update_available"
	StateDownloading     State = "downloading"
	StateDownloaded      State = "downloaded"
	StateInstalling      State = "installing"
)

// maxMetadataBytes caps the metadata response body. Release metadata
// is a small JSON object; anything larger is malformed.
const maxMetadataBytes = 1 << 20

// Options configures an Updater.
type Options struct {
	// CurrentVersion is the running binary's version, e.g. "1.4.0".
	CurrentVersion string

	// MetadataURL is the release metadata endpoint (JSON).
	MetadataURL string

	// InstallTarget is the path the downloaded artifact replaces.
	// Defaults to the running executable.
	InstallTarget string

	// Relaunch makes the install helper start the new binary after
	// the swap completes.
	Relaunch bool

	// CheckTimeout bounds the metadata request. Default: 5s.
	CheckTimeout time.Duration

	// Client is used for the metadata request and the artifact
	// download. Defaults to a plain http.Client; the download relies
	// on context cancellation rather than a client-wide timeout.
	Client *http.Client

	// Retry wraps the metadata fetch. Zero value uses
	// resilience.DefaultRetryConfig.
	Retry resilience.RetryConfig

	// goos overrides runtime.GOOS for platform artifact selection.
	// Test seam only.
	goos string
}

// CheckResult reports the outcome of one metadata check.
type CheckResult struct {
	Available       bool
	Version         string
	URL             string
	SizeMB          float64
	ReleaseNotesURL string
	Notes           string
}

// metadata is the release endpoint's JSON shape. Platform blocks are
// keyed by OS name; a top-level download_url is the fallback when no
// block matches. Missing fields default to empty/zero.
type metadata struct {
	Version         string            `json:"version"`
	Windows         *platformArtifact `json:"windows"`
	Linux           *platformArtifact `json:"linux"`
	MacOS           *platformArtifact `json:"macos"`
	DownloadURL     string            `json:"download_url"`
	ReleaseNotesURL string            `json:"release_notes_url"`
}

type platformArtifact struct {
	URL    string  `json:"url"`
	SizeMB float64 `json:"size_mb"`
}

// Updater drives the check/download/install lifecycle. Safe for use
// from one goroutine at a time; state reads are synchronized so a UI
// goroutine may poll State while a download runs.
type Updater struct {
	opts   Options
	client *http.Client

	mu     sync.Mutex
	state  State
	reason string
}

// New creates an Updater in StateIdle.
func New(opts Options) *Updater {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 5 * time.Second
	}
	if opts.goos == "" {
		opts.goos = runtime.GOOS
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Updater{opts: opts, client: client, state: StateIdle}
}

// State returns the current lifecycle state.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Reason returns the human-readable status recorded by the last
// transition, e.g. why a check failed.
func (u *Updater) Reason() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reason
}

func (u *Updater) setState(s State, reason string) {
	u.mu.Lock()
	u.state = s
	u.reason = reason
	u.mu.Unlock()
}

// Check fetches release metadata and reports whether a newer version
// is available. Failures are non-fatal: the returned error carries
// the reason, the state returns to Idle, and the caller is expected
// to surface the message and continue.
func (u *Updater) Check(ctx context.Context) (*CheckResult, error) {
	u.setState(StateChecking, "")

	meta, err := resilience.DoVal(ctx, u.opts.Retry, "update check", func(ctx context.Context) (*metadata, error) {
		return u.fetchMetadata(ctx)
	})
	if err != nil {
		reason := fmt.Sprintf("update check failed: %v", eris.Cause(err))
		u.setState(StateIdle, reason)
		return nil, eris.Wrap(err, "updater: check")
	}

	artifact := u.platformBlock(meta)
	url := meta.DownloadURL
	var sizeMB float64
	if artifact != nil {
		if artifact.URL != "" {
			url = artifact.URL
		}
		sizeMB = artifact.SizeMB
	}

	latest := meta.Version
	if latest == "" {
		latest = "0.0.0"
	}
	if !IsNewer(latest, u.opts.CurrentVersion) {
		u.setState(StateUpToDate, "running the latest version")
		return &CheckResult{
			Available: false,
			Version:   u.opts.CurrentVersion,
			Notes:     "You are running the latest version",
		}, nil
	}

	notes := fmt.Sprintf("New version available: %s\nSize: ~%gMB", latest, sizeMB)
	if meta.ReleaseNotesURL != "" {
		notes += "\n\nRelease notes: " + meta.ReleaseNotesURL
	}
	u.setState(StateUpdateAvailable, "")
	zap.L().Info("update available",
		zap.String("current", u.opts.CurrentVersion),
		zap.String("latest", latest),
	)
	return &CheckResult{
		Available:       true,
		Version:         latest,
		URL:             url,
		SizeMB:          sizeMB,
		ReleaseNotesURL: meta.ReleaseNotesURL,
		Notes:           notes,
	}, nil
}

func (u *Updater) fetchMetadata(ctx context.Context) (*metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, u.opts.CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.opts.MetadataURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "updater: build metadata request")
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "updater: fetch metadata")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("updater: metadata endpoint returned %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, eris.Wrap(err, "updater: read metadata body")
	}
	var meta metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, eris.Wrap(err, "updater: decode metadata")
	}
	return &meta, nil
}

func (u *Updater) platformBlock(meta *metadata) *platformArtifact {
	switch u.opts.goos {
	case "windows":
		return meta.Windows
	case "linux":
		return meta.Linux
	default:
		return meta.MacOS
	}
}
