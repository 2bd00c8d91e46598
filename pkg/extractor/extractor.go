// Package extractor wraps the external yt-dlp backend behind probe and fetch
// operations with a stable error taxonomy.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"anydown/pkg/config"
)

const (
	defaultBinary       = "yt-dlp"
	defaultProbeTimeout = 60 * time.Second
	defaultFetchTimeout = 30 * time.Minute

	// formatChain prefers a merged mp4, then a single-file mp4, then whatever
	// the backend ranks best. Tie-breaks inside one tier are backend-defined.
	formatChain = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	mergeFormat = "mp4"
	outputExt   = ".mp4"
)

// MediaInfo is the metadata returned by a probe.
type MediaInfo struct {
	Title           string
	DurationSeconds int
}

// DownloadResult points at the single file a fetch wrote to disk.
type DownloadResult struct {
	LocalPath string
	SizeBytes int64
}

// Client drives the yt-dlp binary. It holds only immutable configuration and
// is safe for concurrent use across requests.
type Client struct {
	cfg config.ExtractorConfig
	log *slog.Logger
}

// NewClient constructs a Client from startup configuration.
func NewClient(cfg config.ExtractorConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		cfg: cfg,
		log: log.With("component", "extractor"),
	}
}

// Probe fetches title and duration without transferring payload bytes.
func (c *Client) Probe(ctx context.Context, url string) (MediaInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout())
	defer cancel()

	args := c.probeArgs(url)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(probeCtx, c.binary(), args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return MediaInfo{}, classifyRunFailure(probeCtx, err, stderr.String())
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return MediaInfo{}, NewError(ErrorBackend, err.Error())
	}

	return info, nil
}

// Fetch downloads the media into destDir and locates the produced file.
//
// Exactly one media file is written per call; the caller owns destDir and
// its cleanup.
func (c *Client) Fetch(ctx context.Context, url string, destDir string) (DownloadResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout())
	defer cancel()

	args := c.fetchArgs(url, destDir)

	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(fetchCtx, c.binary(), args...)
	cmd.Stderr = stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		return DownloadResult{}, classifyRunFailure(fetchCtx, err, stderr.String())
	}

	result, err := locateOutput(destDir)
	if err != nil {
		return DownloadResult{}, err
	}

	c.log.Debug("Fetch completed",
		"path", result.LocalPath,
		"size_bytes", result.SizeBytes,
		"elapsed", time.Since(started))

	return result, nil
}

// probeArgs builds the metadata-only invocation.
func (c *Client) probeArgs(url string) []string {
	args := []string{"--dump-json", "--skip-download"}
	args = append(args, c.commonArgs()...)
	args = append(args, url)
	return args
}

// fetchArgs builds the full download invocation.
func (c *Client) fetchArgs(url string, destDir string) []string {
	args := []string{
		"-f", formatChain,
		"--merge-output-format", mergeFormat,
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
	}
	args = append(args, c.commonArgs()...)
	args = append(args, url)
	return args
}

func (c *Client) commonArgs() []string {
	args := []string{"--no-playlist", "-q", "--no-warnings", "--no-progress"}

	if cookieFile := strings.TrimSpace(c.cfg.CookieFile); cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}

	if email := strings.TrimSpace(c.cfg.Facebook.Email); email != "" {
		args = append(args, "--username", email, "--password", c.cfg.Facebook.Password)
	}

	return args
}

func (c *Client) binary() string {
	if binary := strings.TrimSpace(c.cfg.BinaryPath); binary != "" {
		return binary
	}

	return defaultBinary
}

func (c *Client) probeTimeout() time.Duration {
	if c.cfg.ProbeTimeoutSeconds > 0 {
		return time.Duration(c.cfg.ProbeTimeoutSeconds) * time.Second
	}

	return defaultProbeTimeout
}

func (c *Client) fetchTimeout() time.Duration {
	if c.cfg.FetchTimeoutSeconds > 0 {
		return time.Duration(c.cfg.FetchTimeoutSeconds) * time.Second
	}

	return defaultFetchTimeout
}

// probePayload maps the subset of yt-dlp --dump-json output the bot uses.
type probePayload struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// parseProbeOutput decodes yt-dlp JSON metadata into MediaInfo.
//
// Durations are tolerated as floats and clamped at zero; a missing title
// falls back to a generic label the way the original bot behaved.
func parseProbeOutput(output []byte) (MediaInfo, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return MediaInfo{}, fmt.Errorf("probe produced no metadata")
	}

	var payload probePayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return MediaInfo{}, fmt.Errorf("parse probe metadata: %w", err)
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = "video"
	}

	duration := int(payload.Duration)
	if duration < 0 {
		duration = 0
	}

	return MediaInfo{Title: title, DurationSeconds: duration}, nil
}

// locateOutput finds the single merged media file a fetch left in destDir.
func locateOutput(destDir string) (DownloadResult, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return DownloadResult{}, NewError(ErrorBackend, fmt.Sprintf("read download directory: %v", err))
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), outputExt) {
			continue
		}

		path := filepath.Join(destDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return DownloadResult{}, NewError(ErrorBackend, fmt.Sprintf("stat download output: %v", err))
		}

		return DownloadResult{LocalPath: path, SizeBytes: info.Size()}, nil
	}

	return DownloadResult{}, NewError(ErrorNotFound, "no video file found after download")
}

// policyMarkers are stderr fragments that indicate the content itself is
// unretrievable rather than the backend misbehaving. Markers must be
// specific enough not to shadow backend faults: "age" alone would match
// "Unable to download webpage".
var policyMarkers = []string{
	"private",
	"age-restricted",
	"age restricted",
	"confirm your age",
	"sign in",
	"login required",
	"members-only",
	"drm",
	"geo-restricted",
	"geo-blocked",
	"available in your country",
	"unavailable",
	"removed",
}

// classifyRunFailure maps a failed yt-dlp run onto the error taxonomy.
func classifyRunFailure(ctx context.Context, runErr error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = runErr.Error()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(ErrorBackend, "backend timed out: "+detail)
	}

	if isPolicyFailure(detail) {
		return NewError(ErrorExtraction, detail)
	}

	return NewError(ErrorBackend, detail)
}

// isPolicyFailure sniffs backend stderr for policy/availability refusals.
func isPolicyFailure(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range policyMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}

	return false
}
