package extractor

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"anydown/pkg/config"
)

func TestProbeArgsIncludeMetadataFlags(t *testing.T) {
	client := NewClient(config.ExtractorConfig{}, nil)

	args := client.probeArgs("https://youtu.be/abc123")

	for _, flag := range []string{"--dump-json", "--skip-download", "--no-playlist", "--no-warnings"} {
		if !slices.Contains(args, flag) {
			t.Fatalf("probe args missing %q: %v", flag, args)
		}
	}
	if args[len(args)-1] != "https://youtu.be/abc123" {
		t.Fatalf("probe args must end with the url: %v", args)
	}
}

func TestFetchArgsFormatChainAndTemplate(t *testing.T) {
	client := NewClient(config.ExtractorConfig{}, nil)

	args := client.fetchArgs("https://youtu.be/abc123", "/tmp/req-1")

	formatIdx := slices.Index(args, "-f")
	if formatIdx < 0 || args[formatIdx+1] != formatChain {
		t.Fatalf("fetch args missing format chain: %v", args)
	}

	mergeIdx := slices.Index(args, "--merge-output-format")
	if mergeIdx < 0 || args[mergeIdx+1] != "mp4" {
		t.Fatalf("fetch args missing merge format: %v", args)
	}

	outputIdx := slices.Index(args, "-o")
	if outputIdx < 0 || args[outputIdx+1] != filepath.Join("/tmp/req-1", "%(title)s.%(ext)s") {
		t.Fatalf("fetch args missing output template: %v", args)
	}
}

func TestCommonArgsCredentials(t *testing.T) {
	client := NewClient(config.ExtractorConfig{
		CookieFile: "cookies.txt",
		Facebook:   config.FacebookConfig{Email: "user@example.com", Password: "hunter2"},
	}, nil)

	args := client.commonArgs()

	cookieIdx := slices.Index(args, "--cookies")
	if cookieIdx < 0 || args[cookieIdx+1] != "cookies.txt" {
		t.Fatalf("common args missing cookie file: %v", args)
	}

	userIdx := slices.Index(args, "--username")
	if userIdx < 0 || args[userIdx+1] != "user@example.com" {
		t.Fatalf("common args missing username: %v", args)
	}
	if !slices.Contains(args, "--password") {
		t.Fatalf("common args missing password: %v", args)
	}
}

func TestCommonArgsWithoutCredentials(t *testing.T) {
	client := NewClient(config.ExtractorConfig{}, nil)

	args := client.commonArgs()

	if slices.Contains(args, "--cookies") || slices.Contains(args, "--username") {
		t.Fatalf("common args must omit unset credentials: %v", args)
	}
}

func TestParseProbeOutput(t *testing.T) {
	cases := []struct {
		name         string
		payload      string
		wantErr      bool
		wantTitle    string
		wantDuration int
	}{
		{
			name:         "integer duration",
			payload:      `{"title": "Sample", "duration": 125}`,
			wantTitle:    "Sample",
			wantDuration: 125,
		},
		{
			name:         "float duration truncates",
			payload:      `{"title": "Clip", "duration": 61.8}`,
			wantTitle:    "Clip",
			wantDuration: 61,
		},
		{
			name:         "missing title falls back",
			payload:      `{"duration": 10}`,
			wantTitle:    "video",
			wantDuration: 10,
		},
		{
			name:         "negative duration clamps",
			payload:      `{"title": "Odd", "duration": -5}`,
			wantTitle:    "Odd",
			wantDuration: 0,
		},
		{name: "empty output", payload: "", wantErr: true},
		{name: "malformed json", payload: "{not-json", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := parseProbeOutput([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProbeOutput error: %v", err)
			}
			if info.Title != tc.wantTitle {
				t.Fatalf("title = %q, want %q", info.Title, tc.wantTitle)
			}
			if info.DurationSeconds != tc.wantDuration {
				t.Fatalf("duration = %d, want %d", info.DurationSeconds, tc.wantDuration)
			}
		})
	}
}

func TestLocateOutputFindsVideo(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Repeat("x", 2048)
	if err := os.WriteFile(filepath.Join(dir, "Sample Video.mp4"), []byte(payload), 0o600); err != nil {
		t.Fatalf("seed video file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Sample Video.info.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("seed sidecar file: %v", err)
	}

	result, err := locateOutput(dir)
	if err != nil {
		t.Fatalf("locateOutput error: %v", err)
	}

	if filepath.Base(result.LocalPath) != "Sample Video.mp4" {
		t.Fatalf("path = %q, want the mp4 entry", result.LocalPath)
	}
	if result.SizeBytes != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", result.SizeBytes, len(payload))
	}
}

func TestLocateOutputEmptyDir(t *testing.T) {
	result, err := locateOutput(t.TempDir())
	if err == nil {
		t.Fatalf("expected not_found error, got %+v", result)
	}
	if got := CategoryFromError(err); got != ErrorNotFound {
		t.Fatalf("category = %q, want %q", got, ErrorNotFound)
	}
}

func TestLocateOutputIgnoresPartialFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4.part"), []byte("partial"), 0o600); err != nil {
		t.Fatalf("seed partial file: %v", err)
	}

	if _, err := locateOutput(dir); CategoryFromError(err) != ErrorNotFound {
		t.Fatalf("expected not_found for partial-only dir, got %v", err)
	}
}

func TestClassifyRunFailure(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   string
	}{
		{"private video", "ERROR: [youtube] abc: Private video. Sign in if you've been granted access", ErrorExtraction},
		{"age confirmation", "ERROR: Sign in to confirm your age", ErrorExtraction},
		{"age-restricted video", "ERROR: This video is age-restricted and only available to registered users", ErrorExtraction},
		{"geo blocked", "ERROR: The uploader has not made this video available in your country", ErrorExtraction},
		{"removed video", "ERROR: This video has been removed by the uploader", ErrorExtraction},
		{"network fault", "ERROR: Unable to download webpage: connection reset by peer", ErrorBackend},
		{"extractor fault", "ERROR: Unable to extract video data", ErrorBackend},
		{"http error", "ERROR: HTTP Error 500: Internal Server Error", ErrorBackend},
		{"empty stderr", "", ErrorBackend},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyRunFailure(context.Background(), context.Canceled, tc.stderr)
			if got := CategoryFromError(err); got != tc.want {
				t.Fatalf("category = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyRunFailureTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	err := classifyRunFailure(ctx, ctx.Err(), "ERROR: private video")
	if got := CategoryFromError(err); got != ErrorBackend {
		t.Fatalf("timeout must classify as backend fault, got %q", got)
	}
}

func TestCategoryFromErrorUncategorized(t *testing.T) {
	if got := CategoryFromError(os.ErrPermission); got != ErrorBackend {
		t.Fatalf("category = %q, want %q", got, ErrorBackend)
	}
	if got := CategoryFromError(nil); got != "" {
		t.Fatalf("category for nil = %q, want empty", got)
	}
}
