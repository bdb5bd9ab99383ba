package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"wallp/internal/ipc"
	"wallp/internal/scheduler"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []ipc.DependencyStatus{
		{Name: "gsettings", Available: false, Detail: `binary "gsettings" not found`},
		{Name: "feh", Available: true, Command: "feh"},
		{Name: "xrandr", Available: false, Optional: true},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `[ERROR] binary "gsettings" not found`) {
		t.Fatalf("expected error detail first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: feh)") {
		t.Fatalf("expected ready detail second, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not available") {
		t.Fatalf("expected optional warning third, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "gsettings, xrandr") {
		t.Fatalf("expected missing summary, got %q", lines[3])
	}

	if got := dependencyLines(nil, false); len(got) != 1 || !strings.Contains(got[0], "No external tools required") {
		t.Fatalf("unexpected lines for no dependencies: %v", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFormatWhen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := formatWhen(time.Time{}, now); got != "never" {
		t.Fatalf("expected never, got %q", got)
	}
	if got := formatWhen(now.Add(-90*time.Minute), now); !strings.HasSuffix(got, "(1h30m0s ago)") {
		t.Fatalf("unexpected past format %q", got)
	}
	if got := formatWhen(now.Add(45*time.Second), now); !strings.HasSuffix(got, "(in 45s)") {
		t.Fatalf("unexpected future format %q", got)
	}
	if got := formatWhen(now.Add(-10*time.Second), now); !strings.HasSuffix(got, "(just now)") {
		t.Fatalf("unexpected recent format %q", got)
	}
}

func TestDaemonLinesShowLastSource(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	resp := &ipc.StatusResponse{LastChangeTime: now.Add(-2 * time.Hour), LastSource: "xkcd"}
	joined := strings.Join(daemonLines(resp, now, false), "\n")
	if !strings.Contains(joined, "(2h0m0s ago) from xkcd") {
		t.Fatalf("expected last source beside last change, got %q", joined)
	}

	resp = &ipc.StatusResponse{LastSource: "xkcd"}
	joined = strings.Join(daemonLines(resp, now, false), "\n")
	if strings.Contains(joined, "from xkcd") {
		t.Fatalf("expected no source without a change time, got %q", joined)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Job", "Every"}, [][]string{{"wallpaper"}, {"other", "1d", "extra"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "wallpaper") || !strings.Contains(out, "1d") {
		t.Fatalf("unexpected table %q", out)
	}
	if strings.Contains(out, "extra") {
		t.Fatalf("expected cells past the header count to be dropped: %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestRenderJobsTable(t *testing.T) {
	now := time.Now()
	out := renderJobsTable([]scheduler.Job{{ID: "wallpaper", Frequency: "30m", Args: "{}", NextRunAt: now.Add(10 * time.Minute)}}, now)
	for _, want := range []string{"wallpaper", "30m", "never", "in 10m"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestDescribeFrequency(t *testing.T) {
	cases := map[string]string{
		"1h":   "1 hour",
		"30m":  "30 minutes",
		"2w":   "2 weeks",
		"1M":   "1 month",
		"oops": "oops",
	}
	for in, want := range cases {
		if got := describeFrequency(in); got != want {
			t.Fatalf("describeFrequency(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShouldSkipConfigInherits(t *testing.T) {
	parent := &cobra.Command{Use: "parent", Annotations: map[string]string{"skipConfigLoad": "true"}}
	child := &cobra.Command{Use: "child"}
	parent.AddCommand(child)
	if !shouldSkipConfig(child) {
		t.Fatal("expected child to inherit skipConfigLoad")
	}
	if shouldSkipConfig(&cobra.Command{Use: "plain"}) {
		t.Fatal("expected plain command to load config")
	}
}
