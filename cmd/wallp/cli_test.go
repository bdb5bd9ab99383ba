package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestChangeReportsProgressAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"change", "--source", "color", "--color", "#336699", "--timeout", "20s"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || lines[0] != "CHANGING" || lines[1] != "READY" {
		t.Fatalf("unexpected change output %q", out)
	}
	if filepath.Dir(lines[2]) != env.cfg.StagingDir() {
		t.Fatalf("expected wallpaper in %s, got %q", env.cfg.StagingDir(), lines[2])
	}
	if _, err := os.Stat(lines[2]); err != nil {
		t.Fatalf("expected staged file: %v", err)
	}

	out, _, err = runCLI(t, []string{"history", "--trace"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "color")
	requireContains(t, out, "64x48")
	requireContains(t, out, lines[2])

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid "+strconv.Itoa(os.Getpid())+")")
	requireContains(t, out, "No external tools required")
}

func TestChangeNoWaitQueues(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"change", "--no-wait", "--source", "color"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	requireContains(t, out, "change queued")
}

func TestScheduleCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"schedule", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule show: %v", err)
	}
	requireContains(t, out, "No scheduled changes")

	out, _, err = runCLI(t, []string{"schedule", "set", "2h", "--source", "color"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule set: %v", err)
	}
	requireContains(t, out, "every 2 hours")
	requireContains(t, out, `{"source":"color"}`)

	if _, _, err := runCLI(t, []string{"schedule", "set", "5y"}, env.socketPath, env.configPath); err == nil || !strings.Contains(err.Error(), "invalid frequency") {
		t.Fatalf("expected invalid frequency error, got %v", err)
	}

	out, _, err = runCLI(t, []string{"schedule", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule show: %v", err)
	}
	requireContains(t, out, "wallpaper")
	requireContains(t, out, "2h")

	out, _, err = runCLI(t, []string{"schedule", "remove"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule remove: %v", err)
	}
	requireContains(t, out, "Schedule removed")

	out, _, err = runCLI(t, []string{"schedule", "remove"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule remove again: %v", err)
	}
	requireContains(t, out, "No schedule installed")
}

func TestSourcesAndTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sources"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	requireContains(t, out, "color")
	requireContains(t, out, "generative")
	requireContains(t, out, "yes")

	out, _, err = runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestLogsShowsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "first\nsecond\nthird\n"
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestConfigSettings(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "set", "color.saturation", "0.25"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	requireContains(t, out, "color.saturation = 0.25")

	out, _, err = runCLI(t, []string{"config", "get", "color.saturation"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "0.25" {
		t.Fatalf("unexpected setting value %q", out)
	}

	if _, _, err := runCLI(t, []string{"config", "set", "color.gradient", "maybe"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected type error for bool setting")
	}
	if _, _, err := runCLI(t, []string{"config", "get", "nosuch.setting"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown setting error")
	}

	out, _, err = runCLI(t, []string{"config", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	requireContains(t, out, "bing.market")
	requireContains(t, out, "en-US")
}

func TestConfigInitAndValidate(t *testing.T) {
	isolateHome(t)
	target := filepath.Join(t.TempDir(), "wallp", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	isolateHome(t)
	socket := filepath.Join(t.TempDir(), "missing.sock")

	_, _, err := runCLI(t, []string{"sources"}, socket, "")
	if err == nil || !strings.Contains(err.Error(), "wallp start") {
		t.Fatalf("expected start hint, got %v", err)
	}
}
