package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	"wallp/internal/config"
	"wallp/internal/deps"
	"wallp/internal/services"
)

// ErrDesktop marks failures while applying a wallpaper.
var ErrDesktop = fmt.Errorf("%w: desktop", services.ErrExternalTool)

// Desktop applies an image file as the background.
type Desktop interface {
	Name() string
	Apply(ctx context.Context, path, style string) error
}

type commandRunner func(ctx context.Context, name string, args ...string) error

// Option configures a backend.
type Option func(*backend)

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(run func(ctx context.Context, name string, args ...string) error) Option {
	return func(b *backend) {
		if run != nil {
			b.run = run
		}
	}
}

type argsFunc func(path, style string) (string, []string)

type backend struct {
	name  string
	steps []argsFunc
	run   commandRunner
}

// New returns the backend selected by cfg. The "auto" backend picks the first
// of gsettings or feh found on PATH and degrades to "none".
func New(cfg config.Desktop, opts ...Option) (Desktop, error) {
	name := cfg.Backend
	if name == "auto" {
		name = detectBackend()
	}
	var b *backend
	switch name {
	case "gsettings":
		b = &backend{name: name, steps: gsettingsSteps()}
	case "feh":
		b = &backend{name: name, steps: []argsFunc{fehArgs}}
	case "command":
		step, err := commandArgs(cfg.Command)
		if err != nil {
			return nil, err
		}
		b = &backend{name: name, steps: []argsFunc{step}}
	case "none", "":
		b = &backend{name: "none"}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "desktop", "select backend", fmt.Sprintf("unsupported backend %q", cfg.Backend), nil)
	}
	b.run = defaultCommandRunner
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *backend) Name() string {
	return b.name
}

// Apply runs every command of the backend in order and stops at the first failure.
func (b *backend) Apply(ctx context.Context, path, style string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty wallpaper path", ErrDesktop)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %w", ErrDesktop, path, err)
	}
	for _, step := range b.steps {
		name, args := step(abs, style)
		if err := b.run(ctx, name, args...); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDesktop, b.name, err)
		}
	}
	return nil
}

// Requirements lists the binaries the configured backend needs.
func Requirements(cfg config.Desktop) []deps.Requirement {
	switch cfg.Backend {
	case "gsettings":
		return []deps.Requirement{{Name: "gsettings", Command: "gsettings", Description: "GNOME desktop background"}}
	case "feh":
		return []deps.Requirement{{Name: "feh", Command: "feh", Description: "X11 desktop background"}}
	case "command":
		fields := strings.Fields(cfg.Command)
		if len(fields) == 0 {
			return nil
		}
		return []deps.Requirement{{Name: "desktop command", Command: fields[0], Description: "Custom wallpaper command"}}
	case "auto":
		return []deps.Requirement{
			{Name: "gsettings", Command: "gsettings", Description: "GNOME desktop background", Optional: true},
			{Name: "feh", Command: "feh", Description: "X11 desktop background", Optional: true},
		}
	default:
		return nil
	}
}

func detectBackend() string {
	if found := deps.FirstAvailable("gsettings", "feh"); found != "" {
		return found
	}
	return "none"
}

const gnomeSchema = "org.gnome.desktop.background"

func gsettingsSteps() []argsFunc {
	uri := func(path string) string {
		return (&url.URL{Scheme: "file", Path: path}).String()
	}
	return []argsFunc{
		func(path, _ string) (string, []string) {
			return "gsettings", []string{"set", gnomeSchema, "picture-uri", uri(path)}
		},
		func(path, _ string) (string, []string) {
			return "gsettings", []string{"set", gnomeSchema, "picture-uri-dark", uri(path)}
		},
		func(_, style string) (string, []string) {
			return "gsettings", []string{"set", gnomeSchema, "picture-options", style}
		},
	}
}

var fehModes = map[string]string{
	"centered":  "--bg-center",
	"scaled":    "--bg-max",
	"stretched": "--bg-scale",
	"zoom":      "--bg-fill",
	"spanned":   "--bg-fill",
	"wallpaper": "--bg-tile",
}

func fehArgs(path, style string) (string, []string) {
	mode, ok := fehModes[style]
	if !ok {
		mode = "--bg-fill"
	}
	return "feh", []string{"--no-fehbg", mode, path}
}

// commandArgs expands {path} and {style} placeholders in a configured command.
// A command without {path} receives the path as its last argument.
func commandArgs(command string) (argsFunc, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "desktop", "parse command", "desktop.command is empty", nil)
	}
	hasPath := strings.Contains(command, "{path}")
	return func(path, style string) (string, []string) {
		replacer := strings.NewReplacer("{path}", path, "{style}", style)
		args := make([]string, 0, len(fields))
		for _, field := range fields[1:] {
			args = append(args, replacer.Replace(field))
		}
		if !hasPath {
			args = append(args, path)
		}
		return fields[0], args
	}, nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s not found on PATH: %w", name, err)
		}
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
