package actions

import (
	"context"
	"encoding/json"
	"os/exec"
	"runtime"

	"github.com/rendis/intentd/pkg/schema"
)

const defaultBrowserURL = "https://www.google.com"

// Launcher starts a desktop program without waiting for it to exit.
type Launcher func(ctx context.Context, name string, args ...string) error

// AppsConfig configures the application-launcher actions.
type AppsConfig struct {
	Launcher   Launcher
	BrowserURL string
}

// AppsActions returns the application control actions.
func AppsActions(cfg AppsConfig) []Action {
	if cfg.Launcher == nil {
		cfg.Launcher = detachedLaunch
	}
	if cfg.BrowserURL == "" {
		cfg.BrowserURL = defaultBrowserURL
	}
	return []Action{
		&openBrowserAction{cfg: cfg},
		&openCalculatorAction{cfg: cfg},
		&openEditorAction{cfg: cfg},
	}
}

// detachedLaunch starts the program and releases it so the request
// pipeline is not blocked on a GUI process.
func detachedLaunch(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// launchSpec maps a logical program to a per-platform command line.
type launchSpec struct {
	linux   []string
	darwin  []string
	windows []string
}

func (s launchSpec) command() []string {
	switch runtime.GOOS {
	case "darwin":
		return s.darwin
	case "windows":
		return s.windows
	default:
		return s.linux
	}
}

func launch(ctx context.Context, l Launcher, spec launchSpec) error {
	argv := spec.command()
	if len(argv) == 0 {
		return schema.NewErrorf(schema.ErrCodeHandler, "no launcher for platform %s", runtime.GOOS)
	}
	if err := l(ctx, argv[0], argv[1:]...); err != nil {
		return schema.NewErrorf(schema.ErrCodeHandler, "launch %s: %v", argv[0], err).WithCause(err)
	}
	return nil
}

// --- apps.open_browser ---

const openBrowserInputSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string"}
  },
  "additionalProperties": false
}`

type openBrowserAction struct {
	cfg AppsConfig
}

func (a *openBrowserAction) Name() string { return "apps.open_browser" }

func (a *openBrowserAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Open the web browser, optionally at a given URL",
		InputSchema: json.RawMessage(openBrowserInputSchema),
	}
}

func (a *openBrowserAction) Validate(_ map[string]any) error { return nil }

func (a *openBrowserAction) Execute(ctx context.Context, input ActionInput) (*ActionOutput, error) {
	url := stringParam(input.Params, "url", a.cfg.BrowserURL)
	spec := launchSpec{
		linux:   []string{"xdg-open", url},
		darwin:  []string{"open", url},
		windows: []string{"rundll32", "url.dll,FileProtocolHandler", url},
	}
	if err := launch(ctx, a.cfg.Launcher, spec); err != nil {
		return nil, err
	}
	return nil, nil
}

// --- apps.open_calculator ---

type openCalculatorAction struct {
	cfg AppsConfig
}

func (a *openCalculatorAction) Name() string { return "apps.open_calculator" }

func (a *openCalculatorAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Open the desktop calculator application",
	}
}

func (a *openCalculatorAction) Validate(_ map[string]any) error { return nil }

func (a *openCalculatorAction) Execute(ctx context.Context, _ ActionInput) (*ActionOutput, error) {
	spec := launchSpec{
		linux:   []string{"gnome-calculator"},
		darwin:  []string{"open", "-a", "Calculator"},
		windows: []string{"calc"},
	}
	if err := launch(ctx, a.cfg.Launcher, spec); err != nil {
		return nil, err
	}
	return nil, nil
}

// --- apps.open_editor ---

type openEditorAction struct {
	cfg AppsConfig
}

func (a *openEditorAction) Name() string { return "apps.open_editor" }

func (a *openEditorAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Open the plain text editor application",
	}
}

func (a *openEditorAction) Validate(_ map[string]any) error { return nil }

func (a *openEditorAction) Execute(ctx context.Context, _ ActionInput) (*ActionOutput, error) {
	spec := launchSpec{
		linux:   []string{"gedit"},
		darwin:  []string{"open", "-a", "TextEdit"},
		windows: []string{"notepad"},
	}
	if err := launch(ctx, a.cfg.Launcher, spec); err != nil {
		return nil, err
	}
	return nil, nil
}
