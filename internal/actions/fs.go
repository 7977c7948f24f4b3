package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/intentd/pkg/schema"
)

// FSConfig configures the filesystem actions.
type FSConfig struct {
	// Root restricts listings to paths under this directory when set.
	Root string
}

// FSActions returns the filesystem actions.
func FSActions(cfg FSConfig) []Action {
	return []Action{
		&fsListAction{cfg: cfg},
	}
}

// --- fs.list ---

const fsListInputSchema = `{
  "type": "object",
  "properties": {
    "directory": {"type": "string"},
    "pattern": {"type": "string"}
  },
  "additionalProperties": false
}`

type fsListAction struct {
	cfg FSConfig
}

func (a *fsListAction) Name() string { return "fs.list" }

func (a *fsListAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "List the files in a directory",
		InputSchema: json.RawMessage(fsListInputSchema),
	}
}

func (a *fsListAction) Validate(input map[string]any) error {
	if pattern := stringParam(input, "pattern", ""); pattern != "" {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "fs.list: invalid pattern %q", pattern)
		}
	}
	return nil
}

func (a *fsListAction) Execute(_ context.Context, input ActionInput) (*ActionOutput, error) {
	if err := a.Validate(input.Params); err != nil {
		return nil, err
	}

	dir := stringParam(input.Params, "directory", ".")
	pattern := stringParam(input.Params, "pattern", "")

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "fs.list: invalid directory %q: %v", dir, err)
	}
	if a.cfg.Root != "" {
		root, rootErr := filepath.Abs(a.cfg.Root)
		if rootErr != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "fs.list: invalid root %q: %v", a.cfg.Root, rootErr)
		}
		if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return nil, schema.NewErrorf(schema.ErrCodeHandler, "fs.list: %q is outside the allowed root", dir)
		}
	}

	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "error listing files: %v", err).WithCause(err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, e.Name())
			if !matched {
				continue
			}
		}
		names = append(names, e.Name())
	}

	result := map[string]any{
		"directory": dir,
		"files":     names,
		"summary":   fmt.Sprintf("Files in '%s': %s", dir, strings.Join(names, ", ")),
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "fs.list: marshal output: %v", err)
	}
	return &ActionOutput{Data: json.RawMessage(data)}, nil
}
