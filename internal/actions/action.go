package actions

import (
	"context"
	"encoding/json"
)

// Action is a named, invocable unit of automation.
type Action interface {
	Name() string
	Schema() ActionSchema
	Execute(ctx context.Context, input ActionInput) (*ActionOutput, error)
	Validate(input map[string]any) error
}

// ActionRegistry manages the lifecycle and lookup of available actions.
// It doubles as the dispatcher's allow-list: only registered names may
// ever be invoked.
type ActionRegistry interface {
	Register(action Action) error
	Get(name string) (Action, error)
	Has(name string) bool
	List() []ActionInfo
	Catalog() []CatalogEntry
}

// ActionSchema describes the input contract and descriptor of an action.
type ActionSchema struct {
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ActionInput is the data provided to an action at execution time.
type ActionInput struct {
	Params map[string]any `json:"params"`
}

// ActionOutput is the result of an action execution. A nil or empty Data
// means the action ran without producing a value.
type ActionOutput struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// ActionInfo is a summary of a registered action for listing.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CatalogEntry pairs an action name with the descriptor text used to embed
// it into the similarity index.
type CatalogEntry struct {
	Name       string
	Descriptor string
}

// Descriptor returns the text to embed for an action: its description, or
// the name itself when no description exists.
func Descriptor(a Action) string {
	if d := a.Schema().Description; d != "" {
		return d
	}
	return a.Name()
}

// TextOutput wraps a plain string result as an ActionOutput.
func TextOutput(s string) (*ActionOutput, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return &ActionOutput{Data: json.RawMessage(data)}, nil
}
