package actions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/intentd/pkg/schema"
)

// JSONActions returns the JSON transformation actions.
func JSONActions() []Action {
	return []Action{
		&jsonQueryAction{cache: make(map[string]*gojq.Code)},
	}
}

// --- json.query ---

const jsonQueryInputSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "data": {}
  },
  "required": ["query", "data"],
  "additionalProperties": false
}`

// jsonQueryAction runs a jq query over caller-supplied JSON data.
// Compiled queries are cached and reused across goroutines.
type jsonQueryAction struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

func (a *jsonQueryAction) Name() string { return "json.query" }

func (a *jsonQueryAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Query or transform JSON data with a jq expression",
		InputSchema: json.RawMessage(jsonQueryInputSchema),
	}
}

func (a *jsonQueryAction) Validate(input map[string]any) error {
	if stringParam(input, "query", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "json.query: missing required param 'query'")
	}
	if _, ok := input["data"]; !ok {
		return schema.NewError(schema.ErrCodeValidation, "json.query: missing required param 'data'")
	}
	return nil
}

func (a *jsonQueryAction) Execute(ctx context.Context, input ActionInput) (*ActionOutput, error) {
	if err := a.Validate(input.Params); err != nil {
		return nil, err
	}

	query := stringParam(input.Params, "query", "")

	code, err := a.getOrCompile(query)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input.Params["data"])

	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if evalErr, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeHandler,
				"json.query: evaluation failed for %q: %s", query, evalErr.Error()).WithCause(evalErr)
		}
		results = append(results, val)
	}

	var result any
	switch len(results) {
	case 0:
		result = nil
	case 1:
		result = results[0]
	default:
		result = results
	}

	data, err := json.Marshal(map[string]any{"query": query, "result": result})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "json.query: marshal output: %v", err)
	}
	return &ActionOutput{Data: json.RawMessage(data)}, nil
}

// getOrCompile returns a cached compiled query or compiles and caches a new one.
func (a *jsonQueryAction) getOrCompile(query string) (*gojq.Code, error) {
	a.mu.RLock()
	if code, ok := a.cache[query]; ok {
		a.mu.RUnlock()
		return code, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if code, ok := a.cache[query]; ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParameter,
			"json.query: parse error in %q: %s", query, err.Error()).WithCause(err)
	}

	// Block $ENV and env access from caller-supplied queries.
	code, err := gojq.Compile(parsed,
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParameter,
			"json.query: compile error in %q: %s", query, err.Error()).WithCause(err)
	}

	a.cache[query] = code
	return code, nil
}
