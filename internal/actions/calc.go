package actions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/intentd/pkg/schema"
)

// CalcActions returns the expression evaluation actions.
func CalcActions() []Action {
	return []Action{
		&calcEvalAction{cache: make(map[string]*vm.Program)},
	}
}

// --- calc.eval ---

const calcEvalInputSchema = `{
  "type": "object",
  "properties": {
    "expression": {"type": "string", "minLength": 1},
    "vars": {"type": "object"}
  },
  "required": ["expression"],
  "additionalProperties": false
}`

// calcEvalAction evaluates arithmetic and logic expressions.
// Compiled programs are cached and reused across goroutines.
type calcEvalAction struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func (a *calcEvalAction) Name() string { return "calc.eval" }

func (a *calcEvalAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Calculate the result of an arithmetic or logic expression",
		InputSchema: json.RawMessage(calcEvalInputSchema),
	}
}

func (a *calcEvalAction) Validate(input map[string]any) error {
	if stringParam(input, "expression", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "calc.eval: missing required param 'expression'")
	}
	return nil
}

func (a *calcEvalAction) Execute(_ context.Context, input ActionInput) (*ActionOutput, error) {
	if err := a.Validate(input.Params); err != nil {
		return nil, err
	}

	expression := stringParam(input.Params, "expression", "")
	vars := mapParam(input.Params, "vars")
	if vars == nil {
		vars = map[string]any{}
	}

	prg, err := a.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(prg, vars)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler,
			"calc.eval: evaluation failed for %q: %s", expression, err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{"expression": expression, "result": out})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "calc.eval: marshal output: %v", err)
	}
	return &ActionOutput{Data: json.RawMessage(data)}, nil
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
func (a *calcEvalAction) getOrCompile(expression string) (*vm.Program, error) {
	a.mu.RLock()
	if prg, ok := a.cache[expression]; ok {
		a.mu.RUnlock()
		return prg, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if prg, ok := a.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParameter,
			"calc.eval: invalid expression %q: %s", expression, err.Error()).WithCause(err)
	}

	a.cache[expression] = prg
	return prg, nil
}
