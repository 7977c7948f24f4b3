// Package dispatcher invokes resolved actions under the registry's
// allow-list guard, with parameter validation and failure isolation.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/validation"
	"github.com/rendis/intentd/pkg/schema"
)

// ExecutedSuccessfully is the normalized outcome for an action that ran
// without producing a value, so callers can tell "ran, no output" from a
// failure.
const ExecutedSuccessfully = "Executed Successfully"

const defaultInvokeTimeout = 30 * time.Second

// Outcome is the normalized result of one dispatch. Code is empty on
// success; otherwise it carries the error code and Output the descriptive
// message.
type Outcome struct {
	Action string `json:"action"`
	Output any    `json:"output"`
	Code   string `json:"code,omitempty"`
}

// Dispatcher validates and invokes actions. Per-request failures inside a
// handler are captured and converted to structured outcomes; they never
// terminate the process.
type Dispatcher struct {
	registry  actions.ActionRegistry
	validator validation.Validator
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Dispatcher. A non-positive timeout falls back to 30s.
func New(registry actions.ActionRegistry, validator validation.Validator, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:  registry,
		validator: validator,
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute dispatches the named action with the given parameters.
//
// A name absent from the registry's allow-list fails with an
// UNAUTHORIZED_ACTION error regardless of where the name came from; the
// registry is the sole boundary preventing arbitrary invocation. Parameter
// and handler failures complete normally with an error-carrying Outcome.
func (d *Dispatcher) Execute(ctx context.Context, name string, params map[string]any) (*Outcome, error) {
	if !d.registry.Has(name) {
		d.logger.ErrorContext(ctx, "unauthorized action access attempt", slog.String("name", name))
		return nil, schema.NewErrorf(schema.ErrCodeUnauthorizedAction,
			"action %q is not in the allow-list", name).WithAction(name)
	}

	action, err := d.registry.Get(name)
	if err != nil {
		return nil, err
	}

	if err := d.validator.ValidateParams(params, action.Schema().InputSchema); err != nil {
		return parameterOutcome(name, err), nil
	}
	if err := action.Validate(paramsOrEmpty(params)); err != nil {
		return parameterOutcome(name, err), nil
	}

	output, err := d.invoke(ctx, action, params)
	if err != nil {
		code := schema.CodeOf(err)
		switch code {
		case schema.ErrCodeParameter, schema.ErrCodeValidation:
			return parameterOutcome(name, err), nil
		case schema.ErrCodeTimeout:
			d.logger.ErrorContext(ctx, "action timed out", slog.String("name", name))
			return &Outcome{Action: name, Output: err.Error(), Code: schema.ErrCodeTimeout}, nil
		default:
			d.logger.ErrorContext(ctx, "error executing action",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
			return &Outcome{Action: name, Output: err.Error(), Code: schema.ErrCodeHandler}, nil
		}
	}

	return &Outcome{Action: name, Output: normalizeOutput(output)}, nil
}

// invoke runs the handler under a timeout with panic recovery.
func (d *Dispatcher) invoke(ctx context.Context, action actions.Action, params map[string]any) (out *actions.ActionOutput, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = schema.NewErrorf(schema.ErrCodeHandler,
				"action %s panicked: %v", action.Name(), r).WithAction(action.Name())
		}
	}()

	out, err = action.Execute(ctx, actions.ActionInput{Params: paramsOrEmpty(params)})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, schema.NewErrorf(schema.ErrCodeTimeout,
			"action %s exceeded the %s execution timeout", action.Name(), d.timeout).WithAction(action.Name())
	}
	return out, err
}

func paramsOrEmpty(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return params
}

// normalizeOutput decodes the handler's raw output, substituting the
// success marker when the handler produced no value.
func normalizeOutput(out *actions.ActionOutput) any {
	if out == nil || len(out.Data) == 0 {
		return ExecutedSuccessfully
	}
	var v any
	if err := json.Unmarshal(out.Data, &v); err != nil {
		return string(out.Data)
	}
	if v == nil || v == "" {
		return ExecutedSuccessfully
	}
	return v
}

func parameterOutcome(name string, err error) *Outcome {
	return &Outcome{
		Action: name,
		Output: fmt.Sprintf("Error: action %s requires valid parameters. %s", name, err.Error()),
		Code:   schema.ErrCodeParameter,
	}
}
