package actions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/intentd/pkg/schema"
)

func jsonqResult(t *testing.T, out *ActionOutput) any {
	t.Helper()
	require.NotNil(t, out)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Data, &m))
	return m["result"]
}

func TestJSONQuery_SingleResult(t *testing.T) {
	a := findAction(t, JSONActions(), "json.query")

	out, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{
			"query": ".name",
			"data":  map[string]any{"name": "ada", "age": 36},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ada", jsonqResult(t, out))
}

func TestJSONQuery_MultipleResults(t *testing.T) {
	a := findAction(t, JSONActions(), "json.query")

	out, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{
			"query": ".[] | .id",
			"data": []any{
				map[string]any{"id": float64(1)},
				map[string]any{"id": float64(2)},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, jsonqResult(t, out))
}

func TestJSONQuery_NoResults(t *testing.T) {
	a := findAction(t, JSONActions(), "json.query")

	out, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{
			"query": ".[] | select(.id > 10)",
			"data":  []any{map[string]any{"id": float64(1)}},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, jsonqResult(t, out))
}

func TestJSONQuery_MissingParams(t *testing.T) {
	a := findAction(t, JSONActions(), "json.query")

	err := a.Validate(map[string]any{"data": map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	err = a.Validate(map[string]any{"query": "."})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestJSONQuery_ParseError(t *testing.T) {
	a := findAction(t, JSONActions(), "json.query")

	_, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{"query": ".[", "data": map[string]any{}},
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeParameter, schema.CodeOf(err))
}

func TestJSONQuery_EnvBlocked(t *testing.T) {
	t.Setenv("JSONQ_SECRET", "hidden")

	a := findAction(t, JSONActions(), "json.query")
	out, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{"query": `$ENV.JSONQ_SECRET`, "data": map[string]any{}},
	})
	require.NoError(t, err)
	assert.Nil(t, jsonqResult(t, out))
}

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, BuiltinConfig{}))

	for _, name := range []string{
		"apps.open_browser",
		"apps.open_calculator",
		"apps.open_editor",
		"system.cpu_usage",
		"system.ram_usage",
		"fs.list",
		"calc.eval",
		"json.query",
	} {
		assert.True(t, reg.Has(name), "missing builtin %s", name)
	}
}
