package actions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/intentd/pkg/schema"
)

func calcResult(t *testing.T, out *ActionOutput) map[string]any {
	t.Helper()
	require.NotNil(t, out)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Data, &m))
	return m
}

func TestCalcEval_Arithmetic(t *testing.T) {
	a := findAction(t, CalcActions(), "calc.eval")

	out, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{"expression": "2 + 3 * 4"},
	})
	require.NoError(t, err)

	m := calcResult(t, out)
	assert.Equal(t, "2 + 3 * 4", m["expression"])
	assert.Equal(t, float64(14), m["result"])
}

func TestCalcEval_Vars(t *testing.T) {
	a := findAction(t, CalcActions(), "calc.eval")

	out, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{
			"expression": "price * qty",
			"vars":       map[string]any{"price": 2.5, "qty": 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(10), calcResult(t, out)["result"])
}

func TestCalcEval_MissingExpression(t *testing.T) {
	a := findAction(t, CalcActions(), "calc.eval")
	err := a.Validate(map[string]any{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestCalcEval_InvalidExpression(t *testing.T) {
	a := findAction(t, CalcActions(), "calc.eval")
	_, err := a.Execute(context.Background(), ActionInput{
		Params: map[string]any{"expression": "2 +* 3"},
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeParameter, schema.CodeOf(err))
}

func TestCalcEval_CacheReuse(t *testing.T) {
	a := CalcActions()[0].(*calcEvalAction)

	for i := 0; i < 3; i++ {
		_, err := a.Execute(context.Background(), ActionInput{
			Params: map[string]any{"expression": "1 + 1"},
		})
		require.NoError(t, err)
	}
	assert.Len(t, a.cache, 1)
}
