package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/workflow/types"
)

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"cmd":               TypeCommand,
		"command":           TypeCommand,
		"func":              TypeFunction,
		"exec":              TypeSubprocess,
		"js":                TypeInlineCode,
		"asyncjs":           TypeAsyncInlineCode,
		"async-inline-code": TypeAsyncInlineCode,
		" script ":          TypeScript,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, ok := ParseType(in)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}

	_, ok := ParseType("host")
	assert.False(t, ok)
}

func TestRegistryUnknownTypeIsInputError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), Request{Type: "teleport", Run: "x"})

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Contains(t, inputErr.Msg, `Unknown action type "teleport"`)
}

func TestRegistryNormalizesData(t *testing.T) {
	r := &Registry{executors: map[Type]Executor{}}
	r.Register(TypeFunction, ExecutorFunc(func(ctx context.Context, req Request) (*types.RunResult, error) {
		assert.Equal(t, TypeFunction, req.Type)
		return &types.RunResult{Data: map[string]int{"count": 2}, Warnings: []string{"w"}}, nil
	}))

	res, err := r.Execute(context.Background(), Request{Type: "func", Run: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"count": float64(2)}, res.Data)
	assert.Equal(t, []string{"w"}, res.Warnings)
}

func TestRegistryNilResult(t *testing.T) {
	r := &Registry{executors: map[Type]Executor{}}
	r.Register(TypeScript, ExecutorFunc(func(ctx context.Context, req Request) (*types.RunResult, error) {
		return nil, nil
	}))

	res, err := r.Execute(context.Background(), Request{Type: TypeScript, Run: "x"})
	require.NoError(t, err)
	assert.Nil(t, res.Data)
}

func TestNormalizeScalars(t *testing.T) {
	v, err := Normalize("text")
	require.NoError(t, err)
	assert.Equal(t, "text", v)

	v, err = Normalize(3)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	v, err = Normalize([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a"}, v)
}
