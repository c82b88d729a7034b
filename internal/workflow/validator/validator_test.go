package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateExitCode(t *testing.T) {
	e := New()

	ok, err := e.Evaluate("output.exitCode === 0", map[string]interface{}{"exitCode": 1}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate("output.exitCode === 0", map[string]interface{}{"exitCode": 0}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("output.exitCode !== 0", map[string]interface{}{"exitCode": 2.0}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateMatchAndAction(t *testing.T) {
	e := New()
	output := map[string]interface{}{"stdout": "build 42 succeeded\n"}
	action := map[string]interface{}{"name": "build", "args": map[string]interface{}{"want": "succeeded"}}

	tests := []struct {
		exp  string
		want bool
	}{
		{`match(output.stdout, "build \\d+ succeeded")`, true},
		{`match(output.stdout, "failed")`, false},
		{`action.name == "build" && match(output.stdout, action.args.want)`, true},
		{`!match(output.stdout, "^error")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.exp, func(t *testing.T) {
			ok, err := e.Evaluate(tt.exp, output, action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEvaluateFaults(t *testing.T) {
	e := New()

	tests := map[string]string{
		"syntax error":       "output.exitCode ==",
		"unknown identifier": "process.exit(1)",
		"non boolean":        "output.exitCode",
		"bad pattern":        `match(output.stdout, "(")`,
	}
	for name, exp := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := e.Evaluate(exp, map[string]interface{}{"exitCode": 0, "stdout": "x"}, nil)
			assert.Error(t, err)
		})
	}
}

func TestEvaluateCachesPrograms(t *testing.T) {
	e := New()
	exp := "output > 1"

	for _, v := range []int{1, 2, 3} {
		_, err := e.Evaluate(exp, v, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.programs.ItemCount())
}

func TestEvaluateMissingValueIsFalse(t *testing.T) {
	e := New()

	ok, err := e.Evaluate("output.ready", map[string]interface{}{"status": "pending"}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate("output.ready", map[string]interface{}{"ready": true}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
