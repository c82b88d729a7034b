package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/workflow/types"
)

func TestHoistImports(t *testing.T) {
	imports, rest := hoistImports("\nimport \"strings\"\nimport (\n\t\"fmt\"\n)\nreturn strings.ToUpper(fmt.Sprint(1)), nil")
	assert.Equal(t, []string{`import "strings"`, "import (\n\t\"fmt\"\n)"}, imports)
	assert.Equal(t, "return strings.ToUpper(fmt.Sprint(1)), nil", rest)
}

func TestInlineCode(t *testing.T) {
	c := &InlineCode{}
	res, err := c.Execute(context.Background(), Request{
		Run: `
			import "strings"
			name, _ := args["name"].(string)
			return strings.ToUpper(name), nil
		`,
		Args: map[string]interface{}{"name": "taskflow"},
	})
	require.NoError(t, err)
	assert.Equal(t, "TASKFLOW", res.Data)
}

func TestInlineCodeSeesConfig(t *testing.T) {
	res, err := (&InlineCode{}).Execute(context.Background(), Request{
		Run:    `return config["outputDir"], nil`,
		Config: &types.Config{OutputDir: "out-dir"},
	})
	require.NoError(t, err)
	assert.Equal(t, "out-dir", res.Data)
}

func TestInlineCodeErrors(t *testing.T) {
	_, err := (&InlineCode{}).Execute(context.Background(), Request{Run: `return nil, fmt.Errorf("nope")`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to create new inline function")

	_, err = (&InlineCode{}).Execute(context.Background(), Request{Run: "import \"errors\"\nreturn nil, errors.New(\"nope\")"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Function threw an error:\nnope")
}

func TestAsyncInlineCode(t *testing.T) {
	c := &InlineCode{Async: true}
	res, err := c.Execute(context.Background(), Request{
		Run: `
			import "time"
			go func() {
				time.Sleep(5 * time.Millisecond)
				done("finished", nil)
			}()
		`,
	})
	require.NoError(t, err)
	assert.Equal(t, "finished", res.Data)
}

func TestAsyncInlineCodeNeverCallsDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := (&InlineCode{Async: true}).Execute(ctx, Request{Run: `_ = args`})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.go")
	src := `package main

import "fmt"

func Run(params map[string]interface{}) (interface{}, error) {
	args, _ := params["args"].(map[string]interface{})
	return fmt.Sprintf("hello %v", args["who"]), nil
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	res, err := (&Script{}).Execute(context.Background(), Request{
		Run:  path,
		Args: map[string]interface{}{"who": "world"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Data)
}

func TestScriptMissing(t *testing.T) {
	_, err := (&Script{}).Execute(context.Background(), Request{Run: filepath.Join(t.TempDir(), "absent.go")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to instantiate script")
}
