package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/workflow/types"
)

const sample = `
workflow:
  outputDir: out
  input:
    zeta:
      sources: [env]
    alpha:
      sources: [user]
  helpers:
    tasks:
      later: {actions: [shared]}
      earlier: {actions: [shared]}
    actions:
      - name: shared
        action: {type: func, run: sleep}
  tasks:
    deploy:
      desc: Deploy
      actions:
        - shared
        - name: inline
          action: {type: exec, run: "echo hi"}
          repeat:
            forEach: ${extracted.items}
    build:
      tasks:
        - deploy
        - name: nested
          task:
            actions: [shared]
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseWorkflowKeepsDeclarationOrder(t *testing.T) {
	cfg, err := ParseWorkflow(writeSample(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, []string{"deploy", "build"}, cfg.Tasks.Names())
	assert.Equal(t, []string{"later", "earlier"}, cfg.Helpers.Tasks.Names())
	require.Len(t, cfg.Input, 2)
	assert.Equal(t, "zeta", cfg.Input[0].Name)
	assert.Equal(t, "alpha", cfg.Input[1].Name)
}

func TestParseWorkflowRefs(t *testing.T) {
	cfg, err := ParseWorkflow(writeSample(t, sample))
	require.NoError(t, err)

	deploy := cfg.Tasks.Lookup("deploy")
	require.NotNil(t, deploy)
	require.Len(t, deploy.Actions, 2)
	assert.Equal(t, "shared", deploy.Actions[0].Name)
	assert.Nil(t, deploy.Actions[0].Inline)
	require.NotNil(t, deploy.Actions[1].Inline)
	assert.Equal(t, "echo hi", deploy.Actions[1].Inline.Action.Run)
	assert.Equal(t, "${extracted.items}", deploy.Actions[1].Inline.Repeat.ForEach.Ref)

	build := cfg.Tasks.Lookup("build")
	require.Len(t, build.Tasks, 2)
	assert.Equal(t, types.TaskRef{Name: "deploy"}, build.Tasks[0])
	assert.Equal(t, "nested", build.Tasks[1].Name)
	require.NotNil(t, build.Tasks[1].Task)
	assert.Equal(t, 1, build.Tasks[1].Task.Shapes())
}

func TestParseDocumentWrapper(t *testing.T) {
	doc, err := ParseDocument([]byte("workflow:\n  tasks: {}\n"))
	require.NoError(t, err)
	assert.Contains(t, doc, "tasks")

	doc, err = ParseDocument([]byte("workflow: x\ntasks: {}\n"))
	require.NoError(t, err)
	assert.Contains(t, doc, "workflow")

	doc, err = ParseDocument([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, doc)

	_, err = ParseDocument([]byte("tasks: [unclosed"))
	assert.Error(t, err)
}

func TestToDocumentRoundTrip(t *testing.T) {
	a := &types.Action{
		Name:   "a",
		Action: &types.ActionRun{Type: "func", Run: "glob"},
		Args:   map[string]interface{}{"pattern": "*.go"},
	}
	doc, err := ToDocument(a)
	require.NoError(t, err)
	assert.Equal(t, "glob", doc["action"].(map[string]interface{})["run"])

	doc["name"] = "renamed"
	var out types.Action
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, "renamed", out.Name)
	assert.Equal(t, "a", a.Name)
}

func TestParseUserConfigSafe(t *testing.T) {
	vars, err := ParseUserConfigSafe(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, vars)

	path := writeSample(t, "name: demo\nnested:\n  n: 1\n")
	vars, err = ParseUserConfigSafe(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", vars["name"])
	assert.Equal(t, map[string]interface{}{"n": 1}, vars["nested"])

	_, err = ParseUserConfig(writeSample(t, "- not\n- a map\n"))
	assert.Error(t, err)
}

func TestParseKeyOrderIgnoresBadInput(t *testing.T) {
	assert.Equal(t, KeyOrder{}, ParseKeyOrder([]byte(":::")))
	assert.Equal(t, []string{"b", "a"}, ParseKeyOrder([]byte("tasks:\n  b: {}\n  a: {}\n")).Tasks)
}
