package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/workflow/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

type fakePrompter struct {
	answers map[string]string
	asked   []string
}

func (f *fakePrompter) Prompt(label string, mask bool) (string, error) {
	f.asked = append(f.asked, label)
	for k, v := range f.answers {
		if label == k {
			return v, nil
		}
	}
	return "", errors.New("unexpected prompt " + label)
}

const workflow = `
global:
  greeting: hello
input:
  project:
    desc: Project name
    sources: [user, env]
  level:
    sources: [env]
    allowBlank: true
tasks:
  build:
    desc: Build ${project}
    actions:
      - name: say
        action:
          type: exec
          run: echo ${greeting} ${project} ${extracted.later}
`

func TestLoadResolvesUserInputsAndGlobal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taskflow.yaml", workflow)
	userPath := writeFile(t, dir, "user.yaml", "project: demo\n")

	l, err := Load(Options{
		ConfigPath:      path,
		UserConfigPaths: []string{userPath},
		LookupEnv: func(name string) (string, bool) {
			if name == "TASKFLOW_LEVEL" {
				return "3", true
			}
			return "", false
		},
	})
	require.NoError(t, err)

	task := l.TaskByName("build")
	require.NotNil(t, task)
	assert.Equal(t, "Build demo", task.Desc)
	require.Len(t, task.Actions, 1)
	assert.Equal(t, "echo hello demo ${extracted.later}", task.Actions[0].Inline.Action.Run)

	assert.Equal(t, 3, l.Inputs["level"])
	assert.Equal(t, "demo", l.User["project"])
	assert.Equal(t, 3, l.Config.User["level"])
	assert.Equal(t, DefaultOutputDir, l.Config.OutputDir)
}

func TestLoadMissingInput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taskflow.yaml", workflow)

	_, err := Load(Options{ConfigPath: path, LookupEnv: noEnv})
	require.Error(t, err)
	assert.Equal(t, `No value supplied for "project" from "user,env".`, err.Error())
}

func TestLoadSetOverridesUserConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taskflow.yaml", workflow)
	first := writeFile(t, dir, "first.yaml", "project: first\n")
	second := writeFile(t, dir, "second.yaml", "project: second\nextra: true\n")

	l, err := Load(Options{
		ConfigPath:      path,
		UserConfigPaths: []string{first, second},
		LookupEnv:       func(string) (string, bool) { return "", true },
	})
	require.NoError(t, err)
	assert.Equal(t, "first", l.User["project"])
	assert.Equal(t, true, l.User["extra"])
	assert.Equal(t, "", l.Inputs["level"])

	l, err = Load(Options{
		ConfigPath:      path,
		UserConfigPaths: []string{first},
		Set:             map[string]string{"project": "cli"},
		LookupEnv:       func(string) (string, bool) { return "", true },
	})
	require.NoError(t, err)
	assert.Equal(t, "Build cli", l.TaskByName("build").Desc)
}

func TestLoadRequires(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taskflow.yaml", "requires: \">= 2.0.0\"\ntasks:\n  t:\n    actions: [a]\nhelpers:\n  actions:\n    - name: a\n      action: {type: func, run: sleep}\n")

	_, err := Load(Options{ConfigPath: path, Version: "1.4.0", LookupEnv: noEnv})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires taskflow >= 2.0.0")

	_, err = Load(Options{ConfigPath: path, Version: "2.1.0", LookupEnv: noEnv})
	assert.NoError(t, err)
}

func TestLoadSchemaFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taskflow.yaml", "tasks:\n  t:\n    async: maybe\n    tasks: [x]\n")

	_, err := Load(Options{ConfigPath: path, LookupEnv: noEnv})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow failed schema validation")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taskflow init")
}

func TestGatherInputsPrompt(t *testing.T) {
	inputs := types.NamedInputs{
		{Name: "token", Input: types.Input{Sources: []string{"prompt"}, Mask: true}},
		{Name: "port", Input: types.Input{Desc: "Port for", Sources: []string{"user", "prompt"}}},
	}
	p := &fakePrompter{answers: map[string]string{
		`Specify value for "token" (masked)`: `"007"`,
		`Port for "port"`:                    "8080",
	}}

	got, err := GatherInputs(inputs, types.Vars{}, p, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "007", got["token"])
	assert.Equal(t, 8080, got["port"])
	assert.Len(t, p.asked, 2)
}

func TestGatherInputsUserSource(t *testing.T) {
	inputs := types.NamedInputs{
		{Name: "name", Input: types.Input{Sources: []string{"user"}}},
	}

	_, err := GatherInputs(inputs, types.Vars{"name": "  "}, nil, noEnv)
	assert.Error(t, err)

	inputs[0].Input.AllowBlank = true
	got, err := GatherInputs(inputs, types.Vars{"name": "  "}, nil, noEnv)
	require.NoError(t, err)
	assert.NotContains(t, got, "name")
}

func TestGatherInputsPromptSkippedWithoutTerminal(t *testing.T) {
	inputs := types.NamedInputs{
		{Name: "region", Input: types.Input{Sources: []string{"prompt", "env"}}},
	}
	lookup := func(name string) (string, bool) {
		if name == "TASKFLOW_REGION" {
			return "eu-west", true
		}
		return "", false
	}

	got, err := GatherInputs(inputs, types.Vars{}, nil, lookup)
	require.NoError(t, err)
	assert.Equal(t, "eu-west", got["region"])
}

func TestProcessInputValue(t *testing.T) {
	tests := []struct {
		in         string
		allowBlank bool
		want       interface{}
	}{
		{`"42"`, false, "42"},
		{"42", false, 42},
		{"12abc", false, 12},
		{"-3", false, -3},
		{"true", false, true},
		{"false", false, false},
		{"plain", false, "plain"},
		{"", true, ""},
		{"  ", false, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProcessInputValue(tt.in, tt.allowBlank), "input %q", tt.in)
	}
}

func TestLoadUserConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "x: a\n")
	b := writeFile(t, dir, "b.yaml", "x: b\ny: b\n")

	got, err := LoadUserConfig([]string{a, b, filepath.Join(dir, "missing.yaml")})
	require.NoError(t, err)
	assert.Equal(t, types.Vars{"x": "a", "y": "b"}, got)
}

func TestApplySetNested(t *testing.T) {
	user := types.Vars{"db": map[string]interface{}{"host": "old"}}
	require.NoError(t, applySet(user, map[string]string{"db.host": "new", "db.port": "5432", "flag": "true"}))

	assert.Equal(t, map[string]interface{}{"host": "new", "port": 5432}, user["db"])
	assert.Equal(t, true, user["flag"])

	err := applySet(types.Vars{"db": "scalar"}, map[string]string{"db.host": "x"})
	assert.Error(t, err)
}

func TestRunLogDir(t *testing.T) {
	now := time.Date(2024, time.March, 5, 7, 8, 9, 45*int(time.Millisecond), time.UTC)
	assert.Equal(t, filepath.Join("out", "2024-3-5_time_7-8-9_45ms"), RunLogDir("out", now))
	assert.Equal(t, filepath.Join(DefaultOutputDir, "2024-3-5_time_7-8-9_45ms"), RunLogDir("", now))
}
