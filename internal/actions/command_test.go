package actions

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/sshclient"
	"taskflow/internal/workflow/types"
)

func TestBuildFlags(t *testing.T) {
	got := BuildFlags(map[string]interface{}{
		"dryRun":  true,
		"force":   false,
		"name":    "x y",
		"tags":    []interface{}{"a", "b"},
		"retries": 3,
		"cwd":     "/tmp",
		"env":     map[string]interface{}{"A": "1"},
		"skip":    nil,
	})
	assert.Equal(t, "--dry-run --name 'x y' --retries 3 --tags a --tags b", got)
}

type fakeRemote struct {
	cmds   []string
	result *sshclient.Result
	closed bool
}

func (f *fakeRemote) Run(ctx context.Context, cmd string) (*sshclient.Result, error) {
	f.cmds = append(f.cmds, cmd)
	return f.result, nil
}

func (f *fakeRemote) Close() error {
	f.closed = true
	return nil
}

func TestCommandRemote(t *testing.T) {
	remote := &fakeRemote{result: &sshclient.Result{Stdout: "deployed\n"}}
	var dialed types.Host
	c := &Command{Dial: func(ctx context.Context, h types.Host) (RemoteRunner, error) {
		dialed = h
		return remote, nil
	}}
	cfg := &types.Config{Hosts: map[string]types.Host{
		"box": {Host: "10.0.0.5", User: "deploy", Password: "pw"},
	}}

	res, err := c.Execute(context.Background(), Request{
		Run:    "app deploy",
		Args:   map[string]interface{}{"cwd": "/srv/app", "version": "1.2"},
		Action: &types.Action{Name: "deploy", DestSystem: "box"},
		Config: cfg,
	})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", dialed.Host)
	assert.Equal(t, []string{"cd '/srv/app' && app deploy --version 1.2"}, remote.cmds)
	assert.True(t, remote.closed)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "deployed\n", data["stdout"])
}

func TestCommandRemoteFailure(t *testing.T) {
	remote := &fakeRemote{result: &sshclient.Result{Stderr: "denied", ExitCode: 2}}
	c := &Command{Dial: func(ctx context.Context, h types.Host) (RemoteRunner, error) { return remote, nil }}

	res, err := c.Execute(context.Background(), Request{
		Run:    "app deploy",
		Action: &types.Action{Name: "deploy", DestSystem: "box"},
		Config: &types.Config{Hosts: map[string]types.Host{"box": {Host: "h"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero code: 2")
	assert.Contains(t, err.Error(), "denied")
	assert.Equal(t, false, res.Data.(map[string]interface{})["success"])
}

func TestCommandUnknownDestination(t *testing.T) {
	_, err := (&Command{}).Execute(context.Background(), Request{
		Run:    "app",
		Action: &types.Action{Name: "a", DestSystem: "nowhere"},
		Config: &types.Config{},
	})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Contains(t, inputErr.Msg, `"nowhere"`)
}

func TestCommandLocal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses echo from sh")
	}
	res, err := (&Command{}).Execute(context.Background(), Request{
		Run:    "echo",
		Args:   map[string]interface{}{"message": "hi", "verbose": true},
		Action: &types.Action{Name: "local"},
	})
	require.NoError(t, err)
	assert.Equal(t, "--message hi --verbose\n", res.Data.(map[string]interface{})["stdout"])
}
