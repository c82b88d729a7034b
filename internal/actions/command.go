package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"taskflow/internal/sshclient"
	"taskflow/internal/util"
	"taskflow/internal/workflow/types"
)

// reserved args configure the process rather than becoming flags.
var reservedCommandArgs = map[string]bool{"cwd": true, "env": true, "tty": true}

// Command runs a CLI command with the action args rendered as flags, either
// locally or on the host named by the action's destSystem.
type Command struct {
	// Dial opens a connection for a host entry. Nil uses sshclient.
	Dial func(ctx context.Context, h types.Host) (RemoteRunner, error)
}

// RemoteRunner runs a command on a connected host.
type RemoteRunner interface {
	Run(ctx context.Context, cmd string) (*sshclient.Result, error)
	Close() error
}

func (c *Command) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	if strings.TrimSpace(req.Run) == "" {
		return nil, inputErrorf("You must specify a value for the action's \"run\".")
	}
	cmdline := strings.TrimSpace(req.Run)
	if flags := BuildFlags(req.Args); flags != "" {
		cmdline += " " + flags
	}

	dest := ""
	if req.Action != nil {
		dest = req.Action.DestSystem
	}

	var out *shellOutput
	var err error
	if dest == "" {
		out, err = runShell(ctx, cmdline, req.Args)
	} else {
		out, err = c.runRemote(ctx, req, dest, cmdline)
	}
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"success":  out.exitCode == 0,
		"exitCode": out.exitCode,
		"stdout":   out.stdout,
		"stderr":   out.stderr,
	}
	if out.exitCode != 0 {
		return &types.RunResult{Data: data}, commandFailure(req.Run, out)
	}
	return &types.RunResult{Data: data}, nil
}

func (c *Command) runRemote(ctx context.Context, req Request, dest, cmdline string) (*shellOutput, error) {
	if req.Config == nil {
		return nil, inputErrorf("Destination system %q is not defined in hosts.", dest)
	}
	host, ok := req.Config.Hosts[dest]
	if !ok {
		return nil, inputErrorf("Destination system %q is not defined in hosts.", dest)
	}

	dial := c.Dial
	if dial == nil {
		dial = dialSSH
	}
	client, err := dial(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %q: %v", dest, err)
	}
	defer client.Close()

	res, err := client.Run(ctx, remoteCommandLine(cmdline, req.Args))
	if err != nil {
		return nil, err
	}
	return &shellOutput{stdout: res.Stdout, stderr: res.Stderr, exitCode: res.ExitCode}, nil
}

func dialSSH(ctx context.Context, h types.Host) (RemoteRunner, error) {
	client, err := sshclient.NewSSHClient(sshclient.Options{
		Host:       h.Host,
		Port:       h.Port,
		User:       h.User,
		Password:   h.Password,
		PrivateKey: h.PrivateKey,
		JumpHost:   h.JumpHost,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// remoteCommandLine prefixes cmdline with the cwd and env args, since a
// remote session has no other way to receive them.
func remoteCommandLine(cmdline string, args map[string]interface{}) string {
	var b strings.Builder
	if cwd, ok := stringArg(args, "cwd"); ok && cwd != "" {
		b.WriteString("cd " + sshclient.ShellEscape(cwd) + " && ")
	}
	if env, ok := args["env"].(map[string]interface{}); ok {
		for _, k := range sortedKeys(env) {
			fmt.Fprintf(&b, "%s=%s ", k, sshclient.ShellEscape(fmt.Sprint(env[k])))
		}
	}
	b.WriteString(cmdline)
	return b.String()
}

func commandFailure(run string, out *shellOutput) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Command exited with a non-zero code: %d.", out.exitCode)
	if strings.TrimSpace(out.stderr) != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", strings.TrimRight(out.stderr, "\n"))
	}
	if strings.TrimSpace(out.stdout) != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", strings.TrimRight(out.stdout, "\n"))
	}
	fmt.Fprintf(&b, "\nThe CLI %q command failed.", run)
	return fmt.Errorf("%s", b.String())
}

// BuildFlags renders args as "--kebab-flag value" pairs in key order. True
// booleans become bare flags, false ones are dropped and arrays repeat the
// flag once per element.
func BuildFlags(args map[string]interface{}) string {
	var parts []string
	for _, k := range sortedKeys(args) {
		if reservedCommandArgs[k] {
			continue
		}
		flag := "--" + util.KebabCase(k)
		switch v := args[k].(type) {
		case nil:
		case bool:
			if v {
				parts = append(parts, flag)
			}
		case []interface{}:
			for _, item := range v {
				parts = append(parts, flag, quoteArg(fmt.Sprint(item)))
			}
		case map[string]interface{}:
			b, err := json.Marshal(v)
			if err == nil {
				parts = append(parts, flag, quoteArg(string(b)))
			}
		default:
			parts = append(parts, flag, quoteArg(fmt.Sprint(v)))
		}
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>*?()[]{}#~!") {
		return s
	}
	return sshclient.ShellEscape(s)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
