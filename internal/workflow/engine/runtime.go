// Package engine walks a workflow's task tree: it resolves variables, runs
// actions through an executor and applies conditions, validators, retries,
// extraction and error hooks.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"taskflow/internal/actions"
	"taskflow/internal/logging"
	"taskflow/internal/metrics"
	"taskflow/internal/util"
	"taskflow/internal/workflow/types"
	"taskflow/internal/workflow/validator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Indent is added to the console indentation for each nested task level.
const Indent = "       "

const onErrorPrefix = "(On Error) "

// Sequence numbers log directories and files across a whole run, including
// concurrent branches.
type Sequence struct {
	n atomic.Int64
}

func (s *Sequence) Next() int64 { return s.n.Add(1) }

// Runtime is the shared state of one run: the loaded config, the executor and
// the sinks. A Runtime is safe for concurrent use by async branches.
type Runtime struct {
	Config      *types.Config
	Executor    actions.Executor
	Validator   *validator.Evaluator
	Console     *util.Printer
	Metrics     *metrics.Metrics
	LogOutput   bool // write args/output/extracted artifacts for every action
	MaxParallel int  // async fan-out limit, 0 = unbounded

	seq Sequence
}

// New returns a Runtime with a fresh validator cache and the default console.
func New(cfg *types.Config, exec actions.Executor) *Runtime {
	if cfg == nil {
		cfg = &types.Config{}
	}
	return &Runtime{
		Config:    cfg,
		Executor:  exec,
		Validator: validator.New(),
		Console:   util.Default,
	}
}

// RunOptions sets where a public entry point starts in the tree.
type RunOptions struct {
	LogDir    string     // parent of the sequence directories
	Extracted types.Vars // starting variable scope
	Indent    string
	Prefix    string // printed before the task line
}

// frame is the per-call execution context threaded through recursion. The
// scope map is shared by reference with the caller unless a copy is made.
type frame struct {
	logDir string
	indent string
	prefix string
	scope  types.Vars
}

func (r *Runtime) frame(opts RunOptions) frame {
	dir := opts.LogDir
	if dir == "" {
		dir = r.Config.OutputDir
	}
	if dir == "" {
		dir = "taskflow-out"
	}
	scope := opts.Extracted
	if scope == nil {
		scope = types.Vars{}
	}
	return frame{logDir: dir, indent: opts.Indent, prefix: opts.Prefix, scope: scope}
}

func (f frame) nested(prefix string) frame {
	f.indent += Indent
	f.prefix = prefix
	return f
}

// locateTask finds a task by name in tasks, then helpers.tasks.
func (r *Runtime) locateTask(name string) (*types.Task, error) {
	if t := r.Config.Tasks.Lookup(name); t != nil {
		return t, nil
	}
	if t := r.Config.Helpers.Tasks.Lookup(name); t != nil {
		return t, nil
	}
	return nil, &TaskError{Task: name, Message: fmt.Sprintf("Task %q does not exist.", name)}
}

func (r *Runtime) helperAction(name string) *types.Action {
	for i := range r.Config.Helpers.Actions {
		if r.Config.Helpers.Actions[i].Name == name {
			a := r.Config.Helpers.Actions[i]
			return &a
		}
	}
	return nil
}

func (r *Runtime) namedTasks(names []string) ([]types.NamedTask, error) {
	out := make([]types.NamedTask, 0, len(names))
	for _, n := range names {
		t, err := r.locateTask(n)
		if err != nil {
			return nil, err
		}
		out = append(out, types.NamedTask{Name: n, Task: t})
	}
	return out, nil
}

// logFile writes content under the frame's log directory when logging is
// enabled or force is set, and returns the absolute path written.
func (r *Runtime) logFile(f frame, name string, content interface{}, force bool) string {
	if !r.LogOutput && !force {
		return ""
	}
	if err := os.MkdirAll(f.logDir, 0o755); err != nil {
		logging.Warn("failed to create log directory", map[string]interface{}{"dir": f.logDir, "error": err.Error()})
		return ""
	}

	var text string
	switch v := content.(type) {
	case string:
		text = v
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			text = fmt.Sprintf("%v", v)
		} else {
			text = string(b)
		}
	}

	path := filepath.Join(f.logDir, fmt.Sprintf("%d_%s", r.seq.Next(), name))
	if err := os.WriteFile(path, []byte(util.StripANSIString(text)), 0o644); err != nil {
		logging.Warn("failed to write log file", map[string]interface{}{"path": path, "error": err.Error()})
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
