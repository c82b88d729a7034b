package types

import (
	"github.com/tiendc/go-deepcopy"
)

// Config is the fully loaded workflow document.
type Config struct {
	Requires  string                            `yaml:"requires,omitempty"`  // semver constraint on the taskflow binary
	OutputDir string                            `yaml:"outputDir,omitempty"` // root for per-run log directories (default "taskflow-out")
	Global    map[string]interface{}            `yaml:"global,omitempty"`    // constants available to ${...} placeholders
	Args      map[string]map[string]interface{} `yaml:"args,omitempty"`      // argument presets referenced by action.mergeArgs
	Hosts     map[string]Host                   `yaml:"hosts,omitempty"`     // destinations for "command" actions
	Input     NamedInputs                       `yaml:"input,omitempty"`     // values gathered from user config, prompt or env
	Helpers   Helpers                           `yaml:"helpers,omitempty"`
	Tasks     NamedTasks                        `yaml:"tasks"`
	User      map[string]interface{}            `yaml:"user,omitempty"` // user config merged with gathered inputs (set by the loader)
}

// Helpers holds the reusable tasks and actions referenced by name.
type Helpers struct {
	Tasks   NamedTasks `yaml:"tasks,omitempty"`
	Actions []Action   `yaml:"actions,omitempty"`
}

// Host describes an SSH destination for "command" actions.
type Host struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port,omitempty"` // default "22"
	User       string `yaml:"user"`
	Password   string `yaml:"password,omitempty"`
	PrivateKey string `yaml:"privateKey,omitempty"`
	JumpHost   string `yaml:"jumpHost,omitempty"` // [user@]host[:port]
}

// Input describes how a single input value is gathered.
type Input struct {
	Desc       string   `yaml:"desc,omitempty"`
	Sources    []string `yaml:"sources"` // tried in order: "user", "prompt", "env"
	Mask       bool     `yaml:"mask,omitempty"`
	AllowBlank bool     `yaml:"allowBlank,omitempty"`
}

// Task is a named unit of work. Exactly one of Actions, Tasks or Watch is set.
type Task struct {
	Desc    string      `yaml:"desc,omitempty"`
	Actions []ActionRef `yaml:"actions,omitempty"`
	Tasks   []TaskRef   `yaml:"tasks,omitempty"`
	Async   bool        `yaml:"async,omitempty"` // run Tasks concurrently
	Watch   *Watch      `yaml:"watch,omitempty"`
}

// Shapes returns how many of actions, tasks and watch the task declares.
func (t *Task) Shapes() int {
	n := 0
	if len(t.Actions) > 0 {
		n++
	}
	if len(t.Tasks) > 0 {
		n++
	}
	if t.Watch != nil {
		n++
	}
	return n
}

// Action is a single unit of work with a typed run payload.
type Action struct {
	Name            string                 `yaml:"name"`
	Desc            string                 `yaml:"desc,omitempty"`
	Action          *ActionRun             `yaml:"action,omitempty"`
	Args            map[string]interface{} `yaml:"args,omitempty"`
	MergeArgs       []string               `yaml:"mergeArgs,omitempty"`  // preset names from Config.Args
	DestSystem      string                 `yaml:"destSystem,omitempty"` // host name from Config.Hosts
	Conditions      []ActionRef            `yaml:"conditions,omitempty"`
	Validators      []Validator            `yaml:"validators,omitempty"`
	Repeat          *Repeat                `yaml:"repeat,omitempty"`
	OnError         string                 `yaml:"onError,omitempty"` // task run when the executor fails
	SuccessOnFail   bool                   `yaml:"successOnFail,omitempty"`
	OnSuccessMsg    string                 `yaml:"onSuccessMsg,omitempty"`
	OnErrorMsg      string                 `yaml:"onErrorMsg,omitempty"`
	JSONExtractor   map[string]string      `yaml:"jsonExtractor,omitempty"` // variable name -> JSONPath
	OutputExtractor []OutputExtractor      `yaml:"outputExtractor,omitempty"`
}

// ActionRun is the typed run payload handed to an executor.
type ActionRun struct {
	Type string `yaml:"type"`
	Run  string `yaml:"run"`
}

// Validator is a boolean expression checked against an action result.
type Validator struct {
	Exp       string   `yaml:"exp"`
	OnFailure []string `yaml:"onFailure,omitempty"` // task names run when Exp is false
}

// OutputExtractor binds a variable to the whole result payload.
type OutputExtractor struct {
	Var string `yaml:"var"`
}

// Repeat wraps an action in a forEach expansion or a retry loop.
type Repeat struct {
	ForEach             *ForEach             `yaml:"forEach,omitempty"`
	UntilValidatorsPass *UntilValidatorsPass `yaml:"untilValidatorsPass,omitempty"`
}

// ForEach is the list of substitution records for repeat.forEach. Before
// variable resolution it may still be a single placeholder string.
type ForEach struct {
	Entries []map[string]interface{}
	Ref     string
}

const (
	DefaultRetryInterval = 1000
	DefaultMaxRetries    = 0
)

// UntilValidatorsPass configures the retry loop.
type UntilValidatorsPass struct {
	Interval   *int `yaml:"interval,omitempty"`   // milliseconds between attempts
	MaxRetries *int `yaml:"maxRetries,omitempty"` // total attempts, 0 = unbounded
}

func (u *UntilValidatorsPass) IntervalMillis() int {
	if u == nil || u.Interval == nil || *u.Interval < 0 {
		return DefaultRetryInterval
	}
	return *u.Interval
}

func (u *UntilValidatorsPass) Max() int {
	if u == nil || u.MaxRetries == nil || *u.MaxRetries < 0 {
		return DefaultMaxRetries
	}
	return *u.MaxRetries
}

// Watch reacts to file system events under Glob.
type Watch struct {
	Glob        string   `yaml:"glob"`
	OnAdd       []string `yaml:"onAdd,omitempty"`
	OnChange    []string `yaml:"onChange,omitempty"`
	OnUnlink    []string `yaml:"onUnlink,omitempty"`
	OnAddDir    []string `yaml:"onAddDir,omitempty"`
	OnUnlinkDir []string `yaml:"onUnlinkDir,omitempty"`
}

// TasksFor returns the reaction task names for an event kind.
func (w *Watch) TasksFor(event string) []string {
	switch event {
	case "add":
		return w.OnAdd
	case "change":
		return w.OnChange
	case "unlink":
		return w.OnUnlink
	case "addDir":
		return w.OnAddDir
	case "unlinkDir":
		return w.OnUnlinkDir
	}
	return nil
}

// RunResult is produced by every action type.
type RunResult struct {
	Data     interface{} `json:"data"`
	Warnings []string    `json:"warnings"`
}

// Vars is the "extracted" variable scope.
type Vars map[string]interface{}

// Clone returns an independent deep copy of the scope.
func (v Vars) Clone() Vars {
	out := Vars{}
	if len(v) == 0 {
		return out
	}
	if err := deepcopy.Copy(&out, &v); err != nil {
		out = make(Vars, len(v))
		for k, val := range v {
			out[k] = val
		}
	}
	return out
}

// Merge copies every entry of src into v, overwriting existing keys.
func (v Vars) Merge(src map[string]interface{}) Vars {
	for k, val := range src {
		v[k] = val
	}
	return v
}
