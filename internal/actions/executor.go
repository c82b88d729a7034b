// Package actions runs the payload of a single action. The engine only sees
// the Executor interface; Registry dispatches on the action type.
package actions

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"taskflow/internal/workflow/parser"
	"taskflow/internal/workflow/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type is one of the closed set of action kinds.
type Type string

const (
	TypeCommand         Type = "command"
	TypeFunction        Type = "function"
	TypeSubprocess      Type = "subprocess"
	TypeInlineCode      Type = "inline-code"
	TypeAsyncInlineCode Type = "async-inline-code"
	TypeScript          Type = "script"
)

var aliases = map[string]Type{
	"cmd":     TypeCommand,
	"func":    TypeFunction,
	"exec":    TypeSubprocess,
	"js":      TypeInlineCode,
	"asyncjs": TypeAsyncInlineCode,
}

// Types lists every canonical action type.
func Types() []Type {
	return []Type{TypeCommand, TypeFunction, TypeSubprocess, TypeInlineCode, TypeAsyncInlineCode, TypeScript}
}

// ParseType maps a configured type, including the short aliases, onto its
// canonical form.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	if t, ok := aliases[s]; ok {
		return t, true
	}
	for _, t := range Types() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Request is everything an executor may look at.
type Request struct {
	Type   Type
	Run    string
	Args   map[string]interface{}
	Action *types.Action
	Config *types.Config
}

func (r Request) name() string {
	if r.Action != nil {
		return r.Action.Name
	}
	return ""
}

// Executor runs an action payload and returns data plus warnings.
type Executor interface {
	Execute(ctx context.Context, req Request) (*types.RunResult, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (*types.RunResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	return f(ctx, req)
}

// InputError reports a payload the executor cannot act on. The engine treats
// it as a configuration problem rather than a run failure.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputErrorf(format string, a ...interface{}) error {
	return &InputError{Msg: fmt.Sprintf(format, a...)}
}

// Registry dispatches requests to the executor registered for their type.
type Registry struct {
	executors map[Type]Executor
}

// NewRegistry returns a registry with every built-in executor registered.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[Type]Executor)}
	r.Register(TypeSubprocess, &Subprocess{})
	r.Register(TypeCommand, &Command{})
	r.Register(TypeFunction, NewFunctions())
	r.Register(TypeInlineCode, &InlineCode{})
	r.Register(TypeAsyncInlineCode, &InlineCode{Async: true})
	r.Register(TypeScript, &Script{})
	return r
}

func (r *Registry) Register(t Type, e Executor) {
	r.executors[t] = e
}

// Execute runs req through the executor for its type and normalises the
// result data to JSON-shaped values.
func (r *Registry) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	t, ok := ParseType(string(req.Type))
	if !ok {
		return nil, inputErrorf("Unknown action type %q. Specify one of %s.", req.Type, typeList())
	}
	e, ok := r.executors[t]
	if !ok {
		return nil, inputErrorf("No executor registered for action type %q.", t)
	}
	req.Type = t

	res, err := e.Execute(ctx, req)
	if err != nil {
		return res, err
	}
	if res == nil {
		res = &types.RunResult{}
	}
	data, err := Normalize(res.Data)
	if err != nil {
		return nil, fmt.Errorf("action result is not serialisable: %v", err)
	}
	res.Data = data
	return res, nil
}

func typeList() string {
	names := make([]string, 0, len(Types()))
	for _, t := range Types() {
		names = append(names, fmt.Sprintf("%q", t))
	}
	return strings.Join(names, ", ")
}

// Normalize converts v into plain maps, slices, numbers, strings and bools
// by a JSON round trip.
func Normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case string, bool, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stringArg returns args[key] when it is a string.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// configDocument exposes the config to user code as a plain document.
func configDocument(cfg *types.Config) map[string]interface{} {
	if cfg == nil {
		return map[string]interface{}{}
	}
	doc, err := parser.ToDocument(cfg)
	if err != nil || doc == nil {
		return map[string]interface{}{}
	}
	return doc
}
