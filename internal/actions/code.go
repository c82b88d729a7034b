package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"taskflow/internal/util"
	"taskflow/internal/workflow/types"
)

const entryFuncName = "Run"

// InlineCode evaluates the run payload as the body of a Go function:
//
//	func Run(args, config map[string]interface{}) (interface{}, error)
//
// With Async set the body instead receives a completion callback and the
// action finishes when it is called:
//
//	func Run(args, config map[string]interface{}, done func(interface{}, error))
//
// Leading import lines in the body are hoisted to file scope.
type InlineCode struct {
	Async bool
}

func (c *InlineCode) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	if strings.TrimSpace(req.Run) == "" {
		return nil, inputErrorf("You must specify a value for the action's \"run\".")
	}
	src := inlineSource(req.Run, c.Async)

	i := newInterpreter()
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("Failed to create new inline function:\n%v", err)
	}
	fn, err := i.Eval(entryFuncName)
	if err != nil || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("Failed to create new inline function:\n%s is not defined", entryFuncName)
	}

	args := req.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	in := []reflect.Value{reflect.ValueOf(args), reflect.ValueOf(configDocument(req.Config))}

	if c.Async {
		return callAsync(ctx, fn, in)
	}
	data, err := callGuarded(ctx, fn, in)
	if err != nil {
		return nil, fmt.Errorf("Function threw an error:\n%v", err)
	}
	return &types.RunResult{Data: data}, nil
}

// Script loads a Go source file declaring
//
//	func Run(params map[string]interface{}) (interface{}, error)
//
// and calls it with params {"args": ..., "config": ...}.
type Script struct{}

func (s *Script) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	if strings.TrimSpace(req.Run) == "" {
		return nil, inputErrorf("You must specify a value for the action's \"run\".")
	}
	path, err := filepath.Abs(strings.TrimSpace(req.Run))
	if err != nil {
		return nil, fmt.Errorf("Failed to instantiate script: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("Failed to instantiate script: %v", err)
	}

	i := newInterpreter()
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("Failed to instantiate script: %v", err)
	}
	fn, err := i.Eval(entryFuncName)
	if err != nil || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("Failed to instantiate script: %s must define %s(params map[string]interface{}) (interface{}, error)", path, entryFuncName)
	}

	params := map[string]interface{}{
		"args":   req.Args,
		"config": configDocument(req.Config),
	}
	data, err := callGuarded(ctx, fn, []reflect.Value{reflect.ValueOf(params)})
	if err != nil {
		return nil, fmt.Errorf("Script failed: %v", err)
	}
	return &types.RunResult{Data: data}, nil
}

func newInterpreter() *interp.Interpreter {
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	return i
}

// inlineSource wraps body into a main package with the entry function.
func inlineSource(body string, async bool) string {
	imports, rest := hoistImports(util.Dedent(body))

	var b strings.Builder
	b.WriteString("package main\n\n")
	for _, imp := range imports {
		b.WriteString(imp)
		b.WriteString("\n")
	}
	if async {
		b.WriteString("\nfunc " + entryFuncName + "(args map[string]interface{}, config map[string]interface{}, done func(interface{}, error)) {\n")
	} else {
		b.WriteString("\nfunc " + entryFuncName + "(args map[string]interface{}, config map[string]interface{}) (interface{}, error) {\n")
	}
	b.WriteString(rest)
	if !strings.HasSuffix(rest, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// hoistImports splits leading import declarations (single line or grouped)
// from the rest of body.
func hoistImports(body string) ([]string, string) {
	lines := strings.Split(body, "\n")
	var imports []string
	idx := 0
	for idx < len(lines) {
		trimmed := strings.TrimSpace(lines[idx])
		switch {
		case trimmed == "":
			idx++
		case strings.HasPrefix(trimmed, "import ("):
			start := idx
			for idx < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[idx]), ")") {
				idx++
			}
			end := idx
			if end >= len(lines) {
				end = len(lines) - 1
			}
			imports = append(imports, strings.Join(lines[start:end+1], "\n"))
			idx = end + 1
		case strings.HasPrefix(trimmed, "import "):
			imports = append(imports, trimmed)
			idx++
		default:
			return imports, strings.Join(lines[idx:], "\n")
		}
	}
	return imports, ""
}

type callResult struct {
	data interface{}
	err  error
}

// callGuarded invokes fn on its own goroutine, turning panics into errors.
// Interpreted code cannot be interrupted, so cancellation abandons it.
func callGuarded(ctx context.Context, fn reflect.Value, in []reflect.Value) (interface{}, error) {
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out := fn.Call(in)
		done <- unpackResults(out)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func unpackResults(out []reflect.Value) callResult {
	var r callResult
	if len(out) > 0 && out[0].IsValid() {
		if out[0].Kind() == reflect.Interface && out[0].IsNil() {
			r.data = nil
		} else {
			r.data = out[0].Interface()
		}
	}
	if len(out) > 1 && out[1].IsValid() && !out[1].IsNil() {
		if e, ok := out[1].Interface().(error); ok {
			r.err = e
		}
	}
	return r
}

func callAsync(ctx context.Context, fn reflect.Value, in []reflect.Value) (*types.RunResult, error) {
	done := make(chan callResult, 1)
	cb := func(data interface{}, err error) {
		select {
		case done <- callResult{data: data, err: err}:
		default:
		}
	}
	in = append(in, reflect.ValueOf(cb))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				cb(nil, fmt.Errorf("panic: %v", r))
			}
		}()
		fn.Call(in)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("Async inline function error callback invoked: %v", r.err)
		}
		return &types.RunResult{Data: r.data}, nil
	}
}
