package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"taskflow/internal/workflow/types"
)

// FuncContext is handed to a built-in function.
type FuncContext struct {
	Args     map[string]interface{}
	Config   *types.Config
	warnings []string
}

// Warn records a warning returned alongside the function result.
func (c *FuncContext) Warn(format string, a ...interface{}) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, a...))
}

// Func is a built-in function body.
type Func func(ctx context.Context, fc *FuncContext) (interface{}, error)

// Functions is the executor for "function" actions.
type Functions struct {
	builtIn map[string]Func
}

// NewFunctions returns the executor with every built-in registered.
func NewFunctions() *Functions {
	f := &Functions{builtIn: map[string]Func{}}
	f.Register("mkdirp", mkdirp)
	f.Register("renderTemplate", renderTemplate)
	f.Register("readFile", readFile)
	f.Register("writeFile", writeFile)
	f.Register("fileExists", fileExists)
	f.Register("glob", globFiles)
	f.Register("sleep", sleep)
	f.Register("env", envValues)
	return f
}

func (f *Functions) Register(name string, fn Func) {
	f.builtIn[name] = fn
}

// Names returns the registered function names, sorted.
func (f *Functions) Names() []string {
	names := make([]string, 0, len(f.builtIn))
	for n := range f.builtIn {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuiltInNames lists the default built-in functions.
func BuiltInNames() []string {
	return NewFunctions().Names()
}

func (f *Functions) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	fn, ok := f.builtIn[strings.TrimSpace(req.Run)]
	if !ok {
		return nil, inputErrorf("Function %q not available.", req.Run)
	}
	args := req.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	fc := &FuncContext{Args: args, Config: req.Config}
	data, err := fn(ctx, fc)
	if err != nil {
		return nil, err
	}
	return &types.RunResult{Data: data, Warnings: fc.warnings}, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	s, ok := stringArg(args, key)
	if !ok || s == "" {
		return "", inputErrorf("Argument %q must be a non-empty string.", key)
	}
	return s, nil
}

func stringList(args map[string]interface{}, key string) ([]string, error) {
	switch v := args[key].(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, inputErrorf("Argument %q must be a list of strings.", key)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return v, nil
	}
	return nil, inputErrorf("Argument %q must be a list of strings.", key)
}

func mkdirp(_ context.Context, fc *FuncContext) (interface{}, error) {
	dirs, err := stringList(fc.Args, "dirs")
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	return dirs, nil
}

var templateFuncs = template.FuncMap{
	"toLowerCase": strings.ToLower,
	"toUpperCase": strings.ToUpper,
}

func renderTemplate(_ context.Context, fc *FuncContext) (interface{}, error) {
	path, err := requireString(fc.Args, "templatePath")
	if err != nil {
		return nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %v", path, err)
	}
	tmpl, err := template.New(filepath.Base(path)).Funcs(templateFuncs).Option("missingkey=zero").Parse(string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %v", path, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, fc.Args["data"]); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %v", path, err)
	}
	rendered := buf.String()

	if out, ok := stringArg(fc.Args, "renderedPath"); ok && out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %v", out, err)
		}
		if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write rendered template: %v", err)
		}
	}
	return rendered, nil
}

func readFile(_ context.Context, fc *FuncContext) (interface{}, error) {
	path, err := requireString(fc.Args, "path")
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %v", path, err)
	}
	if boolArg(fc.Args, "json") {
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("file %s is not valid JSON: %v", path, err)
		}
		return v, nil
	}
	return string(b), nil
}

func writeFile(_ context.Context, fc *FuncContext) (interface{}, error) {
	path, err := requireString(fc.Args, "path")
	if err != nil {
		return nil, err
	}
	var content []byte
	switch v := fc.Args["content"].(type) {
	case nil:
		fc.Warn("No content supplied, writing an empty file to %s.", path)
	case string:
		content = []byte(v)
	default:
		content, err = json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode content: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %v", path, err)
	}
	return map[string]interface{}{"path": path, "bytes": len(content)}, nil
}

func fileExists(_ context.Context, fc *FuncContext) (interface{}, error) {
	path, err := requireString(fc.Args, "path")
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]interface{}{"exists": false, "isDir": false}, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %v", path, err)
	}
	return map[string]interface{}{"exists": true, "isDir": info.IsDir()}, nil
}

func globFiles(_ context.Context, fc *FuncContext) (interface{}, error) {
	pattern, err := requireString(fc.Args, "pattern")
	if err != nil {
		return nil, err
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, inputErrorf("Invalid glob pattern %q: %v", pattern, err)
	}
	if len(matches) == 0 {
		fc.Warn("Pattern %q matched no files.", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

func sleep(ctx context.Context, fc *FuncContext) (interface{}, error) {
	var ms float64
	switch v := fc.Args["ms"].(type) {
	case int:
		ms = float64(v)
	case float64:
		ms = v
	default:
		return nil, inputErrorf("Argument \"ms\" must be a number.")
	}
	t := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	return nil, nil
}

func envValues(_ context.Context, fc *FuncContext) (interface{}, error) {
	names, err := stringList(fc.Args, "names")
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(names))
	for _, n := range names {
		v, ok := os.LookupEnv(n)
		if !ok {
			fc.Warn("Environment variable %s is not set.", n)
			continue
		}
		out[n] = v
	}
	return out, nil
}
