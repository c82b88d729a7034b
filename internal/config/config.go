// Package config loads a workflow file: it gathers user configuration and
// inputs, resolves load-time placeholders and validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"taskflow/internal/logging"
	"taskflow/internal/util"
	"taskflow/internal/workflow/parser"
	"taskflow/internal/workflow/resolver"
	"taskflow/internal/workflow/types"
)

var printer = util.Default

const (
	DefaultConfigFile     = "taskflow.yaml"
	DefaultUserConfigFile = "taskflow-user.yaml"
	DefaultOutputDir      = "taskflow-out"
	EnvPrefix             = "TASKFLOW"
)

// Options controls Load.
type Options struct {
	ConfigPath      string            // default DefaultConfigFile in the working directory
	UserConfigPaths []string          // earlier files take precedence
	Set             map[string]string // key=value overrides, highest precedence
	Version         string            // binary version checked against "requires"
	Prompter        Prompter          // nil disables the "prompt" source
	LookupEnv       func(string) (string, bool)
}

// Loaded is a fully loaded workflow.
type Loaded struct {
	Path   string
	Config *types.Config
	User   types.Vars // user config merged with gathered inputs
	Inputs types.Vars
}

// Tasks returns the top-level tasks followed by the helper tasks.
func (l *Loaded) Tasks() []types.NamedTask {
	out := make([]types.NamedTask, 0, len(l.Config.Tasks)+len(l.Config.Helpers.Tasks))
	out = append(out, l.Config.Tasks...)
	return append(out, l.Config.Helpers.Tasks...)
}

// TaskByName looks in tasks, then helpers.tasks.
func (l *Loaded) TaskByName(name string) *types.Task {
	if t := l.Config.Tasks.Lookup(name); t != nil {
		return t
	}
	return l.Config.Helpers.Tasks.Lookup(name)
}

// Load reads, resolves and validates the workflow at opts.ConfigPath.
func Load(opts Options) (*Loaded, error) {
	path := opts.ConfigPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current working directory: %v", err)
		}
		path = filepath.Join(cwd, DefaultConfigFile)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s not found. Please run 'taskflow init' first", path)
	}

	doc, order, err := parser.ReadOrdered(path)
	if err != nil {
		return nil, err
	}
	if err := checkRequires(doc["requires"], opts.Version); err != nil {
		return nil, err
	}

	user, err := LoadUserConfig(userConfigPaths(opts.UserConfigPaths))
	if err != nil {
		return nil, err
	}
	if err := applySet(user, opts.Set); err != nil {
		return nil, err
	}

	var inputs types.NamedInputs
	if raw, ok := doc["input"]; ok && raw != nil {
		// User config may customise the input definitions themselves.
		resolver.Resolve(raw, map[string]interface{}(user))
		if err := parser.Decode(raw, &inputs); err != nil {
			return nil, fmt.Errorf("failed to parse input section: %v", err)
		}
		order.ApplyInputs(inputs)
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = EnvLookup(filepath.Dir(path))
	}
	gathered, err := GatherInputs(inputs, user, opts.Prompter, lookup)
	if err != nil {
		return nil, err
	}

	global, _ := doc["global"].(map[string]interface{})
	resolver.Resolve(doc, map[string]interface{}(user))
	resolver.Resolve(doc, map[string]interface{}(gathered))
	if global != nil {
		resolver.Resolve(doc, global)
	}

	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}

	var cfg types.Config
	if err := parser.Decode(doc, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %v", err)
	}
	order.Apply(&cfg)
	merged := user.Clone().Merge(gathered)
	cfg.User = merged
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	logging.Debug("workflow loaded", map[string]interface{}{
		"path":   path,
		"tasks":  len(cfg.Tasks),
		"inputs": len(gathered),
	})
	return &Loaded{Path: path, Config: &cfg, User: merged, Inputs: gathered}, nil
}

// userConfigPaths puts the default user config first when it exists and was
// not named explicitly.
func userConfigPaths(paths []string) []string {
	out := append([]string(nil), paths...)
	if _, err := os.Stat(DefaultUserConfigFile); err != nil {
		return out
	}
	for _, p := range out {
		if filepath.Clean(p) == DefaultUserConfigFile {
			return out
		}
	}
	return append([]string{DefaultUserConfigFile}, out...)
}

// LoadUserConfig merges the user config files. A key in an earlier file wins
// over the same key in a later one. Missing files are skipped.
func LoadUserConfig(paths []string) (types.Vars, error) {
	user := types.Vars{}
	for i := len(paths) - 1; i >= 0; i-- {
		vars, err := parser.ParseUserConfigSafe(paths[i])
		if err != nil {
			return nil, err
		}
		user.Merge(vars)
	}
	return user, nil
}

// applySet writes key=value overrides into user. Dotted keys create nested
// maps.
func applySet(user types.Vars, set map[string]string) error {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts := strings.Split(key, ".")
		m := map[string]interface{}(user)
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]interface{})
			if !ok {
				if _, exists := m[p]; exists {
					return fmt.Errorf("cannot set %q: %q is not a mapping", key, p)
				}
				next = map[string]interface{}{}
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = ProcessInputValue(set[key], false)
	}
	return nil
}

func checkRequires(raw interface{}, version string) error {
	constraint, _ := raw.(string)
	if strings.TrimSpace(constraint) == "" || version == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid \"requires\" constraint %q: %v", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		logging.Warn("binary version is not semantic, skipping requires check", map[string]interface{}{"version": version})
		return nil
	}
	if !c.Check(v) {
		return fmt.Errorf("workflow requires taskflow %s, this is %s", constraint, version)
	}
	return nil
}

// RunLogDir returns the per-run log directory under outputDir.
func RunLogDir(outputDir string, now time.Time) string {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	name := fmt.Sprintf("%d-%d-%d_time_%d-%d-%d_%dms",
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/int(time.Millisecond))
	return filepath.Join(outputDir, name)
}

func ConfigExists(path string) bool {
	if path == "" {
		path = DefaultConfigFile
	}
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func GetConfigPath(path string) string {
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, DefaultConfigFile)
}
