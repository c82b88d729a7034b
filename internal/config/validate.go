package config

import (
	"fmt"
	"strings"

	"taskflow/internal/actions"
	"taskflow/internal/workflow/types"
)

type checker struct {
	cfg  *types.Config
	errs []string
}

func (c *checker) add(format string, a ...interface{}) {
	c.errs = append(c.errs, fmt.Sprintf(format, a...))
}

// ValidateConfig checks the semantics the schema cannot express and reports
// every problem found.
func ValidateConfig(cfg *types.Config) error {
	c := &checker{cfg: cfg}

	if len(cfg.Tasks) == 0 {
		c.add("tasks cannot be empty")
	}

	for name, h := range cfg.Hosts {
		if strings.TrimSpace(h.Host) == "" {
			c.add("Host %q: host cannot be empty", name)
		}
		if strings.TrimSpace(h.User) == "" {
			c.add("Host %q: user cannot be empty", name)
		}
		if h.Password == "" && h.PrivateKey == "" {
			c.add("Host %q: one of password or privateKey is required", name)
		}
	}

	for _, in := range cfg.Input {
		if len(in.Input.Sources) == 0 {
			c.add("Input %q: sources cannot be empty", in.Name)
		}
		for _, s := range in.Input.Sources {
			if s != SourceUser && s != SourcePrompt && s != SourceEnv {
				c.add("Input %q: source must be \"prompt, env, or user\", got %q", in.Name, s)
			}
		}
	}

	seen := map[string]bool{}
	for i := range cfg.Helpers.Actions {
		a := &cfg.Helpers.Actions[i]
		if seen[a.Name] {
			c.add("Helper action %q is defined more than once", a.Name)
		}
		seen[a.Name] = true
		c.action(fmt.Sprintf("helper action %q", a.Name), a)
	}
	for _, nt := range cfg.Tasks {
		c.task(fmt.Sprintf("Task %q", nt.Name), nt.Task)
	}
	for _, nt := range cfg.Helpers.Tasks {
		c.task(fmt.Sprintf("Helper task %q", nt.Name), nt.Task)
	}

	if len(c.errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(c.errs, "\n"))
	}
	return nil
}

func (c *checker) taskExists(name string) bool {
	return c.cfg.Tasks.Lookup(name) != nil || c.cfg.Helpers.Tasks.Lookup(name) != nil
}

func (c *checker) helperActionExists(name string) bool {
	for i := range c.cfg.Helpers.Actions {
		if c.cfg.Helpers.Actions[i].Name == name {
			return true
		}
	}
	return false
}

func (c *checker) taskRefs(where, field string, names []string) {
	for _, n := range names {
		if !c.taskExists(n) {
			c.add("%s: %s references unknown task %q", where, field, n)
		}
	}
}

func (c *checker) task(where string, t *types.Task) {
	if t == nil {
		c.add("%s: task definition is empty", where)
		return
	}
	if t.Shapes() != 1 {
		c.add("%s: must specify exactly one of \"actions\", \"tasks\" or \"watch\"", where)
	}

	for _, ref := range t.Actions {
		if ref.Inline != nil {
			c.action(fmt.Sprintf("%s action %q", where, ref.Name), ref.Inline)
			continue
		}
		if !c.helperActionExists(ref.Name) {
			c.add("%s: no helper action defined with name %q", where, ref.Name)
		}
	}

	for _, ref := range t.Tasks {
		if ref.Task != nil {
			c.task(fmt.Sprintf("%s sub-task %q", where, ref.Name), ref.Task)
			continue
		}
		if !c.taskExists(ref.Name) {
			c.add("%s: sub-task %q does not exist", where, ref.Name)
		}
	}

	if w := t.Watch; w != nil {
		if strings.TrimSpace(w.Glob) == "" {
			c.add("%s: watch.glob cannot be empty", where)
		}
		c.taskRefs(where, "watch.onAdd", w.OnAdd)
		c.taskRefs(where, "watch.onChange", w.OnChange)
		c.taskRefs(where, "watch.onUnlink", w.OnUnlink)
		c.taskRefs(where, "watch.onAddDir", w.OnAddDir)
		c.taskRefs(where, "watch.onUnlinkDir", w.OnUnlinkDir)
	}
}

func (c *checker) action(where string, a *types.Action) {
	if strings.TrimSpace(a.Name) == "" {
		c.add("%s: name cannot be empty", where)
	}

	if a.Action == nil {
		c.add("%s: \"action\" with a type and run is required", where)
	} else if !hasPlaceholder(a.Action.Type) {
		if _, ok := actions.ParseType(a.Action.Type); !ok {
			c.add("%s: unknown action type %q", where, a.Action.Type)
		}
	}

	if a.Repeat != nil && a.Repeat.ForEach != nil && a.Repeat.UntilValidatorsPass != nil {
		c.add("%s: \"repeat.forEach\" and \"repeat.untilValidatorsPass\" are mutually exclusive", where)
	}
	if a.Repeat != nil && a.Repeat.UntilValidatorsPass != nil && len(a.Validators) == 0 {
		c.add("%s: \"repeat.untilValidatorsPass\" requires validators", where)
	}

	if a.OnError != "" && !hasPlaceholder(a.OnError) && !c.taskExists(a.OnError) {
		c.add("%s: onError references unknown task %q", where, a.OnError)
	}
	for _, v := range a.Validators {
		if strings.TrimSpace(v.Exp) == "" {
			c.add("%s: validator exp cannot be empty", where)
		}
		c.taskRefs(where, "validator onFailure", v.OnFailure)
	}

	if a.DestSystem != "" && !hasPlaceholder(a.DestSystem) {
		if _, ok := c.cfg.Hosts[a.DestSystem]; !ok {
			c.add("%s: destSystem %q is not defined in hosts", where, a.DestSystem)
		}
	}
	for _, name := range a.MergeArgs {
		if _, ok := c.cfg.Args[name]; !ok {
			c.add("%s: mergeArgs references unknown args preset %q", where, name)
		}
	}

	for _, ref := range a.Conditions {
		if ref.Inline != nil {
			c.action(fmt.Sprintf("%s condition %q", where, ref.Name), ref.Inline)
			continue
		}
		if !c.helperActionExists(ref.Name) {
			c.add("%s: condition %q is not a helper action", where, ref.Name)
		}
	}
}

func hasPlaceholder(s string) bool {
	return strings.Contains(s, "${")
}
