package engine

import (
	"taskflow/internal/workflow/parser"
	"taskflow/internal/workflow/resolver"
	"taskflow/internal/workflow/types"
)

const (
	selfPrefix      = "self."
	extractedPrefix = "extracted."
)

// resolveInto makes a resolved copy of v into out. ${self.<path>} refers to
// v's own fields as they were before resolution, then the remaining
// placeholders are looked up in scope. Each is a single pass.
func resolveInto(v interface{}, scope types.Vars, out interface{}) error {
	doc, err := parser.ToDocument(v)
	if err != nil {
		return err
	}
	snapshot, err := parser.ToDocument(v)
	if err != nil {
		return err
	}
	resolver.Resolve(doc, snapshot, resolver.WithRequiredPrefix(selfPrefix))
	resolver.Resolve(doc, map[string]interface{}(scope), resolver.WithPrefix(extractedPrefix))
	return parser.Decode(doc, out)
}

// resolveAction resolves the action's own fields. Inline conditions keep
// their placeholders; each resolves against its own fields when it runs.
func resolveAction(a *types.Action, scope types.Vars) (*types.Action, error) {
	shallow := *a
	shallow.Conditions = actionRefsWithoutBodies(a.Conditions)
	var out types.Action
	if err := resolveInto(&shallow, scope, &out); err != nil {
		return nil, err
	}
	restoreActionBodies(out.Conditions, a.Conditions)
	return &out, nil
}

// resolveTask resolves the task's own fields. Its actions and inline
// sub-tasks are resolved when they run, against the scope at that point.
func resolveTask(t *types.Task, scope types.Vars) (*types.Task, error) {
	shallow := *t
	shallow.Actions = nil
	shallow.Tasks = taskRefsWithoutBodies(t.Tasks)
	var out types.Task
	if err := resolveInto(&shallow, scope, &out); err != nil {
		return nil, err
	}
	out.Actions = t.Actions
	restoreTaskBodies(out.Tasks, t.Tasks)
	return &out, nil
}

// actionRefsWithoutBodies copies refs keeping only their names.
func actionRefsWithoutBodies(refs []types.ActionRef) []types.ActionRef {
	if refs == nil {
		return nil
	}
	out := make([]types.ActionRef, len(refs))
	for i, ref := range refs {
		out[i] = types.ActionRef{Name: ref.Name}
	}
	return out
}

func restoreActionBodies(resolved, orig []types.ActionRef) {
	for i := range resolved {
		if i < len(orig) && orig[i].Inline != nil {
			resolved[i].Inline = orig[i].Inline
		}
	}
}

func taskRefsWithoutBodies(refs []types.TaskRef) []types.TaskRef {
	if refs == nil {
		return nil
	}
	out := make([]types.TaskRef, len(refs))
	for i, ref := range refs {
		out[i] = types.TaskRef{Name: ref.Name}
	}
	return out
}

func restoreTaskBodies(resolved, orig []types.TaskRef) {
	for i := range resolved {
		if i < len(orig) && orig[i].Task != nil {
			resolved[i].Task = orig[i].Task
		}
	}
}

func resolveRepeat(rp *types.Repeat, scope types.Vars) (*types.Repeat, error) {
	var out types.Repeat
	if err := resolveInto(rp, scope, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
