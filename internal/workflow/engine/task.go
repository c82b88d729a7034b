package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc"

	"taskflow/internal/logging"
	"taskflow/internal/metrics"
	"taskflow/internal/util"
	"taskflow/internal/watch"
	"taskflow/internal/workflow/types"
)

// RunTask runs one task. The task shares opts.Extracted with the caller.
func (r *Runtime) RunTask(ctx context.Context, name string, task *types.Task, opts RunOptions) error {
	return r.runTask(ctx, r.frame(opts), name, task)
}

func (r *Runtime) runTask(ctx context.Context, f frame, name string, task *types.Task) error {
	f.logDir = filepath.Join(f.logDir, fmt.Sprintf("task_sequence_%d_%s", r.seq.Next(), name))
	if f.scope == nil {
		f.scope = types.Vars{}
	}

	t, err := resolveTask(task, f.scope)
	if err != nil {
		msg := fmt.Sprintf("Failed to resolve variables: %v", err)
		r.logTaskFailed(name, task, msg)
		r.Metrics.TaskFinished(metrics.OutcomeFailed)
		return &TaskError{Task: name, Message: msg, Err: err}
	}

	r.Console.Log(fmt.Sprintf("%s%sTask - %s - \"%s\"", f.indent, f.prefix, name, t.Desc))
	logging.Debug("task started", map[string]interface{}{"task": name, "log_dir": f.logDir})

	switch {
	case t.Shapes() != 1:
		msg := fmt.Sprintf(`Task "%s" must specify exactly one of "actions", "tasks" or "watch".`, name)
		r.logTaskFailed(name, t, msg)
		err = &TaskError{Task: name, Message: msg}
	case len(t.Actions) > 0:
		err = r.runTaskActions(ctx, f, name, t)
	case len(t.Tasks) > 0:
		err = r.runSubTasks(ctx, f, name, t)
	default:
		err = r.runWatch(ctx, f, name, t)
	}

	if err != nil {
		r.Metrics.TaskFinished(metrics.OutcomeFailed)
		return err
	}
	r.Metrics.TaskFinished(metrics.OutcomeSuccess)
	return nil
}

// runTaskActions runs the actions in order; the first failure stops the task.
func (r *Runtime) runTaskActions(ctx context.Context, f frame, name string, t *types.Task) error {
	for _, ref := range t.Actions {
		a := ref.Inline
		if a == nil {
			a = r.helperAction(ref.Name)
			if a == nil {
				msg := fmt.Sprintf("Could not run action %q. No helper action defined with name %q.", ref.Name, ref.Name)
				r.logTaskFailed(name, t, msg)
				return &TaskError{Task: name, Message: msg}
			}
		}
		if err := r.runAction(ctx, f, a, false); err != nil {
			return &TaskError{Task: name, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func (r *Runtime) runSubTasks(ctx context.Context, f frame, name string, t *types.Task) error {
	subs := make([]types.NamedTask, 0, len(t.Tasks))
	for _, ref := range t.Tasks {
		if ref.Task != nil {
			subs = append(subs, types.NamedTask{Name: ref.Name, Task: ref.Task})
			continue
		}
		st, err := r.locateTask(ref.Name)
		if err != nil {
			r.logTaskFailed(name, t, fmt.Sprintf("Task %q not found.", ref.Name))
			return err
		}
		subs = append(subs, types.NamedTask{Name: ref.Name, Task: st})
	}

	child := f.nested("")
	if !t.Async {
		for _, st := range subs {
			if err := r.runTask(ctx, child, st.Name, st.Task); err != nil {
				return err
			}
		}
		return nil
	}
	return r.runAsync(ctx, child, name, t, subs)
}

// runAsync runs every sub-task concurrently, each on its own copy of the
// scope as it was before the fork, and waits for all of them.
func (r *Runtime) runAsync(ctx context.Context, f frame, name string, t *types.Task, subs []types.NamedTask) error {
	names := make([]string, 0, len(subs))
	for _, st := range subs {
		names = append(names, st.Name)
	}
	label := strings.Join(names, ",")
	parentIndent := strings.TrimSuffix(f.indent, Indent)

	r.Console.Log(fmt.Sprintf("%s   Running Tasks \"%s\"", parentIndent, label))
	base := f.scope.Clone()

	jobs := make([]util.ConcurrentTask, len(subs))
	for i, st := range subs {
		branch := f
		branch.scope = base.Clone()
		jobs[i] = func() error {
			return r.runTask(ctx, branch, st.Name, st.Task)
		}
	}

	restore := r.Console.Silence()
	errs := util.RunAll(jobs, r.MaxParallel)
	restore()

	var failed []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if len(failed) == 0 {
			r.Console.Log(fmt.Sprintf("%s   %s   Running Tasks \"%s\"", parentIndent, util.MarkFailed, label))
		}
		r.logTaskFailed(name, t, err.Error())
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		return &AggregateError{Task: name, Errs: failed}
	}
	r.Console.Log(fmt.Sprintf("%s   %s   Running Tasks \"%s\"", parentIndent, util.MarkSuccess, label))
	return nil
}

// runWatch reacts to file system events until ctx is cancelled, then waits
// for reactions still running. Reaction failures are reported and the watch
// keeps going.
func (r *Runtime) runWatch(ctx context.Context, f frame, name string, t *types.Task) error {
	w := t.Watch
	fw, err := watch.NewFileWatcher(w.Glob)
	if err != nil {
		r.logTaskFailed(name, t, err.Error())
		return &TaskError{Task: name, Message: err.Error(), Err: err}
	}
	r.Console.Log(fmt.Sprintf("%s   Watching \"%s\"", f.indent, w.Glob))

	// Reactions run off the event loop, each on its own scope.
	var reactions conc.WaitGroup
	defer reactions.Wait()

	return fw.Run(ctx, func(ev watch.Event) {
		r.Console.Log(f.indent + eventMessage(ev))
		names := w.TasksFor(ev.Kind)
		if len(names) == 0 {
			return
		}
		tasks, err := r.namedTasks(names)
		if err != nil {
			r.logTaskFailed(name, t, err.Error())
			return
		}
		rf := frame{logDir: f.logDir, indent: f.indent, scope: eventScope(ev)}
		reactions.Go(func() {
			if err := r.runTaskList(ctx, rf, tasks); err != nil {
				r.logTaskFailed(name, t, err.Error())
			}
		})
	})
}

func eventScope(ev watch.Event) types.Vars {
	var stats interface{}
	if ev.Stats != nil {
		stats = ev.Stats
	}
	scope := types.Vars{
		"event":            ev.Kind,
		"path":             ev.Path,
		"name":             ev.Name,
		"stats":            stats,
		"onChangeFileName": ev.Name,
		"onChangeFullPath": ev.Path,
		"onChangeStats":    stats,
	}
	// Kind specific names, e.g. onAddFileName or onUnlinkDirFullPath.
	kind := "on" + strings.ToUpper(ev.Kind[:1]) + ev.Kind[1:]
	scope[kind+"FileName"] = ev.Name
	scope[kind+"FullPath"] = ev.Path
	scope[kind+"Stats"] = stats
	return scope
}

func eventMessage(ev watch.Event) string {
	switch ev.Kind {
	case watch.Add:
		return fmt.Sprintf("File \"%s\" added.", ev.Path)
	case watch.Change:
		return fmt.Sprintf("File \"%s\" changed.", ev.Path)
	case watch.Unlink:
		return fmt.Sprintf("File \"%s\" removed.", ev.Path)
	case watch.AddDir:
		return fmt.Sprintf("Directory \"%s\" added.", ev.Path)
	case watch.UnlinkDir:
		return fmt.Sprintf("Directory \"%s\" removed.", ev.Path)
	}
	return fmt.Sprintf("\"%s\" %s.", ev.Path, ev.Kind)
}

func (r *Runtime) logTaskFailed(name string, t *types.Task, msg string) {
	desc := ""
	if t != nil {
		desc = t.Desc
	}
	r.Console.Error("")
	r.Console.ErrorHeader(fmt.Sprintf("Task %q (%s) Failed", name, desc))
	r.Console.LogMultiLineError("   ", msg)
}
