package engine

import (
	"context"

	"taskflow/internal/workflow/types"
)

// RunTasks runs tasks in order and stops at the first failure. Each task
// starts from its own copy of opts.Extracted, so variables extracted by one
// task are not visible to the next.
func (r *Runtime) RunTasks(ctx context.Context, tasks []types.NamedTask, opts RunOptions) error {
	return r.runTaskList(ctx, r.frame(opts), tasks)
}

func (r *Runtime) runTaskList(ctx context.Context, f frame, tasks []types.NamedTask) error {
	initial := f.scope
	for _, nt := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		tf := f
		tf.scope = initial.Clone()
		if err := r.runTask(ctx, tf, nt.Name, nt.Task); err != nil {
			return err
		}
	}
	return nil
}
