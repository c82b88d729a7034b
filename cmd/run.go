package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taskflow/internal/actions"
	"taskflow/internal/config"
	"taskflow/internal/logging"
	"taskflow/internal/metrics"
	"taskflow/internal/util"
	"taskflow/internal/workflow/engine"
	"taskflow/internal/workflow/types"
)

func newRunCmd() *cobra.Command {
	var useRegex bool

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run all tasks, one task, or the tasks matching a pattern",
		Long: `Run every top-level task in file order when no task is given.
With a task name, run that task (tasks are searched before helpers.tasks).
With --regex, run every task whose name matches the pattern.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}

			loaded, err := loadWorkflow()
			if err != nil {
				printLoadError(err)
				return err
			}

			tasks, err := selectTasks(loaded, selector, useRegex)
			if err != nil {
				util.Default.Error(err.Error())
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSelected(ctx, loaded, tasks)
		},
	}

	cmd.Flags().BoolVar(&useRegex, "regex", false, "Treat the task argument as a regular expression")
	return cmd
}

func printLoadError(err error) {
	util.Default.ErrorHeader("Error Loading Config")
	util.Default.LogMultiLineError("   ", err.Error())
}

// selectTasks picks what "run" executes. An empty selector means every
// top-level task.
func selectTasks(loaded *config.Loaded, selector string, useRegex bool) ([]types.NamedTask, error) {
	if selector == "" {
		return loaded.Config.Tasks, nil
	}

	if !useRegex {
		t := loaded.TaskByName(selector)
		if t == nil {
			return nil, fmt.Errorf("Task %q does not exist in config file:\n%s", selector, loaded.Path)
		}
		return []types.NamedTask{{Name: selector, Task: t}}, nil
	}

	re, err := regexp.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("Invalid task RegEx %q: %v", selector, err)
	}
	var matched []types.NamedTask
	for _, nt := range loaded.Tasks() {
		if re.MatchString(nt.Name) {
			matched = append(matched, nt)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("No tasks matched input RegEx: %s.", selector)
	}
	return matched, nil
}

// runSelected executes tasks against a fresh runtime and reports the outcome.
func runSelected(ctx context.Context, loaded *config.Loaded, tasks []types.NamedTask) error {
	runID := uuid.New().String()
	logging.Init(os.Stderr, logging.ParseLevel(logLevel), map[string]interface{}{"run_id": runID})

	m := metrics.New()
	if metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, metricsAddr); err != nil {
				logging.Warn("metrics endpoint stopped", map[string]interface{}{"addr": metricsAddr, "error": err.Error()})
			}
		}()
	}

	rt := engine.New(loaded.Config, actions.NewRegistry())
	rt.LogOutput = logOutput
	rt.MaxParallel = maxParallel
	rt.Metrics = m

	started := time.Now()
	logDir := config.RunLogDir(loaded.Config.OutputDir, started)
	logging.Info("run started", map[string]interface{}{"tasks": len(tasks), "log_dir": logDir})

	err := rt.RunTasks(ctx, tasks, engine.RunOptions{LogDir: logDir})
	fields := map[string]interface{}{"duration": time.Since(started).String()}
	if err != nil {
		fields["error"] = err.Error()
		logging.Error("run failed", fields)
		return err
	}
	logging.Info("run finished", fields)
	return nil
}
