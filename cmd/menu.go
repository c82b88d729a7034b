package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"taskflow/internal/config"
	"taskflow/internal/workflow/types"
)

const (
	menuRunAll = "🚀 Run all tasks"
	menuList   = "📋 List tasks"
	menuInfo   = "ℹ️  Show info"
	menuReload = "🔄 Reload config"
	menuExit   = "🚪 Exit"
)

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Pick a task to run from an interactive menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMenu(cmd)
		},
	}
}

func taskItem(nt types.NamedTask) string {
	if nt.Task.Desc == "" {
		return fmt.Sprintf("▶️  %s", nt.Name)
	}
	return fmt.Sprintf("▶️  %s (%s)", nt.Name, nt.Task.Desc)
}

// menuItems lists the top-level tasks followed by the fixed entries.
func menuItems(loaded *config.Loaded) ([]string, map[string]types.NamedTask) {
	items := make([]string, 0, len(loaded.Config.Tasks)+5)
	byItem := make(map[string]types.NamedTask, len(loaded.Config.Tasks))
	for _, nt := range loaded.Config.Tasks {
		item := taskItem(nt)
		items = append(items, item)
		byItem[item] = nt
	}
	items = append(items, menuRunAll, menuList, menuInfo, menuReload, menuExit)
	return items, byItem
}

func showMenu(cmd *cobra.Command) error {
	if !config.ConfigExists(configFile) {
		fmt.Printf("❌ %s not found\n", config.GetConfigPath(configFile))
		fmt.Println("💡 Run 'taskflow init' to create a starter workflow")
		return nil
	}

	loaded, err := loadWorkflow()
	if err != nil {
		printLoadError(err)
		return err
	}

	for {
		items, byItem := menuItems(loaded)
		prompt := promptui.Select{
			Label: "Select a task",
			Items: items,
			Size:  10,
		}

		_, result, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			fmt.Printf("❌ Menu cancelled: %v\n", err)
			return nil
		}

		switch result {
		case menuExit:
			fmt.Println("👋 Goodbye!")
			return nil
		case menuList:
			printTaskList(loaded)
		case menuInfo:
			showInfo()
		case menuReload:
			reloaded, err := loadWorkflow()
			if err != nil {
				printLoadError(err)
				continue
			}
			loaded = reloaded
			fmt.Println("✅ Config reloaded")
		case menuRunAll:
			runFromMenu(cmd.Context(), loaded, loaded.Config.Tasks)
		default:
			if nt, ok := byItem[result]; ok {
				runFromMenu(cmd.Context(), loaded, []types.NamedTask{nt})
			}
		}
		fmt.Println()
	}
}

// runFromMenu runs tasks and returns to the menu whatever the outcome.
func runFromMenu(parent context.Context, loaded *config.Loaded, tasks []types.NamedTask) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runSelected(ctx, loaded, tasks); err != nil {
		fmt.Printf("❌ Run failed\n")
		return
	}
	fmt.Printf("✅ Run finished\n")
}
