package cmd

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskflow/internal/actions"
	"taskflow/internal/config"
	"taskflow/internal/workflow/types"
)

//go:embed starter.yaml
var starterWorkflow string

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tasks of the workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadWorkflow()
			if err != nil {
				printLoadError(err)
				return err
			}
			printTaskList(loaded)
			return nil
		},
	}
}

func printTaskList(loaded *config.Loaded) {
	fmt.Printf("📄 %s\n", loaded.Path)
	fmt.Println()
	printTasks("📋 Tasks:", loaded.Config.Tasks)
	if len(loaded.Config.Helpers.Tasks) > 0 {
		fmt.Println()
		printTasks("🧩 Helper tasks:", loaded.Config.Helpers.Tasks)
	}
}

func printTasks(header string, tasks []types.NamedTask) {
	fmt.Println(header)
	width := 0
	for _, nt := range tasks {
		if len(nt.Name) > width {
			width = len(nt.Name)
		}
	}
	for _, nt := range tasks {
		fmt.Printf("  %-*s  %s\n", width, nt.Name, nt.Task.Desc)
	}
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the built-in functions available to \"function\" actions",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("🔧 Built-in functions:")
			for _, name := range actions.BuiltInNames() {
				fmt.Printf("  %s\n", name)
			}
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the workflow and report every problem found",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadWorkflow()
			if err != nil {
				fmt.Printf("❌ %s is not valid\n", config.GetConfigPath(configFile))
				fmt.Println(err.Error())
				return err
			}
			fmt.Printf("✅ %s is valid (%d tasks, %d helper tasks, %d helper actions)\n",
				loaded.Path, len(loaded.Config.Tasks), len(loaded.Config.Helpers.Tasks), len(loaded.Config.Helpers.Actions))
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a starter workflow",
		Long: `Generate a starter taskflow.yaml in the current directory.
This is the file taskflow commands use when no --config flag is specified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(config.DefaultConfigFile)
		},
	}
}

func runInit(path string) error {
	cwd, _ := os.Getwd()
	fmt.Printf("📂 Current directory: %s\n", cwd)

	if config.ConfigExists(path) {
		fmt.Printf("❌ %s already exists\n", path)
		fmt.Printf("💡 Use a different directory or remove the existing file if you want to recreate it\n")
		return fmt.Errorf("%s already exists", path)
	}

	if err := os.WriteFile(path, []byte(starterWorkflow), 0o644); err != nil {
		fmt.Printf("❌ Failed to write %s: %v\n", path, err)
		return err
	}

	fmt.Printf("✅ Created %s\n", path)
	fmt.Println("💡 Try: taskflow list, then taskflow run greet")
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show environment and workflow information",
		Run: func(cmd *cobra.Command, args []string) {
			showInfo()
		},
	}
}

func showInfo() {
	fmt.Println("ℹ️  taskflow " + Version)
	fmt.Println(strings.Repeat("=", 20))

	cwd, _ := os.Getwd()
	fmt.Printf("📂 Working Directory: %s\n", cwd)
	if exePath, err := os.Executable(); err == nil {
		fmt.Printf("📍 Executable: %s\n", exePath)
		fmt.Printf("🛠️  Development Mode: %v\n", isDevelopmentMode(exePath))
	}
	fmt.Println()

	fmt.Println("⚙️  Configuration:")
	fmt.Println(strings.Repeat("-", 14))
	fmt.Printf("📄 Config file: %s\n", config.GetConfigPath(configFile))

	loaded, err := loadWorkflow()
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		return
	}
	cfg := loaded.Config
	fmt.Printf("📁 Output directory: %s\n", cfg.OutputDir)
	fmt.Printf("📋 Tasks: %d\n", len(cfg.Tasks))
	fmt.Printf("🧩 Helper tasks: %d\n", len(cfg.Helpers.Tasks))
	fmt.Printf("🔧 Helper actions: %d\n", len(cfg.Helpers.Actions))
	fmt.Printf("📝 Inputs: %d\n", len(cfg.Input))
	fmt.Printf("🖥️  Hosts: %d\n", len(cfg.Hosts))
}
