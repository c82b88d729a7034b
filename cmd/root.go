package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"taskflow/internal/config"
	"taskflow/internal/logging"
)

// Version is stamped at build time with -ldflags "-X taskflow/cmd.Version=...".
var Version = "0.0.0-dev"

var (
	configFile      string
	userConfigFiles []string
	setValues       map[string]string
	logOutput       bool
	maxParallel     int
	logLevel        string
	metricsAddr     string

	rootCmd = &cobra.Command{
		Use:           "taskflow",
		Short:         "Declarative workflow runner",
		Long:          `Run the tasks and actions declared in a taskflow.yaml workflow file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(os.Stderr, logging.ParseLevel(logLevel), nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMenu(cmd)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Workflow file path (default taskflow.yaml)")
	flags.StringArrayVar(&userConfigFiles, "user-config", nil, "User config file, repeatable; earlier files win")
	flags.StringToStringVar(&setValues, "set", nil, "Override a user config value (key=value, dotted keys nest)")
	flags.BoolVar(&logOutput, "log-output", false, "Write args, output and extracted values of every action")
	flags.IntVar(&maxParallel, "max-parallel", 0, "Limit concurrent branches of async tasks (0 = unbounded)")
	flags.StringVar(&logLevel, "log-level", "warn", "Diagnostic log level (debug, info, warn, error)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newFunctionsCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newMenuCmd())
}

func Execute() error {
	defer func() { _ = logging.WithFields(nil).Sync() }()
	return rootCmd.Execute()
}

// loadOptions builds the loader options from the persistent flags.
func loadOptions() config.Options {
	return config.Options{
		ConfigPath:      configFile,
		UserConfigPaths: userConfigFiles,
		Set:             setValues,
		Version:         Version,
		Prompter:        config.DefaultPrompter(),
	}
}

func loadWorkflow() (*config.Loaded, error) {
	return config.Load(loadOptions())
}

// isDevelopmentMode checks if the executable path indicates we're running via "go run"
func isDevelopmentMode(exePath string) bool {
	tempDir := filepath.Clean(os.TempDir())
	exePath = filepath.Clean(exePath)

	if strings.HasPrefix(exePath, tempDir) {
		return true
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		goBuildCache := filepath.Clean(filepath.Join(homeDir, ".cache", "go-build"))
		if strings.HasPrefix(exePath, goBuildCache) {
			return true
		}
	}

	return strings.Contains(exePath, "go-build")
}
