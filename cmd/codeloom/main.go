package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codeloom/internal/config"
	"codeloom/internal/logging"
)

var (
	version = "0.1.0"

	workspaceDir string
	backendID    string
	modelName    string
	logLevel     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codeloom",
		Short: "Multi-agent task orchestrator for code generation",
		Long: `Codeloom decomposes a task into subtasks with a planner agent, executes
them with specialized executor agents, writes the resulting files into a
sandboxed workspace, installs their dependencies with self-healing retries,
and produces a consolidated report.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", "./workspace", "workspace directory for generated files")
	rootCmd.PersistentFlags().StringVar(&backendID, "backend", "", "backend to use (ollama, gemini)")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "model override for all agents")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codeloom version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if backendID != "" {
		cfg.Backends.Default = backendID
	}
	if modelName != "" {
		cfg.Agents.Planner.Model = modelName
		cfg.Agents.Executor.Model = modelName
		cfg.Agents.Finalizer.Model = modelName
		cfg.Agents.Extractor.Model = modelName
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	logging.Configure(level, os.Stderr)
	if cfg.Logging.File {
		if dir, dirErr := config.ConfigDir(); dirErr == nil {
			_ = logging.EnableFileLogging(dir, level)
		}
	}

	return cfg, nil
}
