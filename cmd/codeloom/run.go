package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/config"
	"codeloom/internal/engine"
	"codeloom/internal/envmgr"
	"codeloom/internal/executor"
	"codeloom/internal/graph"
	"codeloom/internal/plan"
	"codeloom/internal/report"
	"codeloom/internal/security"
	"codeloom/internal/vision"
	"codeloom/internal/workspace"
)

func newRunCmd() *cobra.Command {
	var (
		imagePaths  []string
		maxHeal     int
		extraCtx    string
		skipInstall bool
	)

	cmd := &cobra.Command{
		Use:   "run [task description]",
		Short: "Execute a task through the multi-agent pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if maxHeal > 0 {
				cfg.Healing.MaxAttempts = maxHeal
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, ws, err := buildEngine(ctx, cfg, skipInstall)
			if err != nil {
				return err
			}

			task := engine.Task{
				Description:      strings.Join(args, " "),
				ContextOverrides: extraCtx,
			}
			if len(imagePaths) > 0 {
				images, imgErr := vision.LoadImages(imagePaths)
				if imgErr != nil {
					return imgErr
				}
				task.Images = images
			}

			rep, err := eng.Execute(ctx, task)
			printReport(cmd, rep, ws)
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&imagePaths, "image", "i", nil, "UI screenshot(s) to use as design context")
	cmd.Flags().IntVar(&maxHeal, "max-heal", 0, "override the healing attempt cap")
	cmd.Flags().StringVar(&extraCtx, "context", "", "extra context for the planner")
	cmd.Flags().BoolVar(&skipInstall, "skip-install", false, "skip dependency installation")
	return cmd
}

// buildEngine wires the full pipeline from configuration.
func buildEngine(ctx context.Context, cfg *config.Config, skipInstall bool) (*engine.Engine, *workspace.Workspace, error) {
	gateway, err := client.BuildGateway(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	ws, err := workspace.New(workspaceDir)
	if err != nil {
		return nil, nil, err
	}

	validator := security.NewValidator(ws.Root())
	for _, blocked := range cfg.Security.BlockedCommands {
		validator.AddBlockedCommand(blocked)
	}
	for _, denied := range cfg.Security.DeniedPaths {
		validator.AddDeniedPath(denied)
	}

	spawner := agent.NewSpawner(cfg.Agents, cfg.Backends.Default)

	store, err := graph.NewStore(graphStorePath(cfg))
	if err != nil {
		return nil, nil, err
	}

	extractorBackend := cfg.Agents.Extractor.Backend
	if extractorBackend == "" {
		extractorBackend = cfg.Backends.Default
	}
	ingester := graph.NewIngester(store, gateway, extractorBackend, client.Options{
		Model:       cfg.Agents.Extractor.Model,
		Temperature: cfg.Agents.Extractor.Temperature,
		MaxTokens:   cfg.Agents.Extractor.MaxTokens,
	}, cfg.Graph.Ignore, cfg.Graph.MaxFileBytes)

	var envManager *envmgr.Manager
	if !skipInstall {
		envManager = envmgr.NewManager(envmgr.Options{
			Workspace: ws,
			Validator: validator,
			Healer:    envmgr.NewHealer(gateway, spawner, ws),
			Config:    cfg.Healing,
		})
	}

	var analyzer *vision.Analyzer
	if gateway.SupportsVision(cfg.Backends.Default) {
		analyzer = vision.NewAnalyzer(gateway, spawner)
	}

	eng := engine.New(engine.Options{
		Planner:   plan.NewPlanner(gateway, spawner),
		Executor:  executor.New(gateway, spawner, validator, executor.NewProcessor(ws, validator)),
		Finalizer: report.NewFinalizer(gateway, spawner),
		EnvMgr:    envManager,
		Graph:     store,
		Ingester:  ingester,
		Vision:    analyzer,
		Workspace: ws,
		Validator: validator,
	})
	return eng, ws, nil
}

func graphStorePath(cfg *config.Config) string {
	if cfg.Graph.StorePath != "" {
		return cfg.Graph.StorePath
	}
	if dir, err := config.ConfigDir(); err == nil {
		return dir + "/graph.json"
	}
	return "graph.json"
}

func printReport(cmd *cobra.Command, rep report.Report, ws *workspace.Workspace) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nTask: %s\n", rep.Task)
	fmt.Fprintf(out, "Summary: %s\n", rep.Summary)
	if rep.Validation.QualityScore > 0 {
		fmt.Fprintf(out, "Quality: %.0f%%\n", rep.Validation.QualityScore*100)
	}

	if len(rep.Subtasks) > 0 {
		fmt.Fprintln(out, "\nSubtasks:")
		for _, st := range rep.Subtasks {
			fmt.Fprintf(out, "  [%s] %s\n", st.Status, st.Description)
			if st.Notes != "" {
				fmt.Fprintf(out, "         %s\n", st.Notes)
			}
		}
	}

	if len(rep.CreatedFiles) > 0 {
		fmt.Fprintf(out, "\nCreated files (in %s):\n", ws.Root())
		for _, file := range rep.CreatedFiles {
			fmt.Fprintf(out, "  %s\n", file)
		}
	}

	if ops := ws.Operations(); len(ops) > 0 {
		fmt.Fprintf(out, "\nWorkspace writes: %d\n", len(ops))
	}

	for _, healing := range rep.Healing {
		fmt.Fprintf(out, "\nInstall %s: %s (%d attempts)\n",
			healing.Manifest, healing.FinalStatus, len(healing.Attempts))
		for _, note := range healing.Notes {
			fmt.Fprintf(out, "  %s\n", note)
		}
	}

	if len(rep.SecurityEvents) > 0 {
		fmt.Fprintln(out, "\nSecurity denials:")
		for _, ev := range rep.SecurityEvents {
			fmt.Fprintf(out, "  [%s] %s: %s\n", ev.Kind, ev.Value, ev.Reason)
		}
	}
}
