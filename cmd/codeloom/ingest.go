package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeloom/internal/client"
	"codeloom/internal/graph"
)

func newIngestCmd() *cobra.Command {
	var (
		noLLM bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [directory]",
		Short: "Build the knowledge graph from a source tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := workspaceDir
			if len(args) > 0 {
				dir = args[0]
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := graph.NewStore(graphStorePath(cfg))
			if err != nil {
				return err
			}

			var completer graph.Completer
			backend := cfg.Agents.Extractor.Backend
			if backend == "" {
				backend = cfg.Backends.Default
			}
			opts := client.Options{
				Model:       cfg.Agents.Extractor.Model,
				Temperature: cfg.Agents.Extractor.Temperature,
				MaxTokens:   cfg.Agents.Extractor.MaxTokens,
			}
			if !noLLM {
				gateway, gwErr := client.BuildGateway(ctx, cfg)
				if gwErr != nil {
					return gwErr
				}
				completer = gateway
			}

			ing := graph.NewIngester(store, completer, backend, opts, cfg.Graph.Ignore, cfg.Graph.MaxFileBytes)
			count, err := ing.IngestDir(ctx, dir)
			if err != nil {
				return err
			}

			nodes, edges := store.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d files: %d nodes, %d edges\n", count, nodes, edges)

			if watch {
				w, wErr := graph.NewWatcher(dir, ing, graph.WatcherConfig{
					Enabled:    true,
					DebounceMs: cfg.Watcher.DebounceMs,
					MaxWatches: cfg.Watcher.MaxWatches,
				})
				if wErr != nil {
					return wErr
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()

				fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes, Ctrl-C to stop.")
				<-ctx.Done()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "use regex extraction only, skip the model")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep watching the tree and re-ingest changed files")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var kindFilter string

	cmd := &cobra.Command{
		Use:   "query [term]",
		Short: "Query the knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := graph.NewStore(graphStorePath(cfg))
			if err != nil {
				return err
			}

			result := store.Query(args[0])
			out := cmd.OutOrStdout()
			if len(result.Nodes) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}

			for _, node := range result.Nodes {
				if kindFilter != "" && string(node.Kind) != kindFilter {
					continue
				}
				fmt.Fprintf(out, "%-10s %-30s %s\n", node.Kind, node.Name, node.File)
			}
			if len(result.Edges) > 0 {
				fmt.Fprintln(out, "\nRelationships:")
				for _, edge := range result.Edges {
					fmt.Fprintf(out, "  %s %s %s\n", edge.From, edge.Kind, edge.To)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFilter, "kind", "", "filter results by node kind (file, class, function, service)")
	return cmd
}
