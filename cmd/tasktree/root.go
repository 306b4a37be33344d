package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/tasktree"
	"github.com/viant/tasktree/extension"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/model/types"
	"github.com/viant/tasktree/service/event"
)

// errFailed is returned when a recipe finished with an error or was cancelled.
var errFailed = errors.New("recipe did not succeed")

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tasktree",
		Short:         "Run declarative task recipes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "URL of the YAML config file")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error or disabled")

	root.AddCommand(
		RunCmd(),
		ValidateCmd(),
		TasksCmd(),
	)
	return root
}

func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Load a recipe and run it until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if address, _ := cmd.Flags().GetString("metrics-address"); address != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Address = address
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			result, err := run(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			if result != types.WithSuccess {
				return fmt.Errorf("%w: %v", errFailed, result)
			}
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 0, "cancel the recipe after this duration")
	cmd.Flags().String("metrics-address", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func run(ctx context.Context, cfg *tasktree.Config, URL string) (types.DoneWith, error) {
	log := cfg.Logger()
	recipe, err := cfg.RecipeService().Load(ctx, URL)
	if err != nil {
		return types.WithError, err
	}
	tree, err := tasktree.NewFromConfig(recipe, cfg)
	if err != nil {
		return types.WithError, err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Address != "" {
		stop := serveMetrics(tree, cfg.Metrics.Address)
		defer stop()
	}
	if events := tree.Events(); events != nil {
		if err = event.SetListenerOf[event.Node](events, func(e *event.Event[event.Node]) {
			log.Debug("node event", "type", e.Context.EventType, "path", e.Context.Path, "result", e.Data.Result)
		}); err != nil {
			return types.WithError, err
		}
		defer events.Close()
	}
	log.Info("running recipe", "url", URL, "tasks", tree.TaskCount())
	result, err := tree.RunBlocking(ctx)
	if err != nil {
		return types.WithError, err
	}
	progress := tree.Progress()
	log.Info("recipe finished", "result", result, "started", progress.AsyncCount,
		"succeeded", progress.Succeeded, "failed", progress.Failed,
		"cancelled", progress.Cancelled, "skipped", progress.Skipped)
	return result, nil
}

func serveMetrics(tree *tasktree.TaskTree, address string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", tree.Metrics().Handler())
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = server.ListenAndServe() }()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func ValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <url>",
		Short: "Load a recipe and report problems without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			recipe, err := cfg.RecipeService().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v: %d tasks\n", recipe, graph.CountTasks(recipe))
			return nil
		},
	}
}

func TasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List task types available to recipes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range extension.Default().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func loadConfig(cmd *cobra.Command) (*tasktree.Config, error) {
	cfg := tasktree.DefaultConfig()
	if URL, _ := cmd.Flags().GetString("config"); URL != "" {
		var err error
		if cfg, err = tasktree.LoadConfig(cmd.Context(), URL); err != nil {
			return nil, err
		}
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, cfg.Validate()
}
