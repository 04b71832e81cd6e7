package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/taskforge/config"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "taskforge",
		Short:         "Plan security tool tasks and run their executions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file or directory (default: taskforge.yaml in the working directory or a parent)")

	root.AddCommand(
		newWorkerCommand(a),
		newPlanCommand(a),
		newSubmitCommand(a),
		newCancelCommand(a),
		newHealthCommand(a),
	)
	return root
}

// loadConfig reads the --config file, or searches from the working
// directory. Without any file the defaults apply.
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromDir(".")
	if errors.Is(err, config.ErrNoConfig) {
		return config.Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
