package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/config"
	"github.com/ZaguanLabs/backtrans/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API until interrupted.

Routes:
  POST   /api/backtranslate
  GET    /api/memory/stats
  GET    /api/memory/search?q=&limit=
  DELETE /api/memory
  GET    /healthz
  GET    /metrics

When a config file is in use it is watched; changes to log.level apply
without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if a.cfg.File != "" {
				manager, err := config.NewManager(a.cfg.File, a.logger, a.configOptions(cmd)...)
				if err != nil {
					return err
				}
				defer manager.Close()

				manager.OnChange(func(cfg *config.Config) {
					level, err := config.ParseLevel(cfg.Log.Level)
					if err != nil {
						return
					}
					if level != a.level.Level() {
						a.level.Set(level)
						a.logger.Info("log level changed", "level", level)
					}
				})
				if err := manager.Watch(ctx); err != nil {
					a.logger.Warn("config watch disabled", "error", err)
				}
			}

			memory, err := openMemory(a.cfg)
			if err != nil {
				return err
			}
			defer memory.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := server.New(server.Config{
				Translator: a.newClient(memory),
				Memory:     memory,
				Defaults:   a.batchOptions(),
				Logger:     a.logger,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := defaultConfigPath()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := *a.cfg
			if cfg.OpenAI.APIKey != "" {
				cfg.OpenAI.APIKey = "********"
			}
			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return err
			}
			if a.cfg.File != "" {
				fmt.Fprintf(a.stdout, "# %s\n", a.cfg.File)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, config.ConfigName+".yaml"), nil
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "%s %s\n", backtrans.Name, backtrans.FullVersion())
			if backtrans.GitCommit != "unknown" && backtrans.GitCommit != "" {
				fmt.Fprintf(a.stdout, "  commit:  %s\n", backtrans.GitCommit)
			}
			if backtrans.BuildDate != "unknown" && backtrans.BuildDate != "" {
				fmt.Fprintf(a.stdout, "  built:   %s\n", backtrans.BuildDate)
			}
		},
	}
}
