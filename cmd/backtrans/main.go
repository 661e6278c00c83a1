// Command backtrans back-translates text and files through an intermediate
// language and manages the translation memory.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/config"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"provider":              "provider",
	"source_language":       "source",
	"intermediate_language": "intermediate",
	"http.endpoint":         "endpoint",
	"cache.backend":         "cache-backend",
	"cache.path":            "cache-path",
	"cache.redis_url":       "redis-url",
	"log.level":             "log-level",
	"log.format":            "log-format",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries state shared by all subcommands.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string
	quiet   bool

	cfg    *config.Config
	level  *slog.LevelVar
	logger *slog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:   "backtrans",
		Short: backtrans.Description,
		Long: `backtrans translates text into an intermediate language and back again,
so the round trip can be compared with the original.

Examples:
  backtrans translate "The quick brown fox"          # English via Japanese
  backtrans translate -i de "Bonjour" --source fr     # French via German
  backtrans file chapter1.epub                        # extract and back-translate a file
  backtrans batch docs/                               # every supported file in a directory
  backtrans memory search fox                         # query the translation memory`,
		Version:       backtrans.FullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/"+config.ConfigName+".yaml)")
	pf.String("provider", "", "translation provider: google_unofficial or openai")
	pf.StringP("source", "s", "", "source language code (default from config)")
	pf.StringP("intermediate", "i", "", "intermediate language code (default from config)")
	pf.String("endpoint", "", "override the unofficial endpoint URL")
	pf.String("cache-backend", "", "translation memory backend: sqlite, memory or redis")
	pf.String("cache-path", "", "SQLite database path")
	pf.String("redis-url", "", "Redis URL for the redis backend")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress progress output")

	root.AddCommand(
		newTranslateCommand(a),
		newFileCommand(a),
		newBatchCommand(a),
		newMemoryCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return root
}

// loadConfig reads the configuration with flag overrides and sets up the
// logger.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, a.configOptions(cmd)...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.level.Set(level)
	a.logger = newLogger(a.stderr, cfg.Log.Format, a.level)
	slog.SetDefault(a.logger)

	if cfg.File != "" {
		a.logger.Debug("using config file", "path", cfg.File)
	}
	return nil
}

func (a *app) configOptions(cmd *cobra.Command) []config.Option {
	return []config.Option{config.WithFlags(cmd.Flags(), flagKeys)}
}

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// progressf writes a progress line to stderr unless --quiet is set.
func (a *app) progressf(format string, args ...any) {
	if a.quiet {
		return
	}
	fmt.Fprintf(a.stderr, format, args...)
}

// cancelOnDone returns a token that fires when ctx is done, which is how
// SIGINT reaches in-flight requests and backoff sleeps.
func cancelOnDone(ctx context.Context) (*backtrans.CancelToken, func()) {
	token := backtrans.NewCancelToken()
	stop := context.AfterFunc(ctx, token.Cancel)
	return token, func() { stop() }
}
