package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/cache"
)

func newMemoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage the translation memory",
	}
	cmd.AddCommand(
		newMemoryStatsCommand(a),
		newMemorySearchCommand(a),
		newMemoryClearCommand(a),
		newMemoryExportCommand(a),
		newMemoryImportCommand(a),
	)
	return cmd
}

// withMemory opens the configured backend for the duration of fn.
func (a *app) withMemory(fn func(memory *cache.Handle) error) error {
	memory, err := openMemory(a.cfg)
	if err != nil {
		return err
	}
	defer memory.Close()
	return fn(memory)
}

func newMemoryStatsCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry count and hit rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMemory(func(memory *cache.Handle) error {
				stats, err := memory.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(a.stdout, stats)
				}
				fmt.Fprintf(a.stdout, "Backend:      %s\n", a.cfg.Cache.Backend)
				fmt.Fprintf(a.stdout, "Entries:      %d / %d\n", stats.TotalEntries, stats.MaxEntries)
				fmt.Fprintf(a.stdout, "Lookups:      %d (%d hits, %d misses)\n", stats.TotalLookups, stats.TotalHits, stats.TotalMisses)
				fmt.Fprintf(a.stdout, "Hit rate:     %.1f%%\n", stats.HitRate*100)
				fmt.Fprintf(a.stdout, "Avg lookup:   %.2fms\n", stats.AvgLookupMs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output stats as JSON")
	return cmd
}

func newMemorySearchCommand(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find entries whose source or translation contains query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withMemory(func(memory *cache.Handle) error {
				entries, err := memory.Search(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if asJSON {
					if entries == nil {
						entries = []cache.Entry{}
					}
					return writeJSON(a.stdout, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(a.stdout, "No matching entries.")
					return nil
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PAIR\tSOURCE\tTRANSLATION\tHITS")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s>%s\t%s\t%s\t%d\n", e.SourceLang, e.TargetLang,
						truncate(e.SourceText, 40), truncate(e.TranslatedText, 40), e.AccessCount)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", cache.DefaultSearchLimit, "maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output entries as JSON")
	return cmd
}

func newMemoryClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry and reset the counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMemory(func(memory *cache.Handle) error {
				if err := memory.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "Translation memory cleared.")
				return nil
			})
		},
	}
}

func newMemoryExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every entry as JSON to file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMemory(func(memory *cache.Handle) error {
				exporter := cache.NewExporter(memory)
				metadata := map[string]string{
					"backend": a.cfg.Cache.Backend,
					"version": backtrans.Version,
				}
				if len(args) == 0 || args[0] == "-" {
					return exporter.Export(cmd.Context(), a.stdout, metadata)
				}
				if err := exporter.ExportToFile(cmd.Context(), args[0], metadata); err != nil {
					return err
				}
				a.progressf("Exported translation memory to %s\n", args[0])
				return nil
			})
		},
	}
}

func newMemoryImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load entries from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMemory(func(memory *cache.Handle) error {
				result, err := cache.NewImporter(memory).ImportFromFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Imported %d entries (%d skipped)\n", result.Imported, result.Failed)
				return nil
			})
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
