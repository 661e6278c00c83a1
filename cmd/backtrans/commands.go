package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/loader"
	"github.com/ZaguanLabs/backtrans/server"
)

// outputFlags are shared by the commands that print results.
type outputFlags struct {
	json   bool
	detect bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "output result as JSON")
	cmd.Flags().BoolVar(&o.detect, "detect", false, "detect the source language instead of using --source")
}

func newTranslateCommand(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Back-translate text given as arguments or on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}
			return a.backTranslate(cmd.Context(), text, out)
		},
	}
	out.register(cmd)
	return cmd
}

func newFileCommand(a *app) *cobra.Command {
	var (
		out     outputFlags
		maxSize int64
	)
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Extract text from a file and back-translate it",
		Long: "Extract text from a file and back-translate it.\n\nSupported extensions: " +
			strings.Join(loader.SupportedExtensions(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := loader.New().WithMaxSize(maxSize).LoadText(args[0])
			if err != nil {
				return err
			}
			a.progressf("Back-translating %s...\n", filepath.Base(args[0]))
			return a.backTranslate(cmd.Context(), text, out)
		},
	}
	out.register(cmd)
	cmd.Flags().Int64Var(&maxSize, "max-size", loader.MaxFileSize, "maximum file size in bytes")
	return cmd
}

// translateOutput is the JSON shape of a single back-translation.
type translateOutput = server.BackTranslateResponse

func (a *app) backTranslate(ctx context.Context, text string, out outputFlags) error {
	memory, err := openMemory(a.cfg)
	if err != nil {
		return err
	}
	defer memory.Close()

	token, stop := cancelOnDone(ctx)
	defer stop()

	opts := a.batchOptions()
	if out.detect {
		opts.SourceLang = ""
	}

	result, err := a.newClient(memory).BackTranslate(ctx, backtrans.BackTranslateRequest{
		Text:             text,
		SourceLang:       opts.SourceLang,
		IntermediateLang: opts.IntermediateLang,
		Provider:         opts.Provider,
	}, token)
	if err != nil {
		return err
	}

	report := backtrans.CompareFidelity(result.OriginalText, result.BackTranslatedText)
	if out.json {
		return writeJSON(a.stdout, translateOutput{BackTranslationResult: result, Fidelity: report})
	}

	fmt.Fprintf(a.stdout, "Original (%s):\n%s\n\n", result.SourceLang, result.OriginalText)
	fmt.Fprintf(a.stdout, "Intermediate (%s):\n%s\n\n", result.IntermediateLang, result.IntermediateText)
	fmt.Fprintf(a.stdout, "Back-translated (%s):\n%s\n\n", result.SourceLang, result.BackTranslatedText)
	fmt.Fprintf(a.stdout, "Fidelity: BLEU %.2f, %s confidence\n", report.BLEU, report.Confidence)
	if !a.quiet {
		stats := report.Stats()
		fmt.Fprintf(a.stderr, "  Unchanged words: %d\n", stats.Unchanged)
		fmt.Fprintf(a.stderr, "  Added words:     %d\n", stats.Added)
		fmt.Fprintf(a.stderr, "  Removed words:   %d\n", stats.Removed)
		fmt.Fprintf(a.stderr, "  Duration:        %dms\n", result.DurationMs)
	}
	return nil
}

func newBatchCommand(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Back-translate files one after another",
		Long: `Back-translate files one after another. Directories are expanded to
every supported file below them. Interrupting the run keeps the results
of the files that already finished.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandPaths(args)
			if err != nil {
				return err
			}
			return a.runBatch(cmd.Context(), files, out)
		},
	}
	out.register(cmd)
	return cmd
}

// expandPaths replaces directories with the supported files they contain.
func expandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := loader.ListSupportedFiles(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, errors.New("no supported files found")
	}
	return files, nil
}

// batchOutput is the JSON shape of a batch run.
type batchOutput struct {
	Results   []backtrans.BatchItemResult `json:"results"`
	Summary   backtrans.BatchSummary      `json:"summary"`
	Cancelled bool                        `json:"cancelled"`
}

func (a *app) runBatch(ctx context.Context, files []string, out outputFlags) error {
	memory, err := openMemory(a.cfg)
	if err != nil {
		return err
	}
	defer memory.Close()

	token, stop := cancelOnDone(ctx)
	defer stop()

	opts := a.batchOptions()
	if out.detect {
		opts.SourceLang = ""
	}

	processor := backtrans.NewBatchProcessor(a.newClient(memory), loader.New(), backtrans.WithBatchLogger(a.logger))
	var current string
	results := processor.Process(ctx, files, opts, token, func(p backtrans.BatchProgress) {
		if p.CurrentFile == current {
			return
		}
		current = p.CurrentFile
		a.progressf("[%d/%d] %s\n", p.Done+1, p.Total, p.CurrentFile)
	})
	summary := backtrans.Summarize(results)
	cancelled := token.IsCancelled() && len(results) < len(files)

	if out.json {
		return writeJSON(a.stdout, batchOutput{Results: results, Summary: summary, Cancelled: cancelled})
	}

	for _, r := range results {
		if r.Success {
			fmt.Fprintf(a.stdout, "ok    %s\n", r.FilePath)
			continue
		}
		fmt.Fprintf(a.stdout, "fail  %s: %s\n", r.FilePath, r.Error)
	}
	fmt.Fprintf(a.stdout, "\n%d files, %d succeeded, %d failed in %dms\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.DurationMs)
	if cancelled {
		fmt.Fprintf(a.stdout, "Cancelled after %d of %d files\n", len(results), len(files))
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
