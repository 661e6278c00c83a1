package backtrans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ZaguanLabs/backtrans/metrics"
)

// FileLoader reads the text content of a file.
type FileLoader interface {
	LoadText(path string) (string, error)
}

// FileLoaderFunc adapts a plain function to FileLoader.
type FileLoaderFunc func(path string) (string, error)

// LoadText calls f(path).
func (f FileLoaderFunc) LoadText(path string) (string, error) {
	return f(path)
}

// BackTranslator is the part of Client used by the batch processor.
type BackTranslator interface {
	BackTranslate(ctx context.Context, req BackTranslateRequest, token *CancelToken) (*BackTranslationResult, error)
}

// BatchOptions selects the languages and provider for every file in a batch.
type BatchOptions struct {
	SourceLang       string // Empty means detect per file
	IntermediateLang string
	Provider         ProviderID
}

// DefaultBatchOptions returns English via Japanese on the default provider.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		SourceLang:       "en",
		IntermediateLang: "ja",
		Provider:         DefaultProvider,
	}
}

// BatchProgress is reported before and after each file.
type BatchProgress struct {
	Done        int
	Total       int
	CurrentFile string
}

// ProgressFunc receives batch progress notifications. It is called on the
// goroutine running Process.
type ProgressFunc func(BatchProgress)

// BatchProcessor back-translates files one after another.
type BatchProcessor struct {
	translator BackTranslator
	loader     FileLoader
	logger     *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the structured logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(translator BackTranslator, loader FileLoader, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		translator: translator,
		loader:     loader,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Process back-translates files in the order given and never fails as a
// whole. Per-file failures are recorded in the returned items.
//
// The token is checked before each file. Once it fires, the loop stops and
// the items gathered so far are returned; a file whose back-translation was
// interrupted is not recorded. onProgress may be nil.
func (b *BatchProcessor) Process(ctx context.Context, files []string, opts BatchOptions, token *CancelToken, onProgress ProgressFunc) []BatchItemResult {
	total := len(files)
	if total == 0 {
		return nil
	}
	if opts.IntermediateLang == "" {
		opts.IntermediateLang = DefaultBatchOptions().IntermediateLang
	}
	if opts.Provider == "" {
		opts.Provider = DefaultProvider
	}
	if onProgress == nil {
		onProgress = func(BatchProgress) {}
	}

	b.logger.Info("starting batch", "files", total, "intermediate", opts.IntermediateLang, "provider", opts.Provider)

	results := make([]BatchItemResult, 0, total)

	for i, path := range files {
		if cancelled(ctx, token) {
			metrics.BatchesCancelled.Inc()
			b.logger.Warn("batch cancelled", "completed", len(results), "total", total)
			break
		}

		onProgress(BatchProgress{Done: i, Total: total, CurrentFile: path})

		item, interrupted := b.processFile(ctx, path, opts, token)
		if interrupted {
			metrics.BatchesCancelled.Inc()
			b.logger.Warn("batch cancelled during file", "file", path, "completed", len(results), "total", total)
			break
		}

		metrics.RecordBatchItem(item.Success)
		results = append(results, item)

		onProgress(BatchProgress{Done: i + 1, Total: total, CurrentFile: path})
	}

	b.logger.Info("batch finished", "results", len(results), "total", total)
	return results
}

// processFile handles one file. The second return value reports that the
// file was abandoned because of cancellation.
func (b *BatchProcessor) processFile(ctx context.Context, path string, opts BatchOptions, token *CancelToken) (BatchItemResult, bool) {
	start := time.Now()
	item := BatchItemResult{FilePath: path}

	content, err := b.loader.LoadText(path)
	if err != nil {
		item.Error = err.Error()
		item.DurationMs = time.Since(start).Milliseconds()
		b.logger.Error("failed to load file", "file", path, "error", err)
		return item, false
	}

	result, err := b.translator.BackTranslate(ctx, BackTranslateRequest{
		Text:             content,
		SourceLang:       opts.SourceLang,
		IntermediateLang: opts.IntermediateLang,
		Provider:         opts.Provider,
	}, token)
	item.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return item, true
		}
		item.Error = err.Error()
		b.logger.Error("failed to back-translate file", "file", path, "error", err)
		return item, false
	}

	item.Success = true
	item.IntermediateText = result.IntermediateText
	item.BackTranslatedText = result.BackTranslatedText
	return item, false
}

// BatchSummary aggregates the items of a batch run.
type BatchSummary struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

// Summarize counts successes and failures.
func Summarize(results []BatchItemResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.DurationMs += r.DurationMs
	}
	return s
}
