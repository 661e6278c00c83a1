package backtrans

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func mapLoader(files map[string]string) FileLoader {
	return FileLoaderFunc(func(path string) (string, error) {
		content, ok := files[path]
		if !ok {
			return "", fmt.Errorf("open %s: no such file", path)
		}
		return content, nil
	})
}

func fiveFiles() ([]string, map[string]string) {
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}
	contents := make(map[string]string)
	for i, n := range names {
		contents[n] = fmt.Sprintf("file%d", i+1)
	}
	return names, contents
}

func TestBatchProcessor_Empty(t *testing.T) {
	b := NewBatchProcessor(newTestClient(newFakeProvider(ProviderGoogleUnofficial)), mapLoader(nil), WithBatchLogger(quietLogger()))

	called := false
	results := b.Process(context.Background(), nil, DefaultBatchOptions(), nil, func(BatchProgress) { called = true })

	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if called {
		t.Error("progress should not be reported for an empty batch")
	}
}

func TestBatchProcessor_OrderAndProgress(t *testing.T) {
	files, contents := fiveFiles()
	files = files[:3]
	p := newFakeProvider(ProviderGoogleUnofficial)
	b := NewBatchProcessor(newTestClient(p), mapLoader(contents), WithBatchLogger(quietLogger()))

	var events []BatchProgress
	results := b.Process(context.Background(), files, DefaultBatchOptions(), nil, func(p BatchProgress) {
		events = append(events, p)
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.FilePath != files[i] {
			t.Errorf("result %d path = %q, want %q", i, r.FilePath, files[i])
		}
		if !r.Success || r.Error != "" {
			t.Errorf("result %d = %+v", i, r)
		}
		want := "[en] [ja] " + contents[files[i]]
		if r.BackTranslatedText != want {
			t.Errorf("result %d back = %q, want %q", i, r.BackTranslatedText, want)
		}
	}

	wantEvents := []BatchProgress{
		{0, 3, "a.txt"}, {1, 3, "a.txt"},
		{1, 3, "b.txt"}, {2, 3, "b.txt"},
		{2, 3, "c.txt"}, {3, 3, "c.txt"},
	}
	if len(events) != len(wantEvents) {
		t.Fatalf("got %d progress events, want %d", len(events), len(wantEvents))
	}
	for i := range wantEvents {
		if events[i] != wantEvents[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], wantEvents[i])
		}
	}
}

func TestBatchProcessor_FailuresAreRecorded(t *testing.T) {
	p := newFakeProvider(ProviderGoogleUnofficial)
	p.fn = func(_ context.Context, _ int, req TranslateRequest) (string, error) {
		if strings.Contains(req.Text, "bad") {
			return "", NewError(KindBlocked, "captcha", nil)
		}
		return "ok", nil
	}
	loader := mapLoader(map[string]string{"good.txt": "good", "bad.txt": "bad"})
	b := NewBatchProcessor(newTestClient(p), loader, WithBatchLogger(quietLogger()))

	results := b.Process(context.Background(), []string{"missing.txt", "bad.txt", "good.txt"}, DefaultBatchOptions(), nil, nil)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Success || !strings.Contains(results[0].Error, "no such file") {
		t.Errorf("missing file result = %+v", results[0])
	}
	if results[1].Success || !strings.Contains(results[1].Error, "blocked") {
		t.Errorf("blocked result = %+v", results[1])
	}
	if !results[2].Success || results[2].Error != "" || results[2].IntermediateText != "ok" {
		t.Errorf("good result = %+v", results[2])
	}

	s := Summarize(results)
	if s.Total != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("Summarize() = %+v", s)
	}
}

func TestBatchProcessor_CancelledBeforeStart(t *testing.T) {
	files, contents := fiveFiles()
	p := newFakeProvider(ProviderGoogleUnofficial)
	b := NewBatchProcessor(newTestClient(p), mapLoader(contents), WithBatchLogger(quietLogger()))

	token := NewCancelToken()
	token.Cancel()

	results := b.Process(context.Background(), files, DefaultBatchOptions(), token, nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if p.calls() != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls())
	}
}

func TestBatchProcessor_CancelMidBatch(t *testing.T) {
	files, contents := fiveFiles()
	token := NewCancelToken()

	p := newFakeProvider(ProviderGoogleUnofficial)
	p.fn = func(_ context.Context, _ int, req TranslateRequest) (string, error) {
		if req.Text == "file3" {
			token.Cancel()
		}
		return "[" + req.TargetLang + "] " + req.Text, nil
	}
	b := NewBatchProcessor(newTestClient(p), mapLoader(contents), WithBatchLogger(quietLogger()))

	var last BatchProgress
	results := b.Process(context.Background(), files, DefaultBatchOptions(), token, func(p BatchProgress) {
		last = p
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.FilePath != files[i] || !r.Success {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if last != (BatchProgress{Done: 2, Total: 5, CurrentFile: "c.txt"}) {
		t.Errorf("last progress = %+v", last)
	}
}

func TestBatchProcessor_CancelFromProgress(t *testing.T) {
	files, contents := fiveFiles()
	token := NewCancelToken()
	p := newFakeProvider(ProviderGoogleUnofficial)
	b := NewBatchProcessor(newTestClient(p), mapLoader(contents), WithBatchLogger(quietLogger()))

	results := b.Process(context.Background(), files, DefaultBatchOptions(), token, func(p BatchProgress) {
		if p.Done == 3 {
			token.Cancel()
		}
	})

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
	if p.calls() != 6 {
		t.Errorf("provider calls = %d, want 6", p.calls())
	}
}

type recordingTranslator struct {
	reqs []BackTranslateRequest
}

func (r *recordingTranslator) BackTranslate(_ context.Context, req BackTranslateRequest, _ *CancelToken) (*BackTranslationResult, error) {
	r.reqs = append(r.reqs, req)
	if req.Text == "cancel" {
		return nil, NewError(KindCancelled, "", nil)
	}
	return &BackTranslationResult{IntermediateText: "i", BackTranslatedText: "b"}, nil
}

func TestBatchProcessor_OptionDefaults(t *testing.T) {
	tr := &recordingTranslator{}
	b := NewBatchProcessor(tr, mapLoader(map[string]string{"x": "text"}), WithBatchLogger(quietLogger()))

	b.Process(context.Background(), []string{"x"}, BatchOptions{}, nil, nil)

	if len(tr.reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(tr.reqs))
	}
	got := tr.reqs[0]
	if got.IntermediateLang != "ja" || got.Provider != ProviderGoogleUnofficial || got.SourceLang != "" {
		t.Errorf("request = %+v", got)
	}
}

func TestBatchProcessor_CancelledItemNotRecorded(t *testing.T) {
	tr := &recordingTranslator{}
	loader := mapLoader(map[string]string{"1": "one", "2": "cancel", "3": "three"})
	b := NewBatchProcessor(tr, loader, WithBatchLogger(quietLogger()))

	results := b.Process(context.Background(), []string{"1", "2", "3"}, DefaultBatchOptions(), nil, nil)

	if len(results) != 1 || results[0].FilePath != "1" {
		t.Errorf("results = %+v", results)
	}
	if len(tr.reqs) != 2 {
		t.Errorf("translator calls = %d, want 2", len(tr.reqs))
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]BatchItemResult{
		{Success: true, DurationMs: 10},
		{Success: false, Error: "x", DurationMs: 5},
	})
	if s != (BatchSummary{Total: 2, Succeeded: 1, Failed: 1, DurationMs: 15}) {
		t.Errorf("Summarize() = %+v", s)
	}

	if Summarize(nil) != (BatchSummary{}) {
		t.Error("Summarize(nil) should be zero")
	}
}

