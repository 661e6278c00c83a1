// Package loader reads the text of the documents a batch can work on:
// plain text, Markdown, HTML and EPUB.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxFileSize is the largest file LoadText will read.
const MaxFileSize = 50 << 20

// FileType is a supported document type.
type FileType string

const (
	TypeText     FileType = "txt"
	TypeMarkdown FileType = "markdown"
	TypeHTML     FileType = "html"
	TypeEPUB     FileType = "epub"
)

var extensionTypes = map[string]FileType{
	".txt":      TypeText,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".html":     TypeHTML,
	".htm":      TypeHTML,
	".epub":     TypeEPUB,
}

// SupportedExtensions lists the extensions DetectType recognises.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionTypes))
	for ext := range extensionTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DetectType returns the document type for path based on its extension.
func DetectType(path string) (FileType, bool) {
	t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	return t, ok
}

// LoadError indicates a file could not be turned into text.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Loader implements backtrans.FileLoader for the supported document types.
type Loader struct {
	maxSize int64
}

// New creates a loader with the default size limit.
func New() *Loader {
	return &Loader{maxSize: MaxFileSize}
}

// WithMaxSize returns a copy of the loader with a different size limit.
func (l *Loader) WithMaxSize(n int64) *Loader {
	return &Loader{maxSize: n}
}

// LoadText returns the trimmed text content of path.
func (l *Loader) LoadText(path string) (string, error) {
	typ, ok := DetectType(path)
	if !ok {
		return "", &LoadError{Path: path, Message: "unsupported file type"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &LoadError{Path: path, Message: "file does not exist", Cause: err}
	}
	if info.IsDir() {
		return "", &LoadError{Path: path, Message: "path is a directory"}
	}
	if info.Size() > l.maxSize {
		return "", &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file too large (%d bytes exceeds %d bytes)", info.Size(), l.maxSize),
		}
	}

	switch typ {
	case TypeEPUB:
		book, err := LoadEPUB(path)
		if err != nil {
			return "", err
		}
		return book.Text(), nil

	case TypeHTML:
		raw, err := readText(path)
		if err != nil {
			return "", err
		}
		return ExtractHTMLText(raw), nil

	default:
		return readText(path)
	}
}

func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &LoadError{Path: path, Message: "read failed", Cause: err}
	}
	return strings.TrimSpace(toValidUTF8(raw)), nil
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// ListSupportedFiles walks dir recursively and returns every supported
// regular file, sorted by path. Symlinks are not followed.
func ListSupportedFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := DetectType(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}
