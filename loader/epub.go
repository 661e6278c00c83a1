package loader

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Book is the readable content of an EPUB file.
type Book struct {
	Title    string
	Author   string
	Chapters []Chapter
}

// Chapter is one non-empty (X)HTML document of a book.
type Chapter struct {
	Title   string
	Path    string
	Content string
}

// Text joins the chapter contents with blank lines.
func (b *Book) Text() string {
	parts := make([]string, len(b.Chapters))
	for i, ch := range b.Chapters {
		parts[i] = ch.Content
	}
	return strings.Join(parts, "\n\n")
}

// opfPackage picks the Dublin Core title and creator out of an OPF file.
// encoding/xml matches local names, so the dc: prefix does not matter.
type opfPackage struct {
	Titles   []string `xml:"metadata>title"`
	Creators []string `xml:"metadata>creator"`
}

// LoadEPUB reads the chapters of an EPUB in archive order. Chapters with
// no text are skipped.
func LoadEPUB(p string) (*Book, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, &LoadError{Path: p, Message: "failed to read EPUB zip archive", Cause: err}
	}
	defer zr.Close()

	book := &Book{}

	for _, f := range zr.File {
		lower := strings.ToLower(f.Name)

		switch {
		case strings.HasSuffix(lower, ".opf"):
			raw, err := readZipEntry(f)
			if err != nil {
				return nil, &LoadError{Path: p, Message: "failed to read OPF entry " + f.Name, Cause: err}
			}
			var pkg opfPackage
			if xml.Unmarshal(raw, &pkg) == nil {
				if book.Title == "" && len(pkg.Titles) > 0 {
					book.Title = strings.TrimSpace(pkg.Titles[0])
				}
				if book.Author == "" && len(pkg.Creators) > 0 {
					book.Author = strings.TrimSpace(pkg.Creators[0])
				}
			}

		case strings.HasSuffix(lower, ".xhtml"), strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
			raw, err := readZipEntry(f)
			if err != nil {
				return nil, &LoadError{Path: p, Message: "failed to read chapter entry " + f.Name, Cause: err}
			}
			content := toValidUTF8(raw)
			text := ExtractHTMLText(content)
			if text == "" {
				continue
			}
			title := htmlTitle(content)
			if title == "" {
				title = chapterTitleFromPath(f.Name)
			}
			book.Chapters = append(book.Chapters, Chapter{Title: title, Path: f.Name, Content: text})
		}
	}

	if book.Title == "" {
		book.Title = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	return book, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, MaxFileSize))
}

func chapterTitleFromPath(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	if strings.TrimSpace(base) == "" {
		return "Untitled Chapter"
	}
	return base
}
