// Package reader extracts plain text from source documents.
//
// Each supported format is a capability-tagged variant resolved once per file
// by extension lookup. Read never fails: unsupported, missing, or corrupt
// files yield an empty string and the caller skips them.
package reader

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies the extraction capability for a file.
type Format int

const (
	FormatUnsupported Format = iota
	FormatPDF
	FormatDOCX
	FormatHTML
	FormatText
)

// String returns the format name for logging.
func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatHTML:
		return "html"
	case FormatText:
		return "text"
	default:
		return "unsupported"
	}
}

// FormatFor resolves a file's format from its extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".html", ".htm":
		return FormatHTML
	case ".txt", ".md":
		return FormatText
	default:
		return FormatUnsupported
	}
}

// IsSupported reports whether path is a regular file in a supported format.
func IsSupported(path string) bool {
	if FormatFor(path) == FormatUnsupported {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Read extracts the plain text of the file at path. It returns an empty
// string for unsupported formats and for any extraction failure; it never
// returns an error or panics, so one bad file cannot break a corpus run.
func Read(path string) string {
	format := FormatFor(path)
	if format == FormatUnsupported {
		return ""
	}

	text, err := extract(path, format)
	if err != nil {
		slog.Warn("read_failed",
			slog.String("path", path),
			slog.String("format", format.String()),
			slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(text)
}

// extract dispatches to the per-format extractor, converting panics from
// parser libraries on corrupt input into errors.
func extract(path string, format Format) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &extractPanic{value: r}
		}
	}()

	switch format {
	case FormatPDF:
		return extractPDF(path)
	case FormatDOCX:
		return extractDOCX(path)
	case FormatHTML:
		return extractHTML(path)
	case FormatText:
		return extractText(path)
	default:
		return "", nil
	}
}

type extractPanic struct {
	value any
}

func (e *extractPanic) Error() string {
	return "extractor panic on corrupt input"
}
