// Package loader extracts plain UTF-8 text from uploaded document buffers.
// A dispatcher selects the format-specific loader from the declared content
// type or the filename extension; every loader returns the same flattened,
// normalized text. Loaders never retain references to the input buffer and
// work fully in memory — no temporary files are written.
package loader

import (
	"path/filepath"
	"strings"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// contentTypes maps declared MIME types to formats.
var contentTypes = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"text/plain":      FormatText,
	"text/markdown":   FormatMarkdown,
	"text/x-markdown": FormatMarkdown,
}

// extensions maps filename extensions to formats.
var extensions = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// Detect resolves the document format from the declared content type,
// falling back to the filename extension. Returns an UnsupportedFormat
// error when neither matches.
func Detect(contentType, filename string) (Format, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if f, ok := contentTypes[ct]; ok {
		return f, nil
	}
	if f, ok := extensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return f, nil
	}
	return "", core.E(core.CodeUnsupportedFormat,
		"no loader for content type %q (file %q)", contentType, filename)
}

// Load extracts the flattened text of a document buffer. It fails fast with
// UnsupportedFormat for unknown types, EmptyContent for files that extract
// to no usable text, and LoaderFailure for extraction errors.
func Load(data []byte, contentType, filename string) (string, error) {
	format, err := Detect(contentType, filename)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", core.E(core.CodeEmptyContent, "file %q is empty", filename)
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = loadPDF(data)
	case FormatDOCX:
		text, err = loadDOCX(data)
	case FormatText, FormatMarkdown:
		text = string(data)
	}
	if err != nil {
		return "", core.Wrap(err, core.CodeLoaderFailure, "extracting %q", filename)
	}

	text = Normalize(text)
	if text == "" {
		return "", core.E(core.CodeEmptyContent, "file %q extracted to no usable text", filename)
	}
	return text, nil
}
