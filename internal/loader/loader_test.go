package loader

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

func Test_Detect_ByContentType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ct, name string
		want     Format
	}{
		{"application/pdf", "x.bin", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "x", FormatDOCX},
		{"text/plain; charset=utf-8", "notes", FormatText},
		{"text/markdown", "readme", FormatMarkdown},
	}
	for _, c := range cases {
		got, err := Detect(c.ct, c.name)
		if err != nil {
			t.Errorf("Detect(%q): %v", c.ct, err)
			continue
		}
		if got != c.want {
			t.Errorf("Detect(%q): want %s, got %s", c.ct, c.want, got)
		}
	}
}

func Test_Detect_FallsBackToExtension(t *testing.T) {
	t.Parallel()

	got, err := Detect("application/octet-stream", "hist.MD")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got != FormatMarkdown {
		t.Errorf("want markdown, got %s", got)
	}
}

func Test_Detect_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := Detect("image/png", "photo.png")
	if !core.IsCode(err, core.CodeUnsupportedFormat) {
		t.Errorf("want UnsupportedFormat, got %v", err)
	}
}

func Test_Load_EmptyFile(t *testing.T) {
	t.Parallel()

	_, err := Load(nil, "text/plain", "empty.txt")
	if !core.IsCode(err, core.CodeEmptyContent) {
		t.Errorf("want EmptyContent, got %v", err)
	}
}

func Test_Load_WhitespaceOnlyFile(t *testing.T) {
	t.Parallel()

	_, err := Load([]byte("  \n\n\t  "), "text/plain", "blank.txt")
	if !core.IsCode(err, core.CodeEmptyContent) {
		t.Errorf("want EmptyContent, got %v", err)
	}
}

func Test_Load_PlainText(t *testing.T) {
	t.Parallel()

	got, err := Load([]byte("Hello   world.\r\n"), "text/plain", "a.txt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "Hello world." {
		t.Errorf("got %q", got)
	}
}

func Test_Load_CorruptPDFIsLoaderFailure(t *testing.T) {
	t.Parallel()

	_, err := Load([]byte("definitely not a pdf"), "application/pdf", "bad.pdf")
	if !core.IsCode(err, core.CodeLoaderFailure) {
		t.Errorf("want LoaderFailure, got %v", err)
	}
}

// buildDocx assembles a minimal .docx archive holding the given
// WordprocessingML body paragraphs.
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(body.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func Test_Load_DocxParagraphs(t *testing.T) {
	t.Parallel()

	data := buildDocx(t, "First paragraph.", "Second paragraph.")
	got, err := Load(data, "", "lesson.docx")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := "First paragraph.\n\nSecond paragraph."
	if got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func Test_Load_DocxMissingDocumentXML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("word/other.xml")
	f.Write([]byte("<x/>"))
	zw.Close()

	_, err := Load(buf.Bytes(), "", "broken.docx")
	if !core.IsCode(err, core.CodeLoaderFailure) {
		t.Errorf("want LoaderFailure, got %v", err)
	}
}

func Test_Normalize_Rules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, want string
	}{
		{"horizontal runs", "a  \t b", "a b"},
		{"triple newlines", "a\n\n\n\nb", "a\n\nb"},
		{"form feed", "a\fb", "a b"},
		{"carriage returns", "a\r\nb", "a\nb"},
		{"curly quotes", "“hi” ‘there’", `"hi" 'there'`},
		{"standalone digit line", "intro\n42\noutro", "intro\n\noutro"},
		{"page header line", "intro\nPage 3 of 9\noutro", "intro\n\noutro"},
		{"trim", "  body  ", "body"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("%s: want %q, got %q", c.name, c.want, got)
		}
	}
}
