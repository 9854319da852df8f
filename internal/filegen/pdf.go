package filegen

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// numberedItem matches a numbered list line ("1. text").
var numberedItem = regexp.MustCompile(`^\d+[.)]\s+`)

// RenderPDF materializes a PDF artifact from the model's markdown-ish
// output: a cover line, a metadata line, then headings, lists, and
// paragraphs with inline bold. Quiz artifacts get a dedicated page break
// before the answer key section. Returns the bytes and the page count.
func RenderPDF(file *core.GeneratedFile, projectName string, content string) ([]byte, int, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(file.DisplayName), false)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	// Cover line.
	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(0, 11, tr(file.DisplayName), "", "C", false)

	// Metadata line: project, type label, generation date.
	label := TypeLabels[file.Type]
	if label == "" {
		label = string(file.Type)
	}
	meta := fmt.Sprintf("%s • %s • Gerado em %s", projectName, label, time.Now().Format("02/01/2006"))
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 6, tr(meta), "", "C", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	isQuiz := file.Type == core.FileTypeQuiz
	for _, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimRight(rawLine, " \t")
		switch {
		case strings.TrimSpace(line) == "":
			pdf.Ln(3)

		case strings.HasPrefix(line, "### "):
			heading := strings.TrimPrefix(line, "### ")
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 6, tr(stripBold(heading)), "", "", false)

		case strings.HasPrefix(line, "## "):
			heading := strings.TrimPrefix(line, "## ")
			if isQuiz && isAnswerKeyHeading(heading) {
				pdf.AddPage()
			}
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 7, tr(stripBold(heading)), "", "", false)

		case strings.HasPrefix(line, "# "):
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 17)
			pdf.MultiCell(0, 8, tr(stripBold(strings.TrimPrefix(line, "# "))), "", "", false)

		case strings.HasPrefix(strings.TrimSpace(line), "- "), strings.HasPrefix(strings.TrimSpace(line), "* "):
			item := strings.TrimSpace(line)[2:]
			pdf.SetX(pdf.GetX() + 4)
			writeRich(pdf, tr, "• "+item, 11)

		case numberedItem.MatchString(strings.TrimSpace(line)):
			pdf.SetX(pdf.GetX() + 4)
			writeRich(pdf, tr, strings.TrimSpace(line), 11)

		default:
			writeRich(pdf, tr, line, 11)
		}
	}

	pageCount := pdf.PageCount()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("filegen: render pdf: %w", err)
	}
	return buf.Bytes(), pageCount, nil
}

// writeRich renders one line with inline bold (`**…**`) segments and ends
// the line.
func writeRich(pdf *fpdf.Fpdf, tr func(string) string, line string, size float64) {
	segments := strings.Split(line, "**")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		style := ""
		if i%2 == 1 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, size)
		pdf.Write(5.5, tr(seg))
	}
	pdf.Ln(5.5)
}

// stripBold removes inline bold markers from heading text.
func stripBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// isAnswerKeyHeading recognizes the quiz answer key section in either
// language variant.
func isAnswerKeyHeading(heading string) bool {
	lower := strings.ToLower(heading)
	return strings.Contains(lower, "gabarito") || strings.Contains(lower, "answer key")
}
