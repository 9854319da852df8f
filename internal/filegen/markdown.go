package filegen

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// RenderMarkdown materializes a markdown artifact: a front-matter block
// describing the file followed by the generated content.
func RenderMarkdown(file *core.GeneratedFile, projectName string, version int, content string) []byte {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %s\n", file.DisplayName)
	fmt.Fprintf(&sb, "type: %s\n", file.Type)
	fmt.Fprintf(&sb, "project: %s\n", projectName)
	fmt.Fprintf(&sb, "generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "version: %d\n", version)
	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimSpace(content))
	sb.WriteString("\n")
	return []byte(sb.String())
}
