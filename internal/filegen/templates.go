package filegen

import (
	"strings"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// TypeLabels are the Portuguese display labels per artifact type, used on
// PDF covers and metadata.
var TypeLabels = map[core.FileType]string{
	core.FileTypeStudyGuide: "Guia de Estudos",
	core.FileTypeQuiz:       "Quiz",
	core.FileTypeSummary:    "Resumo",
	core.FileTypeLessonPlan: "Plano de Aula",
	core.FileTypeCustom:     "Material Personalizado",
}

// templateData carries the placeholder values for a generation prompt.
type templateData struct {
	// Prompt is the user's generation request.
	Prompt string
	// Context is the retrieved document context block (may be empty).
	Context string
	// ProjectName is the owning project's display name.
	ProjectName string
	// Subject is the project's academic subject.
	Subject string
	// BaseContent is the previous version's content for edits (empty for
	// fresh generations).
	BaseContent string
}

// sharedHeader opens every generation prompt.
const sharedHeader = `Você é um assistente educacional que produz materiais didáticos em português ` +
	`para o projeto "{projectName}" (disciplina: {subject}). ` +
	`Responda somente com o conteúdo do material, em Markdown.`

// contextBlock is appended when retrieved context exists.
const contextBlock = "\n\nUse como referência os trechos dos materiais do professor:\n{context}"

// freshTemplates are the per-type generation skeletons.
var freshTemplates = map[core.FileType]string{
	core.FileTypeStudyGuide: sharedHeader + `

Crie um guia de estudos completo sobre: {prompt}

Estruture com títulos (##), listas e destaques em negrito para os conceitos
principais. Inclua uma seção final "## Pontos-Chave".`,

	core.FileTypeQuiz: sharedHeader + `

Crie um quiz sobre: {prompt}

Siga EXATAMENTE esta estrutura Markdown:

## Instructions
(instruções para o aluno)

## Questions

### Question 1
(enunciado)
A. (alternativa)
B. (alternativa)
C. (alternativa)
D. (alternativa)

(repita "### Question N" para cada questão)

## Gabarito (Answer Key)
1. (letra correta)
2. (letra correta)`,

	core.FileTypeSummary: sharedHeader + `

Escreva um resumo detalhado sobre: {prompt}

Organize por tópicos com títulos (##) e parágrafos curtos.`,

	core.FileTypeLessonPlan: sharedHeader + `

Monte um plano de aula sobre: {prompt}

Inclua as seções "## Objetivos", "## Conteúdo", "## Metodologia",
"## Recursos" e "## Avaliação".`,

	core.FileTypeCustom: sharedHeader + `

{prompt}`,
}

// editTemplate wraps a genuine edit: the base content is rewritten per the
// edit request instead of generating from scratch.
const editTemplate = sharedHeader + `

Edite o material abaixo conforme esta solicitação: {prompt}

Material atual:
---
{baseContent}
---

Devolva o material completo já editado, mantendo a estrutura Markdown.`

// BuildPrompt renders the generation prompt for the given type. When
// data.BaseContent is non-empty the edit template is used; otherwise the
// type's fresh-generation template.
func BuildPrompt(fileType core.FileType, data templateData) string {
	tpl := freshTemplates[fileType]
	if tpl == "" {
		tpl = freshTemplates[core.FileTypeCustom]
	}
	if data.BaseContent != "" {
		tpl = editTemplate
	}

	out := tpl
	if data.Context != "" {
		out += contextBlock
	}

	replacer := strings.NewReplacer(
		"{prompt}", data.Prompt,
		"{context}", data.Context,
		"{projectName}", data.ProjectName,
		"{subject}", data.Subject,
		"{baseContent}", data.BaseContent,
	)
	return replacer.Replace(out)
}
