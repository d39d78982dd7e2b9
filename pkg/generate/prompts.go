package generate

import (
	"fmt"
	"strings"

	"github.com/lisan-ai/lisan/pkg/models"
)

var formalityPrompts = map[string]string{
	models.FormalityFormal:   "Translate to formal Arabic (provide ONLY the Arabic translation):",
	models.FormalityNeutral:  "Translate to Arabic (provide ONLY the Arabic translation):",
	models.FormalityInformal: "Translate to informal Arabic (provide ONLY the Arabic translation):",
}

var stylePrompts = map[string]string{
	models.StyleFormal: `I will now provide a formal academic summary:
- Use precise, objective language
- Preserve the key arguments and findings
- Avoid colloquialisms and personal opinion`,
	models.StyleInformal: `I will now provide a conversational summary:
- Use plain, friendly language
- Focus on what matters to an everyday reader
- Keep sentences short`,
	models.StyleTechnical: `I will now provide a technical summary:
- Keep domain terminology, figures and units intact
- Highlight methods, mechanisms and constraints
- Omit narrative and background filler`,
	models.StyleExecutive: `I will now provide an executive summary:
- Lead with the conclusion and its impact
- State decisions, risks and next steps
- Keep it brief and actionable`,
	models.StyleCreative: `I will now provide a creative narrative summary:
- Retell the content as a short engaging story
- Keep every essential fact accurate
- Use vivid but clear language`,
}

func translationPrompt(text, formality string) string {
	directive, ok := formalityPrompts[formality]
	if !ok {
		directive = formalityPrompts[models.FormalityNeutral]
	}
	return fmt.Sprintf(`%s

%s

Reply with ONLY the Arabic translation, no explanations or transliterations.`, directive, text)
}

func summaryPrompt(text, style string, maxLength int, bullets bool) string {
	guide, ok := stylePrompts[style]
	if !ok {
		guide = stylePrompts[models.StyleFormal]
	}

	var b strings.Builder
	b.WriteString("Based on the following style guide:\n")
	b.WriteString(guide)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Limit the summary to approximately %d characters.\n", maxLength)
	if bullets {
		b.WriteString("Use bullet points for main ideas.\n")
	}
	b.WriteString("\nText to summarize:\n")
	b.WriteString(text)
	b.WriteString("\n\nProvide a concise summary:")
	return b.String()
}
