package chat

import (
	"strings"

	"github.com/feichai0017/document-chat/internal/models"
)

const DefaultSummaryLength = 300

// BuildContext folds an analyzed document into the text handed to the model.
// The layout section is present only for image-bearing documents and lists
// every label except models.OutsideLabel.
func BuildContext(a *Analysis, summaryLength int) string {
	var b strings.Builder
	if a.ImageBearing {
		b.WriteString("\n\nLayoutLM Entities:\n")
		b.WriteString(formatLabels(a.Labels))
	}
	b.WriteString("\n\nSummary:\n")
	b.WriteString(truncate(a.Extraction.Text, summaryLength))
	b.WriteString("...\nEntities: ")
	b.WriteString(formatEntities(a.Extraction.Entities))
	return b.String()
}

// BuildPrompt appends the question to the document context.
func BuildPrompt(context, question string) string {
	if context == "" {
		return "Question: " + question
	}
	return context + "\n\nQuestion: " + question
}

func truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func formatLabels(labels []models.StructuredLabel) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Label == models.OutsideLabel {
			continue
		}
		parts = append(parts, l.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatEntities(entities []models.Entity) string {
	parts := make([]string, len(entities))
	for i, e := range entities {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
