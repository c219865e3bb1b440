package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/document-chat/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "Summary: foo\n\nQuestion: bar?", BuildPrompt("Summary: foo", "bar?"))
	assert.Equal(t, "Question: bar?", BuildPrompt("", "bar?"))
}

func TestBuildContext_TextDocument(t *testing.T) {
	a := &Analysis{Extraction: models.Extraction{
		Text:     "Alice flew to Paris.",
		Entities: []models.Entity{{Text: "alice", Label: "PERSON"}, {Text: "paris", Label: "GPE"}},
	}}

	assert.Equal(t,
		"\n\nSummary:\nAlice flew to Paris....\nEntities: [alice (PERSON), paris (GPE)]",
		BuildContext(a, DefaultSummaryLength),
	)
}

func TestBuildContext_LayoutSectionExcludesOutside(t *testing.T) {
	a := &Analysis{
		Extraction:   models.Extraction{Text: "INVOICE"},
		ImageBearing: true,
		Labels: []models.StructuredLabel{
			{Token: "INVOICE", Label: "B-HEADER"},
			{Token: "the", Label: models.OutsideLabel},
			{Token: "42", Label: "B-ANSWER"},
		},
	}

	assert.Equal(t,
		"\n\nLayoutLM Entities:\n[INVOICE:B-HEADER, 42:B-ANSWER]\n\nSummary:\nINVOICE...\nEntities: []",
		BuildContext(a, DefaultSummaryLength),
	)
}

func TestBuildContext_ImageWithNoWords(t *testing.T) {
	a := &Analysis{ImageBearing: true}
	assert.Equal(t, "\n\nLayoutLM Entities:\n[]\n\nSummary:\n...\nEntities: []", BuildContext(a, 300))
}

func TestBuildContext_TruncatesByRune(t *testing.T) {
	a := &Analysis{Extraction: models.Extraction{Text: strings.Repeat("é", 400)}}
	got := BuildContext(a, 300)

	want := "\n\nSummary:\n" + strings.Repeat("é", 300) + "...\nEntities: []"
	assert.Equal(t, want, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", -1))
}
