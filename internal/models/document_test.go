package models

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFromFilename(t *testing.T) {
	cases := map[string]Format{
		"notes.txt":     FormatText,
		"SCAN.PDF":      FormatPDF,
		"data.csv":      FormatCSV,
		"book.xlsx":     FormatXLSX,
		"payload.json":  FormatJSON,
		"photo.jpg":     FormatJPEG,
		"photo.JPEG":    FormatJPEG,
		"diagram.png":   FormatPNG,
		"report.docx":   FormatUnknown,
		"archive.tar":   FormatUnknown,
		"no-extension":  FormatUnknown,
		"dir.pdf/x.gif": FormatUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, FormatFromFilename(name), name)
	}
}

func TestFormatPredicates(t *testing.T) {
	for _, f := range Formats() {
		assert.True(t, f.Supported(), f)
		assert.NotEmpty(t, f.MimeType(), f)
	}
	assert.False(t, FormatUnknown.Supported())
	assert.Equal(t, "unknown", FormatUnknown.String())

	assert.True(t, FormatPDF.IsImageBearing())
	assert.True(t, FormatJPEG.IsImageBearing())
	assert.True(t, FormatPNG.IsImageBearing())
	assert.False(t, FormatCSV.IsImageBearing())
	assert.False(t, FormatPDF.IsImage())
	assert.True(t, FormatXLSX.IsTabular())
}

func TestValueStrings(t *testing.T) {
	assert.Equal(t, "Acme Corp (ORG)", Entity{Text: "Acme Corp", Label: "ORG"}.String())
	assert.Equal(t, "Total:B-KEY", StructuredLabel{Token: "Total", Label: "B-KEY"}.String())
	assert.Equal(t, Box{1, 2, 11, 22}, BoxFromRect(image.Rect(1, 2, 11, 22)))

	var in *LayoutInput
	assert.Zero(t, in.Len())
}

func TestPublicMessage(t *testing.T) {
	unsupported := &PipelineError{Stage: "extract", Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, "a.docx")}
	assert.Equal(t, "unsupported file format", PublicMessage(unsupported))

	notReady := &PipelineError{Stage: "entities", Err: ErrModelNotReady}
	assert.Equal(t, "service is not ready", PublicMessage(notReady))

	internal := &PipelineError{Stage: "extract", Err: &ExtractionError{DocumentID: "d1", Format: FormatPDF, Err: errors.New("xref table at /tmp/x")}}
	msg := PublicMessage(internal)
	assert.Equal(t, "failed to process chat request", msg)
	assert.NotContains(t, msg, "/tmp")
}
