package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/feichai0017/document-chat/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractCSV(t *testing.T) {
	path := writeFile(t, "data.csv", "a,b\n1,2\n")

	text, err := NewProcessor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "   a  b\n0  1  2", text)

	// header precedes the data row, columns stay in order
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 2)
	assert.Less(t, strings.Index(lines[0], "a"), strings.Index(lines[0], "b"))
	assert.Contains(t, lines[1], "1")
}

func TestExtractCSVAlignsColumns(t *testing.T) {
	path := writeFile(t, "data.csv", "name,qty\nwidget,12\nnut,3\n")

	text, err := NewProcessor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"     name  qty",
		"0  widget   12",
		"1     nut    3",
	}, "\n"), text)
}

func TestExtractCSVRaggedRows(t *testing.T) {
	path := writeFile(t, "data.csv", "a,b\n1\n2,3,4\n")

	text, err := NewProcessor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "NaN")
	assert.Contains(t, text, "Unnamed: 2")
}

func TestExtractXLSXFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"a", "b"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{1, 2}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"ignored"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	text, err := NewProcessor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "   a  b\n0  1  2", text)
	assert.NotContains(t, text, "ignored")
}

func TestRenderEdgeCases(t *testing.T) {
	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "Empty DataFrame\nColumns: [a, b]\nIndex: []", Render([][]string{{"a", "b"}}))
}

func TestExtractCSVMalformed(t *testing.T) {
	path := writeFile(t, "data.csv", "a,b\n\"1,2\n")

	_, err := NewProcessor().Extract(context.Background(), path)
	require.Error(t, err)
}

func TestCanProcess(t *testing.T) {
	p := NewProcessor()
	assert.True(t, p.CanProcess(models.FormatCSV))
	assert.True(t, p.CanProcess(models.FormatXLSX))
	assert.False(t, p.CanProcess(models.FormatJSON))
}
