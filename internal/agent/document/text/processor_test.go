package text

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-chat/internal/models"
)

func TestExtractReturnsContentUnchanged(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"crlf":     "line one\r\nline two\r\n",
		"unicode":  "Grüße, 世界! ✓",
		"trailing": "  padded text  \n\n",
	}
	p := NewProcessor()

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "doc.txt")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			got, err := p.Extract(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, content, got)
		})
	}
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte{'o', 'k', 0xff, 0xfe}, 0o600))

	_, err := NewProcessor().Extract(context.Background(), path)
	assert.ErrorIs(t, err, models.ErrDecode)
}

func TestCanProcess(t *testing.T) {
	p := NewProcessor()
	assert.True(t, p.CanProcess(models.FormatText))
	assert.False(t, p.CanProcess(models.FormatPDF))
}
