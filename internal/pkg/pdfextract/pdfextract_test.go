package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextRejectsEmptyInput(t *testing.T) {
	_, err := ExtractText(nil)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("quarter,revenue\nQ1,3.6\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoText)
}
