package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()
	assert.Contains(t, mimeTypes, "text/html")
	assert.Contains(t, mimeTypes, "application/xhtml+xml")
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		ProjectID: "novel",
		URI:       "/books/ch1.html",
		MIMEType:  "text/html",
		Content: []byte("<html><head><title>The Storm</title><style>p{}</style></head><body>" +
			"<p>Mara ran\nto the harbour.</p><p>Ivo&nbsp;followed &amp; waited.</p></body></html>"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "novel", doc.ProjectID)
	assert.Equal(t, "The Storm", doc.Title)
	assert.Equal(t, "Mara ran to the harbour.\n\nIvo followed & waited.", doc.Content)
}

func TestNormalise_TitleFallbacks(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "/books/ch2.html",
		Content: []byte("<h1>Chapter <em>Two</em></h1><p>Text</p>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Chapter Two", result.Document.Title)

	result, err = New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "/books/the-end.html",
		Content: []byte("<p>Text</p>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "the end", result.Document.Title)
}

func TestNormalise_ByteOrderMark(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "ch3.html",
		Content: []byte("\ufeff<p>Dawn.</p>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dawn.", result.Document.Content)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"line breaks", "one<br>two<br/>three", "one\ntwo\nthree"},
		{"scripts removed", "<script>alert(1)</script>text", "text"},
		{"comments removed", "a<!-- x -->b", "ab"},
		{"scene break", "<p>One.</p><hr><p>Two.</p>", "One.\n\nTwo."},
		{"empty", "", ""},
		{"inline markup keeps spacing", "<p>Mara <em>ran</em>.</p>", "Mara ran."},
		{"double break", "a<br><br><br>b", "a\n\nb"},
		{"list items", "<ul>\n<li>one</li>\n<li>two</li>\n</ul>", "one\n\ntwo"},
		{"svg dropped", "<p>x<svg><text>label</text></svg>y</p>", "xy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.input))
		})
	}
}
