package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileEventKind_String(t *testing.T) {
	assert.Equal(t, "created", FileCreated.String())
	assert.Equal(t, "updated", FileUpdated.String())
	assert.Equal(t, "deleted", FileDeleted.String())
	assert.Equal(t, unknownDescription, FileEventKind(42).String())
}

func TestRawDocumentChange_Fields(t *testing.T) {
	change := RawDocumentChange{
		Kind: FileUpdated,
		Document: RawDocument{
			ProjectID: "novel",
			URI:       "/ms/ch01.md",
			MIMEType:  "text/markdown",
			Content:   []byte("# One"),
		},
	}

	assert.Equal(t, FileUpdated, change.Kind)
	assert.Equal(t, "text/markdown", change.Document.MIMEType)
	assert.Equal(t, []byte("# One"), change.Document.Content)
}
