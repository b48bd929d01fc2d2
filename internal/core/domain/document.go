package domain

import (
	"strings"
	"time"
)

// Document is a chapter, scene or note in a project. The editor owns
// documents; the pipeline never writes them.
type Document struct {
	ID        string
	ProjectID string
	Title     string
	// URI is where the text was imported from, if anywhere.
	URI string
	// Content may still carry markup until a normaliser has run.
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEligible is false for documents that are blank after trimming.
func (d Document) IsEligible() bool {
	return strings.TrimSpace(d.Content) != ""
}

// Chunk is the unit of text sent for extraction. Index is its position
// within the document.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
}
