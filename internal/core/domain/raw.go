package domain

// RawDocument is a manuscript file read from disk, before markup is stripped.
type RawDocument struct {
	// ProjectID is the project the file is imported into.
	ProjectID string

	// URI is the absolute file path.
	URI string

	// MIMEType is the content type derived from the extension
	// (text/plain, text/markdown, text/html or the docx type).
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// FileEventKind is what happened to a watched manuscript file.
type FileEventKind int

const (
	// FileCreated indicates a new file.
	FileCreated FileEventKind = iota

	// FileUpdated indicates a modified file.
	FileUpdated

	// FileDeleted indicates a removed file.
	FileDeleted
)

// String returns the string representation.
func (k FileEventKind) String() string {
	switch k {
	case FileCreated:
		return "created"
	case FileUpdated:
		return "updated"
	case FileDeleted:
		return "deleted"
	default:
		return unknownDescription
	}
}

// RawDocumentChange is a change event from the manuscript watcher.
type RawDocumentChange struct {
	// Kind is the kind of change.
	Kind FileEventKind

	// Document is the affected file. Content is empty for deletions.
	Document RawDocument
}
