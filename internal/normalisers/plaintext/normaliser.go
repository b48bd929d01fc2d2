// Package plaintext is the catch-all normaliser. It also provides the text
// cleanup and file-name titles the format-specific normalisers build on.
package plaintext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var _ driven.Normaliser = Normaliser{}

type Normaliser struct{}

func New() Normaliser { return Normaliser{} }

func (Normaliser) SupportedMIMETypes() []string { return []string{"text/plain"} }

// Priority is low so that any format-specific normaliser wins.
func (Normaliser) Priority() int { return 5 }

// Normalise leaves the prose as written apart from CleanText.
func (Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	return &driven.NormaliseResult{Document: domain.Document{
		ProjectID: raw.ProjectID,
		URI:       raw.URI,
		Title:     TitleFromURI(raw.URI),
		Content:   CleanText(string(raw.Content)),
	}}, nil
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// CleanText drops a byte order mark and converts CRLF and CR to LF.
func CleanText(s string) string {
	return lineEndings.Replace(strings.TrimPrefix(s, "\ufeff"))
}

var wordSeparators = strings.NewReplacer("_", " ", "-", " ")

// TitleFromURI turns "/book/chapter_01-the-storm.txt" into "chapter 01 the storm".
func TitleFromURI(uri string) string {
	name := filepath.Base(uri)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSpace(wordSeparators.Replace(name))
}
