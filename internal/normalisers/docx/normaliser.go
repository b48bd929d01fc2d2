// Package docx normalises Word manuscripts. A .docx file is a zip archive;
// the prose lives in word/document.xml and the title in docProps/core.xml.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/normalisers/plaintext"
)

const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var _ driven.Normaliser = Normaliser{}

type Normaliser struct{}

func New() Normaliser { return Normaliser{} }

func (Normaliser) SupportedMIMETypes() []string { return []string{MIMEType} }

func (Normaliser) Priority() int { return 50 }

// Normalise separates Word paragraphs with blank lines, the same breaks the
// chunker sees in Markdown. An archive without a body yields empty content.
func (Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a docx archive", domain.ErrInvalidInput, raw.URI)
	}

	content, err := paragraphs(archive)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, raw.URI, err)
	}

	title := coreTitle(archive)
	if title == "" {
		title = plaintext.TitleFromURI(raw.URI)
	}

	return &driven.NormaliseResult{Document: domain.Document{
		ProjectID: raw.ProjectID,
		URI:       raw.URI,
		Title:     title,
		Content:   content,
	}}, nil
}

// paragraphs streams word/document.xml. Tabs become spaces and manual line
// breaks stay line breaks.
func paragraphs(archive fs.FS) (string, error) {
	data, err := fs.ReadFile(archive, "word/document.xml")
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var (
		out  []string
		para strings.Builder
		inT  bool
	)
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("word/document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inT = true
			case "tab":
				para.WriteByte(' ')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inT = false
			case "p":
				if text := strings.TrimSpace(para.String()); text != "" {
					out = append(out, text)
				}
				para.Reset()
			}
		case xml.CharData:
			if inT {
				para.Write(el)
			}
		}
	}
	return strings.Join(out, "\n\n"), nil
}

// coreTitle returns the dc:title property, or "" when there is none.
func coreTitle(archive fs.FS) string {
	data, err := fs.ReadFile(archive, "docProps/core.xml")
	if err != nil {
		return ""
	}
	var props struct {
		Title string `xml:"title"`
	}
	if xml.Unmarshal(data, &props) != nil {
		return ""
	}
	return strings.TrimSpace(props.Title)
}
