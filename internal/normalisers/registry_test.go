package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// stubNormaliser implements driven.Normaliser for testing.
type stubNormaliser struct {
	priority int
	title    string
}

var _ driven.Normaliser = (*stubNormaliser)(nil)

func (s *stubNormaliser) SupportedMIMETypes() []string { return []string{"text/plain"} }
func (s *stubNormaliser) Priority() int                { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, _ *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Document: domain.Document{Title: s.title}}, nil
}

func TestDefaults_Dispatch(t *testing.T) {
	r := Defaults()

	tests := []struct {
		mime    string
		content string
		want    string
	}{
		{"text/markdown", "**bold**", "bold"},
		{"text/html", "<p>para</p>", "para"},
		{"text/plain", "**as is**", "**as is**"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			res, err := r.Normalise(context.Background(), &domain.RawDocument{
				URI: "/x/file", MIMEType: tt.mime, Content: []byte(tt.content),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Document.Content)
		})
	}
}

func TestRegistry_PriorityWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{priority: 1, title: "low"})
	r.Register(&stubNormaliser{priority: 90, title: "high"})

	res, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "high", res.Document.Title)
}

func TestRegistry_Unsupported(t *testing.T) {
	_, err := Defaults().Normalise(context.Background(), &domain.RawDocument{MIMEType: "application/pdf"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Defaults().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_SupportedMIMETypes(t *testing.T) {
	assert.Equal(t,
		[]string{
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/xhtml+xml", "text/html", "text/markdown", "text/plain", "text/x-markdown"},
		Defaults().SupportedMIMETypes())
}
