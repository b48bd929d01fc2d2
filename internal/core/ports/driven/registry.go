package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// NormaliserRegistry routes a raw file to the highest-priority normaliser
// that accepts its MIME type.
type NormaliserRegistry interface {
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
	Register(n Normaliser)
	// SupportedMIMETypes is sorted and free of duplicates.
	SupportedMIMETypes() []string
}
