package driven

import (
	"context"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// ManuscriptSource lists and watches the manuscript directory. Watch emits
// until ctx is done; Close stops any watcher still running.
type ManuscriptSource interface {
	Scan(ctx context.Context) ([]domain.RawDocument, error)
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)
	Close() error
}
