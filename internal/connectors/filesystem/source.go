package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.ManuscriptSource = (*Source)(nil)

// mimeTypes maps supported extensions to MIME types.
var mimeTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Source reads manuscript files under a root directory.
type Source struct {
	projectID string
	root      string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New creates a source for projectID rooted at root.
// Relative roots are made absolute so every URI is stable.
func New(projectID, root string) *Source {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Source{projectID: projectID, root: root}
}

// Root returns the directory being read.
func (s *Source) Root() string {
	return s.root
}

// Validate checks the root exists and is a directory.
func (s *Source) Validate() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("manuscript directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, s.root)
	}
	return nil
}

// Scan returns every supported file under the root, sorted by path.
func (s *Source) Scan(ctx context.Context) ([]domain.RawDocument, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var docs []domain.RawDocument
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != s.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		mime := detectMIMEType(path)
		if mime == "" {
			return nil
		}
		doc, err := s.read(path, mime)
		if err != nil {
			return err
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.root, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs, nil
}

// Watch emits file changes until ctx is done. Subdirectories created
// after the watch starts are watched too.
func (s *Source) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := s.addTree(watcher, s.root); err != nil {
		watcher.Close()
		return nil, err
	}

	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		watcher.Close()
		return nil, errors.New("already watching")
	}
	s.watcher = watcher
	s.mu.Unlock()

	changes := make(chan domain.RawDocumentChange, 16)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) && !isHidden(filepath.Base(event.Name)) {
					if err := s.addTree(watcher, event.Name); err != nil {
						logger.Warn("watching %s: %v", event.Name, err)
					}
					continue
				}
				change := s.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("manuscript watcher: %v", err)
			}
		}
	}()

	return changes, nil
}

// Close stops any active watch.
func (s *Source) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	s.wg.Wait()
	return err
}

// handleFsEvent converts an fsnotify event into a change, or nil when the
// event is not about a supported file.
func (s *Source) handleFsEvent(event fsnotify.Event) *domain.RawDocumentChange {
	path := event.Name
	if s.hiddenPath(path) {
		return nil
	}
	mime := detectMIMEType(path)
	if mime == "" {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.RawDocumentChange{
			Kind:     domain.FileDeleted,
			Document: domain.RawDocument{ProjectID: s.projectID, URI: path, MIMEType: mime},
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if isDir(path) {
			return nil
		}
		doc, err := s.read(path, mime)
		if err != nil {
			logger.Debug("skipping %s: %v", path, err)
			return nil
		}
		kind := domain.FileUpdated
		if event.Has(fsnotify.Create) {
			kind = domain.FileCreated
		}
		return &domain.RawDocumentChange{Kind: kind, Document: *doc}
	default:
		return nil
	}
}

func (s *Source) read(path, mime string) (*domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &domain.RawDocument{
		ProjectID: s.projectID,
		URI:       abs,
		MIMEType:  mime,
		Content:   content,
	}, nil
}

func (s *Source) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// hiddenPath reports whether any element of path below the root is hidden.
func (s *Source) hiddenPath(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return isHidden(filepath.Base(path))
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if isHidden(part) {
			return true
		}
	}
	return false
}

// detectMIMEType returns the MIME type for a supported file, or "".
func detectMIMEType(path string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(path))]
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
