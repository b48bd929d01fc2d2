package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults
var defaults embed.FS

// placeholders is how many %s verbs each known prompt takes.
var placeholders = map[string]int{
	driven.PromptExtraction:      3,
	driven.PromptMergeEvaluation: 3,
	driven.PromptEnhancement:     1,
}

// PromptStore serves prompts from user-editable files in dir. The directory
// is seeded with the built-in prompts on first use; a file that is missing,
// blank or has the wrong placeholders yields the built-in prompt instead.
type PromptStore struct {
	dir  string
	seed sync.Once

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore touches nothing on disk until the first Load. An empty dir
// means ~/.lorekeeper/prompts.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, ".lorekeeper", "prompts")
	}
	return &PromptStore{dir: dir, cache: map[string]string{}}, nil
}

func (s *PromptStore) Dir() string { return s.dir }

// DefaultPrompt returns the built-in prompt called name.
func DefaultPrompt(name string) (string, bool) {
	data, err := defaults.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (s *PromptStore) Load(name string) (string, error) {
	s.seed.Do(s.seedDir)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.read(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.cache[name] = prompt
	s.mu.Unlock()
	return prompt, nil
}

func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *PromptStore) read(name string) (string, error) {
	builtin, known := DefaultPrompt(name)

	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("loading prompt %q: %w", name, err)
	}

	prompt := strings.TrimSpace(string(data))
	switch {
	case prompt == "" && known:
		return builtin, nil
	case prompt == "":
		return "", fmt.Errorf("loading prompt %q: file is empty", name)
	}
	if want, ok := placeholders[name]; ok && verbs(prompt) != want {
		logger.Warn("prompt %s.txt needs %d %%s placeholders, using the built-in prompt", name, want)
		return builtin, nil
	}
	return prompt, nil
}

// verbs counts %s, ignoring escaped %%.
func verbs(prompt string) int {
	return strings.Count(strings.ReplaceAll(prompt, "%%", ""), "%s")
}

// seedDir writes every built-in file the user does not already have. Failure
// is logged; Load still serves built-in prompts.
func (s *PromptStore) seedDir() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		logger.Warn("creating prompt directory: %v", err)
		return
	}
	err := fs.WalkDir(defaults, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := defaults.ReadFile(path)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(s.dir, d.Name()), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = f.Write(data)
		return errors.Join(err, f.Close())
	})
	if err != nil {
		logger.Warn("seeding prompts in %s: %v", s.dir, err)
	}
}
