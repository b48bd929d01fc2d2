package file

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix marks environment overrides: LOREKEEPER_LLM_API_KEY shadows
// llm.api_key without being written to disk.
const EnvPrefix = "LOREKEEPER_"

// ConfigStore keeps settings in config.toml. Keys are flattened in memory
// and written back as tables, so the file stays pleasant to edit by hand:
//
//	[pipeline]
//	chunk_size = 2000
type ConfigStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
	env    func(string) (string, bool)
}

// NewConfigStore opens dir/config.toml, creating dir if needed. An empty dir
// means ~/.lorekeeper.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, ".lorekeeper")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		path:   filepath.Join(dir, "config.toml"),
		values: map[string]any{},
		env:    os.LookupEnv,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Get prefers a non-empty environment override to the file.
func (s *ConfigStore) Get(key string) (any, bool) {
	if v, ok := s.env(EnvName(key)); ok && v != "" {
		return v, true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Update applies values and rewrites the file. On failure nothing changes.
func (s *ConfigStore) Update(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.values)
	for k, v := range values {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// Load rereads the file. A missing file is an empty configuration.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		data, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.values = flatten(tree, "", map[string]any{})
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) Path() string { return s.path }

// write replaces the file atomically so a crash never leaves half a config.
func (s *ConfigStore) write(values map[string]any) error {
	tree, err := nest(values)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// flatten turns {"a": {"b": 1}} into {"a.b": 1}.
func flatten(tree map[string]any, prefix string, out map[string]any) map[string]any {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(sub, k, out)
			continue
		}
		out[k] = v
	}
	return out
}

// nest is the inverse of flatten. A key cannot be both a value and a table.
func nest(flat map[string]any) (map[string]any, error) {
	root := map[string]any{}
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			switch child := node[p].(type) {
			case nil:
				next := map[string]any{}
				node[p] = next
				node = next
			case map[string]any:
				node = child
			default:
				return nil, fmt.Errorf("config key %q conflicts with the value at %q", key, p)
			}
		}
		leaf := parts[len(parts)-1]
		if _, table := node[leaf].(map[string]any); table {
			return nil, fmt.Errorf("config key %q conflicts with a table", key)
		}
		node[leaf] = v
	}
	return root, nil
}
