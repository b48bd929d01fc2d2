package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnv isolates a store from the real environment.
func noEnv(string) (string, bool) { return "", false }

func openStore(t *testing.T, dir string) *ConfigStore {
	t.Helper()
	s, err := NewConfigStore(dir)
	require.NoError(t, err)
	s.env = noEnv
	return s
}

func TestNewConfigStore_CreatesPrivateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "lorekeeper")
	s := openStore(t, dir)

	assert.Equal(t, filepath.Join(dir, "config.toml"), s.Path())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	_, ok := s.Get("llm.provider")
	assert.False(t, ok)
}

func TestNewConfigStore_Errors(t *testing.T) {
	_, err := NewConfigStore("/dev/null/cannot/create")
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not toml {{[["), 0o600))
	_, err = NewConfigStore(dir)
	assert.ErrorContains(t, err, "parsing")
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[llm]
provider = "ollama"
model = "llama3.2"

[pipeline]
chunk_size = 1500
low_confidence_threshold = 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))
	s := openStore(t, dir)

	v, ok := s.Get("llm.provider")
	require.True(t, ok)
	assert.Equal(t, "ollama", v)

	v, _ = s.Get("pipeline.chunk_size")
	assert.EqualValues(t, 1500, v)
	v, _ = s.Get("pipeline.low_confidence_threshold")
	assert.Equal(t, 0.5, v)
}

func TestConfigStore_UpdateWritesTablesOnce(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)

	require.NoError(t, s.Update(map[string]any{
		"llm.provider":        "anthropic",
		"llm.api_key":         "sk-ant",
		"pipeline.chunk_size": 1200,
	}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[llm]")
	assert.Contains(t, string(raw), "[pipeline]")

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	reopened := openStore(t, dir)
	v, _ := reopened.Get("llm.api_key")
	assert.Equal(t, "sk-ant", v)
	v, _ = reopened.Get("pipeline.chunk_size")
	assert.EqualValues(t, 1200, v)
}

func TestConfigStore_UpdateNilRemoves(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Update(map[string]any{"llm.api_key": "sk-old", "llm.model": "gpt-4o"}))

	require.NoError(t, s.Update(map[string]any{"llm.api_key": nil}))

	_, ok := s.Get("llm.api_key")
	assert.False(t, ok)
	require.NoError(t, s.Load())
	_, ok = s.Get("llm.api_key")
	assert.False(t, ok)
	_, ok = s.Get("llm.model")
	assert.True(t, ok)
}

func TestConfigStore_FailedUpdateChangesNothing(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Update(map[string]any{"pipeline": "flat"}))

	assert.Error(t, s.Update(map[string]any{"pipeline.chunk_size": 10}))
	_, ok := s.Get("pipeline.chunk_size")
	assert.False(t, ok)

	assert.Error(t, s.Update(map[string]any{"status.channel": make(chan int)}))
	_, ok = s.Get("status.channel")
	assert.False(t, ok)
}

func TestConfigStore_EnvOverride(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Update(map[string]any{"llm.api_key": "from-file"}))

	s.env = func(name string) (string, bool) {
		if name == "LOREKEEPER_LLM_API_KEY" {
			return "from-env", true
		}
		return "", false
	}
	v, _ := s.Get("llm.api_key")
	assert.Equal(t, "from-env", v)

	require.NoError(t, s.Load())
	v, _ = s.Get("llm.api_key")
	assert.Equal(t, "from-env", v, "overrides survive reloads")

	s.env = noEnv
	v, _ = s.Get("llm.api_key")
	assert.Equal(t, "from-file", v, "override is never persisted")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "LOREKEEPER_LLM_API_KEY", EnvName("llm.api_key"))
	assert.Equal(t, "LOREKEEPER_STATUS_REDIS_ADDR", EnvName("status.redis_addr"))
	assert.Equal(t, "LOREKEEPER_A_B", EnvName("a-b"))
}

func TestConfigStore_ConcurrentUpdates(t *testing.T) {
	s := openStore(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "pipeline.k" + string(rune('0'+n))
			assert.NoError(t, s.Update(map[string]any{key: n}))
			_, _ = s.Get(key)
		}(i)
	}
	wg.Wait()

	require.NoError(t, s.Load())
	for i := 0; i < 8; i++ {
		_, ok := s.Get("pipeline.k" + string(rune('0'+i)))
		assert.True(t, ok)
	}
}

func TestFlattenAndNest(t *testing.T) {
	flat := map[string]any{"a.b.c": 1, "a.d": "x", "e": true}
	tree, err := nest(flat)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": "x"},
		"e": true,
	}, tree)
	assert.Equal(t, flat, flatten(tree, "", map[string]any{}))

	_, err = nest(map[string]any{"a": 1, "a.b": 2})
	assert.Error(t, err)
}
