package driven

// ConfigStore holds flat, dot-separated keys such as "pipeline.chunk_size".
// Values keep whatever type the backing format produced; the settings
// service interprets them.
type ConfigStore interface {
	Get(key string) (any, bool)
	// Update writes every key and persists once. A nil value removes the key.
	Update(values map[string]any) error
	// Path names where values persist, for diagnostics.
	Path() string
}
