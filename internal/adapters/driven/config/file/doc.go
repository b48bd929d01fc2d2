// Package file keeps lorekeeper's user-editable state on disk: config.toml
// (ConfigStore) and the prompt templates sent to the LLM (PromptStore).
package file
