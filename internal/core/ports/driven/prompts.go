package driven

// PromptStore hands out the format strings sent to the LLM, so users can
// tune wording without rebuilding.
type PromptStore interface {
	Load(name string) (string, error)
	// Reload drops cached templates; edits on disk show up on the next Load.
	Reload()
}

// Prompt names. Each template is a fmt format string; the placeholders are
// listed in order.
const (
	// PromptExtraction: extraction type, known facts as JSON, passages.
	PromptExtraction = "extraction"

	// PromptMergeEvaluation: item type, candidate as JSON, existing items as JSON.
	PromptMergeEvaluation = "merge_evaluation"

	// PromptEnhancement: the passage to rewrite.
	PromptEnhancement = "enhancement"
)
