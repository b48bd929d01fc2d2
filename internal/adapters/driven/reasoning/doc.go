// Package reasoning adapts an LLMService into the reasoning ports used by
// the pipeline: extraction, merge evaluation and enhancement.
//
// Prompts come from a driven.PromptStore so users can edit them. Calls are
// throttled per project by an optional driven.RateLimiter.
package reasoning
