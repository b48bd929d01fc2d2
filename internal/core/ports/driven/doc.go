// Package driven declares what the core needs from infrastructure: stores
// for documents, fingerprints, jobs, knowledge, audit entries and change
// records; the extraction gateway; the status bus; configuration.
//
// LLMService, MergeEvaluator and RateLimiter may be nil. Without an LLM,
// extraction fails fast and enhancement is disabled; without an evaluator
// every candidate that has neighbours stays distinct; without a limiter
// reasoning calls are unthrottled.
//
// Implementations live under internal/adapters/driven and import only
// domain and this package from the core.
package driven
