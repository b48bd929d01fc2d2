package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/llmjson"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure ArbiterService implements the interface.
var _ driving.MergeArbiter = (*ArbiterService)(nil)

// Default arbitration settings.
const (
	DefaultMergeTimeout     = 30 * time.Second
	DefaultMergeTemperature = 0.1
	DefaultMergeMaxTokens   = 600
)

// defaultMergePrompt is the fallback prompt when no PromptStore is configured.
const defaultMergePrompt = `You maintain a story bible. Decide whether a newly extracted %s
duplicates one of the existing entries.

New entry:
%s

Existing entries (the first is the closest match):
%s

Answer with a single JSON object and nothing else:
{"action": "merge" | "discard" | "keep_distinct", "reason": "...", "confidence": 0.0-1.0,
 "mergedData": {"name": "...", "description": "...", "evidence": "..."}}

Use "merge" when both describe the same thing and the new entry adds detail,
"discard" when the new entry adds nothing, and "keep_distinct" otherwise.
Include mergedData only for "merge".`

// ArbiterService decides whether a candidate merges into nearby knowledge.
//
// Any failure of the reasoning service (error, timeout, rate limit or an
// unparseable body) produces keep_distinct. Merge and discard only ever come
// from a well-formed response.
type ArbiterService struct {
	evaluator driven.MergeEvaluator
	audit     driven.MergeAuditLog
	limiter   driven.RateLimiter
	prompts   driven.PromptStore
	timeout   time.Duration
	now       func() time.Time
}

// NewArbiterService creates a new merge arbiter.
// A nil evaluator makes every contested decision a keep_distinct fallback.
func NewArbiterService(evaluator driven.MergeEvaluator, audit driven.MergeAuditLog) *ArbiterService {
	return &ArbiterService{
		evaluator: evaluator,
		audit:     audit,
		timeout:   DefaultMergeTimeout,
		now:       time.Now,
	}
}

// SetRateLimiter throttles evaluator calls per project.
func (s *ArbiterService) SetRateLimiter(limiter driven.RateLimiter) {
	s.limiter = limiter
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *ArbiterService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// SetTimeout bounds each evaluator call.
func (s *ArbiterService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Decide returns the decision for candidate against nearby and records it.
func (s *ArbiterService) Decide(
	ctx context.Context,
	scope driving.AuditScope,
	candidate domain.Candidate,
	nearby []domain.KnowledgeItem,
) domain.MergeDecision {
	decision := s.decide(ctx, scope, candidate, nearby)
	s.record(ctx, scope, candidate, decision)
	return decision
}

func (s *ArbiterService) decide(
	ctx context.Context,
	scope driving.AuditScope,
	candidate domain.Candidate,
	nearby []domain.KnowledgeItem,
) domain.MergeDecision {
	if len(nearby) == 0 {
		return domain.MergeDecision{
			Action:     domain.MergeActionKeepDistinct,
			Reason:     "no existing item to compare with",
			Confidence: 1.0,
		}
	}
	targetID := nearby[0].ID

	if s.evaluator == nil {
		return fallbackDecision(targetID, errors.New("no reasoning service configured"))
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, scope.ProjectID); err != nil {
			return fallbackDecision(targetID, fmt.Errorf("%w: %w", domain.ErrRateLimited, err))
		}
	}

	prompt, err := s.buildPrompt(candidate, nearby)
	if err != nil {
		return fallbackDecision(targetID, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.evaluator.Evaluate(callCtx, driven.MergeEvaluationRequest{
		Prompt:   prompt,
		ItemType: candidate.Category,
		Options: driven.MergeEvaluationOptions{
			Temperature: DefaultMergeTemperature,
			MaxTokens:   DefaultMergeMaxTokens,
		},
	})
	if err != nil {
		return fallbackDecision(targetID, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err))
	}

	decision, err := parseMergeDecision(raw)
	if err != nil {
		return fallbackDecision(targetID, err)
	}
	decision.TargetID = targetID
	return decision
}

// fallbackDecision is the safe outcome when the reasoning service cannot be trusted.
func fallbackDecision(targetID string, cause error) domain.MergeDecision {
	logger.Warn("merge arbitration fell back to keep_distinct: %v", cause)
	return domain.MergeDecision{
		Action:     domain.MergeActionKeepDistinct,
		Reason:     "fallback: " + cause.Error(),
		Confidence: domain.DefaultMergeConfidence,
		TargetID:   targetID,
		Fallback:   true,
	}
}

// parseMergeDecision validates a reasoning-service body.
// Unknown actions become keep_distinct; missing or out-of-range confidence
// becomes the default.
func parseMergeDecision(raw string) (domain.MergeDecision, error) {
	obj, stage, err := llmjson.Object(raw)
	if err != nil {
		return domain.MergeDecision{}, fmt.Errorf("%w: %w", domain.ErrGatewayMalformedResponse, err)
	}
	if stage == llmjson.StageRecovered {
		logger.Debug("merge response: recovered embedded JSON object")
	}

	decision := domain.MergeDecision{
		Action:     domain.MergeAction(strings.ToLower(strings.TrimSpace(obj.Get("action").String()))),
		Reason:     strings.TrimSpace(obj.Get("reason").String()),
		Confidence: domain.DefaultMergeConfidence,
	}
	if !decision.Action.IsValid() {
		logger.Debug("merge response: unknown action %q, keeping distinct", obj.Get("action").String())
		decision.Action = domain.MergeActionKeepDistinct
	}

	if c := obj.Get("confidence"); c.Type == gjson.Number && c.Float() >= 0 && c.Float() <= 1 {
		decision.Confidence = c.Float()
	}

	if decision.Action == domain.MergeActionMerge {
		if md := obj.Get("mergedData"); md.IsObject() {
			var merged domain.MergedData
			if err := json.Unmarshal([]byte(md.Raw), &merged); err == nil {
				decision.Merged = &merged
			}
		}
	}

	return decision, nil
}

type promptItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Evidence    string  `json:"evidence,omitempty"`
	Confidence  float64 `json:"confidence"`
}

func (s *ArbiterService) buildPrompt(candidate domain.Candidate, nearby []domain.KnowledgeItem) (string, error) {
	cand, err := json.MarshalIndent(promptItem{
		Name:        candidate.Name,
		Description: candidate.Description,
		Evidence:    candidate.Evidence,
		Confidence:  candidate.Confidence,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode candidate: %w", err)
	}

	existing := make([]promptItem, len(nearby))
	for i, item := range nearby {
		existing[i] = promptItem{
			Name:        item.Name,
			Description: item.Description,
			Evidence:    item.Evidence,
			Confidence:  item.Confidence,
		}
	}
	items, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode existing items: %w", err)
	}

	template := defaultMergePrompt
	if s.prompts != nil {
		if custom, err := s.prompts.Load(driven.PromptMergeEvaluation); err == nil {
			template = custom
		}
	}
	return fmt.Sprintf(template, candidate.Category, cand, items), nil
}

// record appends the decision to the audit log. Audit failures are logged,
// never turned into a different decision.
func (s *ArbiterService) record(
	ctx context.Context,
	scope driving.AuditScope,
	candidate domain.Candidate,
	decision domain.MergeDecision,
) {
	if s.audit == nil {
		return
	}
	entry := domain.MergeAuditEntry{
		ID:            uuid.New().String(),
		ProjectID:     scope.ProjectID,
		JobID:         scope.JobID,
		CandidateName: candidate.Name,
		Category:      candidate.Category,
		TargetID:      decision.TargetID,
		Action:        decision.Action,
		Reason:        decision.Reason,
		Confidence:    decision.Confidence,
		Fallback:      decision.Fallback,
		DecidedAt:     s.now(),
	}
	if err := s.audit.AppendDecision(ctx, entry); err != nil {
		logger.Warn("merge audit for %q: %v", candidate.Name, err)
	}
}
