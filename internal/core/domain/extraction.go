package domain

// ExtractionType selects what the reasoning service should look for.
type ExtractionType string

// Extraction types.
const (
	ExtractCharacters     ExtractionType = "characters"
	ExtractRelationships  ExtractionType = "relationships"
	ExtractPlotThreads    ExtractionType = "plot_threads"
	ExtractTimelineEvents ExtractionType = "timeline_events"
	ExtractComprehensive  ExtractionType = "comprehensive"
)

// IsValid returns true if the extraction type is recognised.
func (t ExtractionType) IsValid() bool {
	switch t {
	case ExtractCharacters, ExtractRelationships, ExtractPlotThreads,
		ExtractTimelineEvents, ExtractComprehensive:
		return true
	default:
		return false
	}
}

// ChunkRef is the wire form of a chunk in an extraction request.
type ChunkRef struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
	DocumentID string `json:"document_id"`
}

// ExtractionRequest is sent to the extraction gateway.
type ExtractionRequest struct {
	Chunks            []ChunkRef      `json:"chunks"`
	ProjectID         string          `json:"project_id"`
	ExtractionType    ExtractionType  `json:"extraction_type"`
	ExistingKnowledge []ExtractedFact `json:"existing_knowledge,omitempty"`
}

// ExtractedFact is one item found by the reasoning service.
type ExtractedFact struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Evidence        string  `json:"evidence,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
	Inferred        bool    `json:"inferred,omitempty"`
}

// Candidate converts the fact into an arbitration candidate of category c.
func (f ExtractedFact) Candidate(c Category) Candidate {
	method := ExtractionLLMDirect
	if f.Inferred {
		method = ExtractionLLMInferred
	}
	return Candidate{
		Category:    c,
		Name:        f.Name,
		Description: f.Description,
		Evidence:    f.Evidence,
		Confidence:  ClampConfidence(f.ConfidenceScore),
		Method:      method,
	}
}

// ProcessingStats summarises one extraction call.
type ProcessingStats struct {
	ChunksProcessed   int     `json:"chunksProcessed"`
	ExtractionsFound  int     `json:"extractionsFound"`
	ConfidenceAverage float64 `json:"confidenceAverage"`
	ProcessingTime    int64   `json:"processingTime"`
}

// ExtractionResult is the parsed gateway response.
type ExtractionResult struct {
	Characters      []ExtractedFact `json:"characters,omitempty"`
	Relationships   []ExtractedFact `json:"relationships,omitempty"`
	PlotThreads     []ExtractedFact `json:"plotThreads,omitempty"`
	TimelineEvents  []ExtractedFact `json:"timelineEvents,omitempty"`
	Conflicts       []ExtractedFact `json:"conflicts,omitempty"`
	ProcessingStats ProcessingStats `json:"processingStats"`
}

// Candidates flattens the result into arbitration candidates.
// Conflicts are reported, not stored.
func (r ExtractionResult) Candidates() []Candidate {
	var out []Candidate
	groups := []struct {
		cat   Category
		facts []ExtractedFact
	}{
		{CategoryCharacter, r.Characters},
		{CategoryRelationship, r.Relationships},
		{CategoryPlotThread, r.PlotThreads},
		{CategoryTimelineEvent, r.TimelineEvents},
	}
	for _, g := range groups {
		for _, f := range g.facts {
			if f.Name == "" {
				continue
			}
			out = append(out, f.Candidate(g.cat))
		}
	}
	return out
}

// Count returns the number of extracted items, conflicts included.
func (r ExtractionResult) Count() int {
	return len(r.Characters) + len(r.Relationships) + len(r.PlotThreads) +
		len(r.TimelineEvents) + len(r.Conflicts)
}

// Merge folds other into r. Stats are summed, and the confidence average
// is weighted by extraction count.
func (r *ExtractionResult) Merge(other ExtractionResult) {
	total := r.ProcessingStats.ExtractionsFound + other.ProcessingStats.ExtractionsFound
	if total > 0 {
		r.ProcessingStats.ConfidenceAverage =
			(r.ProcessingStats.ConfidenceAverage*float64(r.ProcessingStats.ExtractionsFound) +
				other.ProcessingStats.ConfidenceAverage*float64(other.ProcessingStats.ExtractionsFound)) /
				float64(total)
	}
	r.ProcessingStats.ExtractionsFound = total
	r.ProcessingStats.ChunksProcessed += other.ProcessingStats.ChunksProcessed
	r.ProcessingStats.ProcessingTime += other.ProcessingStats.ProcessingTime

	r.Characters = append(r.Characters, other.Characters...)
	r.Relationships = append(r.Relationships, other.Relationships...)
	r.PlotThreads = append(r.PlotThreads, other.PlotThreads...)
	r.TimelineEvents = append(r.TimelineEvents, other.TimelineEvents...)
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
}
