package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Fingerprint records the content hash a document had when it was last
// analysed successfully. There is at most one per document.
type Fingerprint struct {
	// DocumentID identifies the fingerprinted document.
	DocumentID string

	// ProjectID is the owning project, used for bulk lookups.
	ProjectID string

	// Hash is ContentHash of the document text at processing time.
	Hash string

	// ProcessedAt is when the successful analysis committed.
	ProcessedAt time.Time

	// JobID is the job that wrote this record.
	JobID string
}

// ContentHash returns the hex SHA-256 of the trimmed text.
// Only leading and trailing whitespace is ignored; interior changes
// always change the hash. Empty text still hashes, but empty documents
// are filtered out before analysis.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// IsStale reports whether doc needs (re)analysis against its stored
// fingerprint. fp is nil when the document has never been processed.
func IsStale(doc Document, fp *Fingerprint) bool {
	if !doc.IsEligible() {
		return false
	}
	if fp == nil {
		return true
	}
	if ContentHash(doc.Content) != fp.Hash {
		return true
	}
	return doc.UpdatedAt.After(fp.ProcessedAt)
}

// StalenessStatus says whether a staleness report can be trusted.
type StalenessStatus string

const (
	// StalenessKnown means every document was compared against its fingerprint.
	StalenessKnown StalenessStatus = "known"

	// StalenessUnknown means fingerprints could not be read. Callers must not
	// treat this as "nothing to do".
	StalenessUnknown StalenessStatus = "unknown"
)

// StalenessReport is the work list produced by staleness detection.
type StalenessReport struct {
	// ProjectID is the project that was inspected.
	ProjectID string

	// Status is StalenessUnknown when fingerprints were unreadable.
	Status StalenessStatus

	// DocumentIDs lists stale documents in document order.
	DocumentIDs []string

	// Count is len(DocumentIDs).
	Count int

	// Reason explains an unknown status.
	Reason string
}

// NeedsProcessing reports whether a caller should schedule analysis.
// Unknown staleness counts as needing processing.
func (r StalenessReport) NeedsProcessing() bool {
	return r.Status == StalenessUnknown || r.Count > 0
}
