package services

import (
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure HashService implements the interface.
var _ driving.HashService = (*HashService)(nil)

// HashService exposes content fingerprints to external callers.
type HashService struct{}

// NewHashService creates a new hash service.
func NewHashService() *HashService {
	return &HashService{}
}

// Hash fingerprints a single content or a batch. A single content wins
// when both are supplied.
func (s *HashService) Hash(req driving.HashRequest) driving.HashResponse {
	switch {
	case req.Content != nil:
		return driving.HashResponse{Hash: domain.ContentHash(*req.Content)}
	case req.Contents != nil:
		hashes := make([]string, len(req.Contents))
		for i, c := range req.Contents {
			hashes[i] = domain.ContentHash(c)
		}
		return driving.HashResponse{Hashes: hashes}
	default:
		return driving.HashResponse{Error: "content or contents is required"}
	}
}
