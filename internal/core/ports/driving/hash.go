package driving

// HashRequest is a content-hash query. Exactly one of Content or Contents
// should be set.
type HashRequest struct {
	Content  *string  `json:"content,omitempty"`
	Contents []string `json:"contents,omitempty"`
}

// HashResponse carries either Hash, Hashes or Error.
type HashResponse struct {
	Hash   string   `json:"hash,omitempty"`
	Hashes []string `json:"hashes,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// HashService computes content fingerprints for external callers.
type HashService interface {
	Hash(req HashRequest) HashResponse
}
