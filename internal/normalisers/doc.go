// Package normalisers turns raw manuscript files into plain prose documents.
// Each sub-package handles one format; Registry picks the best match for a
// file's MIME type.
package normalisers
