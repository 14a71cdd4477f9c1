// Package formatter renders consolidated extraction results into final
// study-guide documents.
package formatter

import (
	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
)

// Document is one rendered output artifact.
type Document struct {
	Name        string // artifact name, e.g. "study_guide.md"
	ContentType string
	Data        []byte
}

// Documents is a formatter's output: the primary document always present,
// the secondary rendering optional (its failure must not affect the primary).
type Documents struct {
	Primary   Document
	Secondary *Document
}

// Formatter renders an extraction result into documents. Metadata carries
// content-type specific fields (instructor, course, session title).
type Formatter interface {
	Format(result *extraction.Result, set *chunker.ChunkSet, metadata map[string]string) (*Documents, error)
}
