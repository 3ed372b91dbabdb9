package classify

import (
	"context"

	"github.com/joseph-ayodele/docflow/internal/extract"
)

// DocumentTags is the normalized shape we want from the model.
type DocumentTags struct {
	Category        string   `json:"category"`                // must match AllowedCategories if provided
	Tags            []string `json:"tags,omitempty"`          // short free-form labels, lowercase
	Summary         string   `json:"summary,omitempty"`       // one or two sentences
	Language        string   `json:"language,omitempty"`      // ISO 639-1
	ModelConfidence float32  `json:"confidence,omitempty"`    // optional (0..1)
	DocumentDate    string   `json:"document_date,omitempty"` // YYYY-MM-DD when stated in the content
}

type ClassifyRequest struct {
	Pages             []extract.PageResult
	FilenameHint      string
	FolderHint        string
	AllowedCategories []string
}

// Classifier is the interface the orchestrator depends on.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (DocumentTags, []byte /*rawJSON*/, error)
}
