package models

// Kind identifies which transform a request asked for.
type Kind string

const (
	KindTranslation Kind = "translation"
	KindSummary     Kind = "summary"
)

// Formality registers accepted by the translation endpoint.
const (
	FormalityFormal   = "formal"
	FormalityNeutral  = "neutral"
	FormalityInformal = "informal"
)

// Summary styles accepted by the summarize endpoint.
const (
	StyleFormal    = "formal"
	StyleInformal  = "informal"
	StyleTechnical = "technical"
	StyleExecutive = "executive"
	StyleCreative  = "creative"
)

// DefaultMaxLength is the summary length bound used when the caller sends none.
const DefaultMaxLength = 500

// TranslationRequest is an English to Arabic translation request.
type TranslationRequest struct {
	Text      string `json:"text"`
	Formality string `json:"formality,omitempty"`
}

// Normalize fills in defaults for omitted options.
func (r *TranslationRequest) Normalize() {
	if r.Formality == "" {
		r.Formality = FormalityNeutral
	}
}

// SummaryRequest asks for a summary in a given style.
type SummaryRequest struct {
	Text         string `json:"text"`
	Style        string `json:"style,omitempty"`
	MaxLength    int    `json:"max_length,omitempty"`
	BulletPoints bool   `json:"bullet_points,omitempty"`
}

// Normalize fills in defaults for omitted options.
func (r *SummaryRequest) Normalize() {
	if r.Style == "" {
		r.Style = StyleFormal
	}
	if r.MaxLength == 0 {
		r.MaxLength = DefaultMaxLength
	}
}

// TranslationResult is the cached payload of a translation.
type TranslationResult struct {
	Translation string `json:"translation"`
	Formality   string `json:"formality"`
}

// SummaryResult is the cached payload of a summary.
type SummaryResult struct {
	Summary      string `json:"summary"`
	Style        string `json:"style"`
	BulletPoints bool   `json:"bullet_points"`
	Length       int    `json:"length"`
	Truncated    bool   `json:"truncated"`
}

// TransformResponse is the envelope returned by both transform endpoints.
type TransformResponse struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	Result   any    `json:"result,omitempty"`
	CacheHit *bool  `json:"cache_hit,omitempty"`
	Error    string `json:"error,omitempty"`
}
