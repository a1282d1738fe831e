package domain

// SearchFilter narrows both retrieval channels with equality filters.
type SearchFilter struct {
	SourceType SourceType
	TaxYear    string
}

// SearchOptions controls a hybrid search invocation. Zero TopK means the
// retriever's configured default.
type SearchOptions struct {
	TopK   int
	Filter SearchFilter
}

// RetrievalResult is one candidate chunk flowing through the retrieval
// pipeline. Score semantics depend on the stage that produced it: cosine
// similarity on the semantic leg, ts_rank_cd on the lexical leg, the fused
// RRF value after fusion, or a cross-encoder score after reranking.
// ChunkID feeds the query log only and is never serialized.
type RetrievalResult struct {
	ChunkID      string     `json:"-"`
	Content      string     `json:"content"`
	SectionTitle string     `json:"section_title,omitempty"`
	SourceURL    string     `json:"source_url"`
	SourceTitle  string     `json:"source_title,omitempty"`
	SourceType   SourceType `json:"source_type,omitempty"`
	TaxYear      string     `json:"tax_year,omitempty"`
	Score        float64    `json:"score"`
}

// SourceReference is a cited source, deduplicated by URL. SectionTitle is
// populated only when exactly one retrieved chunk maps to the URL.
type SourceReference struct {
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
}

type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ToolUsed struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ToolCallRecord is one entry of the unabridged tool-call audit log.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Answer struct {
	Text    string            `json:"answer"`
	Sources []SourceReference `json:"sources"`
	Model   string            `json:"model"`
	Tools   []ToolUsed        `json:"tools_used"`
	QueryID string            `json:"query_id,omitempty"`
}

type StreamEventType string

const (
	EventStatus  StreamEventType = "status"
	EventToolUse StreamEventType = "tool_use"
	EventChunk   StreamEventType = "chunk"
	EventSources StreamEventType = "sources"
	EventDone    StreamEventType = "done"
	EventError   StreamEventType = "error"
)

// StreamEvent is the tagged union emitted by the streaming ask variant.
// Exactly the fields belonging to Type are set.
type StreamEvent struct {
	Type    StreamEventType   `json:"type"`
	Message string            `json:"message,omitempty"`
	Tool    *ToolUsed         `json:"tool,omitempty"`
	Delta   string            `json:"delta,omitempty"`
	Sources []SourceReference `json:"sources,omitempty"`
	Model   string            `json:"model,omitempty"`
	QueryID string            `json:"query_id,omitempty"`
	Error   string            `json:"error,omitempty"`
}
