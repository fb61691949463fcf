// Package types defines the core data structures for the Recall retrieval
// subsystem. The central type is Content: the unit of storage and retrieval
// that producers (mail, drive, chat collaborators) hand to the ingestion
// pipeline and that similarity search returns to the assistant.
package types

import "time"

// ContentType classifies a Content item. The set is closed: producers map
// whatever they ingest onto one of these values.
type ContentType string

// Content type constants
const (
	// TypeEmail is a single email message.
	TypeEmail ContentType = "email"

	// TypeDocument is a text document (or a chunk of one).
	TypeDocument ContentType = "document"

	// TypeCalendar is a calendar event.
	TypeCalendar ContentType = "calendar"

	// TypeContact is an address-book entry.
	TypeContact ContentType = "contact"

	// TypeNote is a free-form user note.
	TypeNote ContentType = "note"

	// TypeChatHistory is a stored conversation turn.
	TypeChatHistory ContentType = "chat_history"
)

// ValidContentTypes contains all valid content type values.
var ValidContentTypes = []ContentType{
	TypeEmail,
	TypeDocument,
	TypeCalendar,
	TypeContact,
	TypeNote,
	TypeChatHistory,
}

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	for _, v := range ValidContentTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Content represents a single retrievable item: an email, a document chunk,
// a chat turn, and so on. Content is created by a producer or by the chunker,
// optionally embedded by the batch scheduler, and persisted in a ContentStore.
type Content struct {
	// ID is a process-local surrogate key assigned by the store on insert.
	// It carries no meaning for identity; SourceID does.
	ID string `json:"id"`

	// SourceID is the stable external identifier (message id, file id, or
	// "{session}_{chunkIndex}" for chat turns). Chunks derived from one
	// source share the SourceID prefix before a "_chunk_{n}" suffix.
	// Unique within a store.
	SourceID string `json:"source_id"`

	// Title is display metadata; not used in retrieval math.
	Title string `json:"title,omitempty"`

	// Author is display metadata; not used in retrieval math.
	Author string `json:"author,omitempty"`

	// Content is the UTF-8 text payload. The chunker guarantees it never
	// exceeds the configured maximum chunk size before it reaches a store.
	Content string `json:"content"`

	// CreatedDate is the producer's incremental-sync watermark. The core
	// never mutates it.
	CreatedDate time.Time `json:"created_date"`

	// Type classifies the item.
	Type ContentType `json:"content_type"`

	// Embedding is the vector for semantic search. Nil or empty means
	// "not yet embedded" — a valid and expected state, not an error.
	// When present, its dimension is constant across all entities in one
	// store.
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the content has been embedded.
func (c *Content) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Clone returns a deep copy of the content. Stores hand out clones so
// callers cannot alias internal state.
func (c *Content) Clone() *Content {
	cp := *c
	if c.Embedding != nil {
		cp.Embedding = make([]float32, len(c.Embedding))
		copy(cp.Embedding, c.Embedding)
	}
	return &cp
}
