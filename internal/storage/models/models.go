package models

import "time"

const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// DocumentRecord is the read-only view of an uploaded document. Rows are
// owned and mutated by the file-management side; the query pipeline only
// reads them.
type DocumentRecord struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	OwnerID   string    `json:"owner_id"`
	FolderID  string    `json:"folder_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentFilter narrows Find/Count/FindOne. Zero values are ignored.
// Deleted documents are excluded unless IncludeDeleted is set.
type DocumentFilter struct {
	ID             string
	OwnerID        string
	IncludeDeleted bool
	// NameSuffix matches lower(filename) against a trailing extension,
	// e.g. ".pdf".
	NameSuffix string
	// NamePattern is a SQL LIKE pattern matched case-insensitively
	// against the filename.
	NamePattern string
}

type Folder struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

type QueryRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	QueryText      string    `json:"query_text"`
	Response       string    `json:"response"`
	Intent         string    `json:"intent"`
	SourceCount    int       `json:"source_count"`
	LatencyMS      int       `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
