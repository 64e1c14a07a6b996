package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_folders_owner ON folders(owner_id);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		mime_type TEXT,
		owner_id TEXT NOT NULL,
		folder_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (folder_id) REFERENCES folders(id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		conversation_id TEXT,
		query_text TEXT NOT NULL,
		response TEXT,
		intent TEXT,
		source_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func buildDocumentWhere(f models.DocumentFilter) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := []interface{}{}

	if f.ID != "" {
		clauses = append(clauses, "id = ?")
		args = append(args, f.ID)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if !f.IncludeDeleted {
		clauses = append(clauses, "status != ?")
		args = append(args, models.StatusDeleted)
	}
	if f.NameSuffix != "" {
		clauses = append(clauses, "lower(filename) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.NameSuffix))
	}
	if f.NamePattern != "" {
		clauses = append(clauses, "lower(filename) LIKE ?")
		args = append(args, strings.ToLower(f.NamePattern))
	}

	return strings.Join(clauses, " AND "), args
}

func (c *Client) Find(ctx context.Context, f models.DocumentFilter) ([]models.DocumentRecord, error) {
	where, args := buildDocumentWhere(f)
	query := fmt.Sprintf(`
		SELECT id, filename, mime_type, owner_id, COALESCE(folder_id, ''), status, created_at
		FROM documents WHERE %s
		ORDER BY created_at DESC
	`, where)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentRecord
	for rows.Next() {
		var d models.DocumentRecord
		var createdAt int64

		if err := rows.Scan(&d.ID, &d.Filename, &d.MimeType, &d.OwnerID, &d.FolderID, &d.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.CreatedAt = time.Unix(createdAt, 0)
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

func (c *Client) FindOne(ctx context.Context, f models.DocumentFilter) (*models.DocumentRecord, error) {
	where, args := buildDocumentWhere(f)
	query := fmt.Sprintf(`
		SELECT id, filename, mime_type, owner_id, COALESCE(folder_id, ''), status, created_at
		FROM documents WHERE %s
		ORDER BY created_at DESC
		LIMIT 1
	`, where)

	var d models.DocumentRecord
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, args...).Scan(
		&d.ID, &d.Filename, &d.MimeType, &d.OwnerID, &d.FolderID, &d.Status, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	d.CreatedAt = time.Unix(createdAt, 0)
	return &d, nil
}

func (c *Client) InsertDocument(ctx context.Context, doc *models.DocumentRecord) error {
	query := `
		INSERT INTO documents (id, filename, mime_type, owner_id, folder_id, status, created_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)
	`

	status := doc.Status
	if status == "" {
		status = models.StatusActive
	}

	_, err := c.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.MimeType, doc.OwnerID, doc.FolderID, status, doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("filename", doc.Filename))
	return nil
}

func (c *Client) RenameDocument(ctx context.Context, ownerID, docID, newName string) error {
	res, err := c.db.ExecContext(ctx,
		"UPDATE documents SET filename = ? WHERE id = ? AND owner_id = ?",
		newName, docID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteDocument flips status to deleted; the row stays so retrieval
// filtering and placeholder resolution can still see the name.
func (c *Client) SoftDeleteDocument(ctx context.Context, ownerID, docID string) error {
	res, err := c.db.ExecContext(ctx,
		"UPDATE documents SET status = ? WHERE id = ? AND owner_id = ?",
		models.StatusDeleted, docID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) MoveDocument(ctx context.Context, ownerID, docID, folderID string) error {
	res, err := c.db.ExecContext(ctx,
		"UPDATE documents SET folder_id = ? WHERE id = ? AND owner_id = ?",
		folderID, docID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to move document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) CreateFolder(ctx context.Context, ownerID, name string) (string, error) {
	id := uuid.New().String()
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO folders (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)",
		id, name, ownerID, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	logger.Info("Folder created", zap.String("folder_id", id), zap.String("name", name))
	return id, nil
}

func (c *Client) RenameFolder(ctx context.Context, ownerID, folderID, newName string) error {
	res, err := c.db.ExecContext(ctx,
		"UPDATE folders SET name = ? WHERE id = ? AND owner_id = ?",
		newName, folderID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFolder removes the folder row and detaches its documents; the
// documents themselves stay active.
func (c *Client) DeleteFolder(ctx context.Context, ownerID, folderID string) error {
	if _, err := c.db.ExecContext(ctx,
		"UPDATE documents SET folder_id = NULL WHERE folder_id = ? AND owner_id = ?",
		folderID, ownerID,
	); err != nil {
		return fmt.Errorf("failed to detach folder documents: %w", err)
	}

	res, err := c.db.ExecContext(ctx,
		"DELETE FROM folders WHERE id = ? AND owner_id = ?",
		folderID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) FindFolder(ctx context.Context, ownerID, name string) (*models.Folder, error) {
	var f models.Folder
	var createdAt int64

	err := c.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id, created_at FROM folders WHERE owner_id = ? AND lower(name) = lower(?) LIMIT 1",
		ownerID, name,
	).Scan(&f.ID, &f.Name, &f.OwnerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find folder: %w", err)
	}

	f.CreatedAt = time.Unix(createdAt, 0)
	return &f, nil
}

func (c *Client) InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, conversation_id, query_text, response, intent,
			source_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.ConversationID,
		record.QueryText,
		record.Response,
		record.Intent,
		record.SourceCount,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("intent", record.Intent),
		zap.Int("latency_ms", record.LatencyMS),
	)

	return nil
}

func (c *Client) GetQueryHistory(ctx context.Context, userID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, query_text, response, intent, source_count, latency_ms, created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.QueryText, &r.Response, &r.Intent, &r.SourceCount, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
