package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
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
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_collections_owner ON collections(owner_id);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT,
		content TEXT NOT NULL,
		uploaded_at INTEGER NOT NULL,
		FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection_id);

	CREATE TABLE IF NOT EXISTS indexed_collections (
		collection_id INTEGER PRIMARY KEY,
		namespace TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		collection_id INTEGER NOT NULL,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_collection_user ON chat_history(collection_id, user_id);

	CREATE TABLE IF NOT EXISTS admin_settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertCollection(ctx context.Context, col *models.Collection) error {
	query := `INSERT INTO collections (name, owner_id, created_at) VALUES (?, ?, ?)`

	res, err := c.db.ExecContext(ctx, query, col.Name, col.OwnerID, col.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}

	col.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read collection id: %w", err)
	}

	logger.Debug("Collection inserted", zap.Int64("collection_id", col.ID))
	return nil
}

func (c *Client) GetCollection(ctx context.Context, id int64) (*models.Collection, error) {
	query := `SELECT id, name, owner_id, created_at FROM collections WHERE id = ?`

	var col models.Collection
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(&col.ID, &col.Name, &col.OwnerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	col.CreatedAt = time.Unix(createdAt, 0)
	return &col, nil
}

func (c *Client) ListCollections(ctx context.Context, ownerID int64) ([]models.Collection, error) {
	query := `SELECT id, name, owner_id, created_at FROM collections WHERE owner_id = ? ORDER BY created_at`

	rows, err := c.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var cols []models.Collection
	for rows.Next() {
		var col models.Collection
		var createdAt int64

		if err := rows.Scan(&col.ID, &col.Name, &col.OwnerID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		col.CreatedAt = time.Unix(createdAt, 0)
		cols = append(cols, col)
	}

	return cols, rows.Err()
}

// DeleteCollection removes the collection row, its documents and its chat
// history in one transaction. The vector namespace and the indexed mapping
// are the registry's responsibility.
func (c *Client) DeleteCollection(ctx context.Context, id int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_history WHERE collection_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chat history: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("collection %d: %w", id, errs.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logger.Info("Collection deleted", zap.Int64("collection_id", id))
	return nil
}

func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents (collection_id, file_name, file_type, content, uploaded_at) VALUES (?, ?, ?, ?, ?)`

	res, err := c.db.ExecContext(ctx, query, doc.CollectionID, doc.FileName, doc.FileType, doc.Content, doc.UploadedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	doc.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read document id: %w", err)
	}

	logger.Debug("Document inserted",
		zap.Int64("document_id", doc.ID),
		zap.Int64("collection_id", doc.CollectionID),
	)
	return nil
}

func (c *Client) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	query := `SELECT id, collection_id, file_name, file_type, content, uploaded_at FROM documents WHERE id = ?`

	var doc models.Document
	var uploadedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.CollectionID,
		&doc.FileName,
		&doc.FileType,
		&doc.Content,
		&uploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.UploadedAt = time.Unix(uploadedAt, 0)
	return &doc, nil
}

func (c *Client) ListDocuments(ctx context.Context, collectionID int64) ([]models.Document, error) {
	query := `SELECT id, collection_id, file_name, file_type, content, uploaded_at FROM documents WHERE collection_id = ? ORDER BY uploaded_at`

	rows, err := c.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var uploadedAt int64

		err := rows.Scan(&doc.ID, &doc.CollectionID, &doc.FileName, &doc.FileType, &doc.Content, &uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc.UploadedAt = time.Unix(uploadedAt, 0)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// CreateIndexedCollection records the collection to namespace mapping.
// Idempotent: concurrent first-writers race on INSERT OR IGNORE and the
// loser reuses the winner's row.
func (c *Client) CreateIndexedCollection(ctx context.Context, collectionID int64, namespace string) error {
	query := `INSERT OR IGNORE INTO indexed_collections (collection_id, namespace, created_at) VALUES (?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, collectionID, namespace, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create indexed collection: %w", err)
	}

	return nil
}

func (c *Client) ListIndexedCollections(ctx context.Context) ([]models.IndexedCollection, error) {
	query := `SELECT collection_id, namespace, created_at FROM indexed_collections`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed collections: %w", err)
	}
	defer rows.Close()

	var indexed []models.IndexedCollection
	for rows.Next() {
		var ic models.IndexedCollection
		var createdAt int64

		if err := rows.Scan(&ic.CollectionID, &ic.Namespace, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		ic.CreatedAt = time.Unix(createdAt, 0)
		indexed = append(indexed, ic)
	}

	return indexed, rows.Err()
}

func (c *Client) DeleteIndexedCollection(ctx context.Context, collectionID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM indexed_collections WHERE collection_id = ?`, collectionID)
	if err != nil {
		return fmt.Errorf("failed to delete indexed collection: %w", err)
	}
	return nil
}

func (c *Client) InsertChatTurn(ctx context.Context, turn *models.ChatTurn) error {
	query := `INSERT INTO chat_history (user_id, collection_id, query, response, created_at) VALUES (?, ?, ?, ?, ?)`

	res, err := c.db.ExecContext(ctx, query, turn.UserID, turn.CollectionID, turn.Query, turn.Response, turn.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert chat turn: %w", err)
	}

	turn.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read chat turn id: %w", err)
	}

	return nil
}

// GetChatHistory returns up to limit turns for (collection, user),
// oldest first so callers can render the conversation in order.
func (c *Client) GetChatHistory(ctx context.Context, collectionID, userID int64, limit int) ([]models.ChatTurn, error) {
	query := `
		SELECT id, user_id, collection_id, query, response, created_at
		FROM (
			SELECT id, user_id, collection_id, query, response, created_at
			FROM chat_history
			WHERE collection_id = ? AND user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := c.db.QueryContext(ctx, query, collectionID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		var createdAt int64

		if err := rows.Scan(&t.ID, &t.UserID, &t.CollectionID, &t.Query, &t.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		t.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

func (c *Client) GetSetting(ctx context.Context, key string) (string, error) {
	var value string

	err := c.db.QueryRowContext(ctx, `SELECT setting_value FROM admin_settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	return value, nil
}

func (c *Client) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO admin_settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	logger.Debug("Admin setting updated", zap.String("key", key))
	return nil
}
