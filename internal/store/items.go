package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/HarshS99/lostandfound/internal/model"
)

// InsertItem persists a new report and returns its assigned id. The insert
// is committed before the id is returned, so callers may notify based on it
// immediately. The processed image bytes may be nil.
func InsertItem(ctx context.Context, db *sql.DB, item *model.Item, image []byte, mime string) (int64, error) {
	embedding := item.Embedding
	if embedding == nil {
		embedding = []float64{}
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return 0, fmt.Errorf("encoding embedding: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (type, title, description, owner_contact, image_fingerprint, embedding_json, image, image_mime)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Type, item.Title, item.Description, item.OwnerContact,
		item.ImageFingerprint, string(embeddingJSON), image, mime,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}
	return id, nil
}

// FetchAllItems returns every stored report in insertion order. A record
// whose embedding column cannot be decoded gets an empty embedding rather
// than failing the scan.
func FetchAllItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, type, title, description, owner_contact, image_fingerprint, embedding_json, created_at
		 FROM items ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, type, title, description, owner_contact, image_fingerprint, embedding_json, created_at
		 FROM items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

// GetItemImage returns an item's stored image data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description, contact, fingerprint, embeddingJSON sql.NullString
	err := row.Scan(&item.ID, &item.Type, &item.Title, &description, &contact,
		&fingerprint, &embeddingJSON, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	item.Description = description.String
	item.OwnerContact = contact.String
	item.ImageFingerprint = fingerprint.String
	item.Embedding = decodeEmbedding(embeddingJSON.String)
	return item, nil
}

func decodeEmbedding(raw string) []float64 {
	if raw == "" {
		return nil
	}
	var embedding []float64
	if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
		return nil
	}
	return embedding
}

// Items provides the pipeline's view of the item table.
type Items struct {
	DB *sql.DB
}

func (s *Items) InsertItem(ctx context.Context, item *model.Item, image []byte, mime string) (int64, error) {
	return InsertItem(ctx, s.DB, item, image, mime)
}

func (s *Items) FetchAllItems(ctx context.Context) ([]model.Item, error) {
	return FetchAllItems(ctx, s.DB)
}
