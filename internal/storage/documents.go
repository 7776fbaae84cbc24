package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks notehub/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"notehub/internal/changefeed"
	"notehub/internal/contextutil"
)

// DocumentStore is the backing document store: schemaless records grouped
// into collections, with live subscriptions over equality queries.
type DocumentStore interface {
	// Insert stores fields under a generated id with a server timestamp.
	Insert(ctx context.Context, collection string, fields map[string]any) (Document, error)
	// Put writes a document under a caller-chosen id, replacing any existing
	// one. CreatedAt may be zero.
	Put(ctx context.Context, collection string, doc Document) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document. Deleting a missing id succeeds.
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	Find(ctx context.Context, q Query) ([]Document, error)
	// Subscribe starts a live query. The first snapshot is delivered as soon
	// as the initial read completes.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}

var fieldNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Predicate is a single field equality test.
type Predicate struct {
	Field string
	Value string
}

// Eq builds an equality predicate.
func Eq(field, value string) Predicate {
	return Predicate{Field: field, Value: value}
}

// Query selects documents of one collection matching every predicate,
// newest first.
type Query struct {
	Collection string
	Where      []Predicate
}

// Validate rejects queries that cannot be expressed safely in SQL.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	for _, p := range q.Where {
		if !fieldNameRE.MatchString(p.Field) {
			return fmt.Errorf("%w: bad field name %q", ErrInvalidQuery, p.Field)
		}
	}
	return nil
}

// Matches reports whether a field set satisfies the query predicates.
// A nil field set never matches.
func (q Query) Matches(fields map[string]any) bool {
	if fields == nil {
		return false
	}
	for _, p := range q.Where {
		v, ok := fields[p.Field]
		if !ok || v == nil || textValue(v) != p.Value {
			return false
		}
	}
	return true
}

// textValue mirrors how SQLite renders a JSON scalar cast to TEXT.
func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// DocumentRepo implements DocumentStore on SQLite and announces every write
// on a change feed.
type DocumentRepo struct {
	db   *sql.DB
	feed changefeed.Feed
	now  func() time.Time
}

// NewDocumentRepo creates a document repository. A nil feed gets a private
// in-process hub.
func NewDocumentRepo(db *sql.DB, feed changefeed.Feed) *DocumentRepo {
	if feed == nil {
		feed = changefeed.NewHub()
	}
	return &DocumentRepo{db: db, feed: feed, now: time.Now}
}

// Insert stores fields under a new id with the server's current time.
func (r *DocumentRepo) Insert(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	if collection == "" {
		return Document{}, fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	doc := Document{
		ID:        uuid.New().String(),
		Fields:    maps.Clone(fields),
		CreatedAt: time.UnixMilli(r.now().UnixMilli()),
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_at) VALUES (?, ?, ?, ?)`,
		collection, doc.ID, string(data), toMillis(doc.CreatedAt))
	if err != nil {
		return Document{}, classify("insert document", err)
	}

	r.publish(ctx, changefeed.Change{Collection: collection, ID: doc.ID, After: doc.Fields})
	return doc, nil
}

// Put writes doc as-is, keeping its id and creation time.
func (r *DocumentRepo) Put(ctx context.Context, collection string, doc Document) error {
	if collection == "" || doc.ID == "" {
		return fmt.Errorf("%w: collection and id are required", ErrInvalidQuery)
	}
	fields := maps.Clone(doc.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	var before map[string]any
	err = r.withTx(ctx, "put document", func(tx *sql.Tx) error {
		existing, err := getTx(ctx, tx, collection, doc.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		before = existing.Fields
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, fields, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET fields = excluded.fields, created_at = excluded.created_at`,
			collection, doc.ID, string(data), toMillis(doc.CreatedAt))
		return err
	})
	if err != nil {
		return err
	}

	r.publish(ctx, changefeed.Change{Collection: collection, ID: doc.ID, Before: before, After: fields})
	return nil
}

// Update merges fields into the stored document. The creation time is kept.
func (r *DocumentRepo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	var before, after map[string]any
	err := r.withTx(ctx, "update document", func(tx *sql.Tx) error {
		existing, err := getTx(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		before = existing.Fields
		after = maps.Clone(existing.Fields)
		if after == nil {
			after = map[string]any{}
		}
		maps.Copy(after, fields)

		data, err := json.Marshal(after)
		if err != nil {
			return fmt.Errorf("failed to encode fields: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET fields = ? WHERE collection = ? AND id = ?`,
			string(data), collection, id)
		return err
	})
	if err != nil {
		return err
	}

	r.publish(ctx, changefeed.Change{Collection: collection, ID: id, Before: before, After: after})
	return nil
}

// Delete removes a document. A missing id is not an error and announces nothing.
func (r *DocumentRepo) Delete(ctx context.Context, collection, id string) error {
	var before map[string]any
	err := r.withTx(ctx, "delete document", func(tx *sql.Tx) error {
		existing, err := getTx(ctx, tx, collection, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		before = existing.Fields
		_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
		return err
	})
	if err != nil {
		return err
	}

	if before != nil {
		r.publish(ctx, changefeed.Change{Collection: collection, ID: id, Before: before})
	}
	return nil
}

// Get retrieves one document.
func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, fields, created_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, classify("get document", err)
	}
	return doc, nil
}

// Find runs q once. Documents without a creation time sort last.
func (r *DocumentRepo) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, fields, created_at FROM documents WHERE collection = ?`)
	args := []any{q.Collection}
	for _, p := range q.Where {
		// Field names are checked by Validate before they reach the SQL text.
		fmt.Fprintf(&sb, ` AND CAST(json_extract(fields, '$.%s') AS TEXT) = ?`, p.Field)
		args = append(args, p.Value)
	}
	sb.WriteString(` ORDER BY created_at DESC, id`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify("find documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, classify("find documents", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find documents", err)
	}
	return docs, nil
}

func (r *DocumentRepo) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	return nil
}

// publish announces a committed write. Feed failures are logged, not returned:
// the write itself already succeeded.
func (r *DocumentRepo) publish(ctx context.Context, c changefeed.Change) {
	if err := r.feed.Publish(ctx, c); err != nil {
		contextutil.LoggerFromContext(ctx).Warn("failed to publish change",
			"collection", c.Collection,
			"id", c.ID,
			"error", err,
		)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc       Document
		data      string
		createdAt sql.NullInt64
	)
	if err := row.Scan(&doc.ID, &data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	doc.CreatedAt = fromMillis(createdAt)
	return doc, nil
}

func getTx(ctx context.Context, tx *sql.Tx, collection, id string) (Document, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, fields, created_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	return scanDocument(row)
}
