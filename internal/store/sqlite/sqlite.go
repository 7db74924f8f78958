// Package sqlite is the local single-file bookmark store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/models"
	"marksweep/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const nodeColumns = "id, COALESCE(parent_id, '') AS parent_id, title, url, position, date_added"

// StoreImpl implements store.Store on SQLite.
type StoreImpl struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database at dsn, creating and migrating it when
// needed. ":memory:" gives a private throwaway database.
func NewSQLiteStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A :memory: database lives exactly as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to enable foreign keys: %w", err)
	}
	if err := store.Migrate(db.DB, "sqlite3", migrations, "migrations"); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened sqlite store at %s", dsn)
	return &StoreImpl{db: db}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *StoreImpl) Close() error {
	return s.db.Close()
}

// --- Bookmark Store Implementation ---

// List returns the whole store as a single-rooted forest.
func (s *StoreImpl) List(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	if err := s.db.SelectContext(ctx, &nodes, "SELECT "+nodeColumns+" FROM nodes ORDER BY position, id"); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return store.BuildForest(nodes), nil
}

// CreateFolder adds a folder under parentID, at index when given or last otherwise.
func (s *StoreImpl) CreateFolder(ctx context.Context, parentID, title string, index *int) (*models.Node, error) {
	if title == "" {
		return nil, fmt.Errorf("folder title is required: %w", models.ErrValidation)
	}

	var created *models.Node
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireFolder(ctx, tx, parentID); err != nil {
			return err
		}
		node := &models.Node{ID: uuid.NewString(), ParentID: parentID, Title: title, DateAdded: time.Now().UTC()}
		if err := insertNode(ctx, tx, node, index); err != nil {
			return err
		}
		created = node
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder %q: %w", title, err)
	}
	return created, nil
}

// Move reparents id to the end of newParentID.
func (s *StoreImpl) Move(ctx context.Context, id, newParentID string) error {
	if store.IsRootFolder(id) {
		return fmt.Errorf("cannot move root folder %s: %w", id, store.ErrConflict)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		node, err := getNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireFolder(ctx, tx, newParentID); err != nil {
			return err
		}
		if node.ParentID == newParentID {
			return nil
		}
		if node.IsFolder() {
			var hits int
			if err := tx.GetContext(ctx, &hits, ancestorQuery, newParentID, id); err != nil {
				return fmt.Errorf("failed to check ancestry of %s: %w", newParentID, err)
			}
			if hits > 0 {
				return fmt.Errorf("cannot move %s into its own subtree: %w", id, store.ErrConflict)
			}
		}

		pos, err := nextPosition(ctx, tx, newParentID, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE nodes SET parent_id = ?, position = ? WHERE id = ?", newParentID, pos, id); err != nil {
			return fmt.Errorf("failed to move node %s: %w", id, err)
		}
		return compact(ctx, tx, node.ParentID, node.Index)
	})
}

// Remove deletes a bookmark or an empty folder.
func (s *StoreImpl) Remove(ctx context.Context, id string) error {
	if store.IsRootFolder(id) {
		return fmt.Errorf("cannot remove root folder %s: %w", id, store.ErrConflict)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		node, err := getNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if node.IsFolder() {
			var children int
			if err := tx.GetContext(ctx, &children, "SELECT COUNT(*) FROM nodes WHERE parent_id = ?", id); err != nil {
				return fmt.Errorf("failed to count children of %s: %w", id, err)
			}
			if children > 0 {
				return fmt.Errorf("folder %s is not empty: %w", id, store.ErrConflict)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to remove node %s: %w", id, err)
		}
		return compact(ctx, tx, node.ParentID, node.Index)
	})
}

// Import copies nodes under parentID. Folders merge with same-titled existing
// folders and bookmarks already present by URL are skipped, so importing the
// same export twice is a no-op. It returns the number of bookmarks added.
func (s *StoreImpl) Import(ctx context.Context, parentID string, nodes []*models.Node) (int, error) {
	imported := 0
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireFolder(ctx, tx, parentID); err != nil {
			return err
		}

		var insert func(parentID string, nodes []*models.Node) error
		insert = func(parentID string, nodes []*models.Node) error {
			for _, n := range nodes {
				if n.IsFolder() {
					folderID, err := s.ensureFolder(ctx, tx, parentID, n)
					if err != nil {
						return err
					}
					if err := insert(folderID, n.Children); err != nil {
						return err
					}
					continue
				}

				var existing int
				if err := tx.GetContext(ctx, &existing, "SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND url = ?", parentID, n.URL); err != nil {
					return fmt.Errorf("failed to look up %s: %w", n.URL, err)
				}
				if existing > 0 {
					continue
				}
				node := &models.Node{ID: uuid.NewString(), ParentID: parentID, Title: n.Title, URL: n.URL, DateAdded: dateOrNow(n.DateAdded)}
				if err := insertNode(ctx, tx, node, nil); err != nil {
					return err
				}
				imported++
			}
			return nil
		}
		return insert(parentID, nodes)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import bookmarks: %w", err)
	}
	return imported, nil
}

func (s *StoreImpl) ensureFolder(ctx context.Context, tx *sqlx.Tx, parentID string, n *models.Node) (string, error) {
	var id string
	err := tx.GetContext(ctx, &id, "SELECT id FROM nodes WHERE parent_id = ? AND title = ? AND url = ''", parentID, n.Title)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up folder %q: %w", n.Title, err)
	}
	folder := &models.Node{ID: uuid.NewString(), ParentID: parentID, Title: n.Title, DateAdded: dateOrNow(n.DateAdded)}
	if err := insertNode(ctx, tx, folder, nil); err != nil {
		return "", err
	}
	return folder.ID, nil
}

// --- Helper Functions ---

// ancestorQuery counts how often $2 appears on the path from $1 up to the root.
const ancestorQuery = `
	WITH RECURSIVE ancestors(id, parent_id) AS (
		SELECT id, parent_id FROM nodes WHERE id = ?
		UNION ALL
		SELECT n.id, n.parent_id FROM nodes n JOIN ancestors a ON n.id = a.parent_id
	)
	SELECT COUNT(*) FROM ancestors WHERE id = ?`

func (s *StoreImpl) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func getNode(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Node, error) {
	var node models.Node
	err := sqlx.GetContext(ctx, q, &node, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return &node, nil
}

func requireFolder(ctx context.Context, q sqlx.QueryerContext, id string) error {
	node, err := getNode(ctx, q, id)
	if err != nil {
		return err
	}
	if !node.IsFolder() {
		return fmt.Errorf("node %s: %w", id, store.ErrNotFolder)
	}
	return nil
}

func insertNode(ctx context.Context, tx *sqlx.Tx, node *models.Node, index *int) error {
	pos, err := nextPosition(ctx, tx, node.ParentID, index)
	if err != nil {
		return err
	}
	node.Index = pos
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO nodes (id, parent_id, title, url, position, date_added)
		VALUES (:id, :parent_id, :title, :url, :position, :date_added)`, node)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// nextPosition returns the slot for a new child of parentID, shifting later
// siblings when index falls inside the current range.
func nextPosition(ctx context.Context, tx *sqlx.Tx, parentID string, index *int) (int, error) {
	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM nodes WHERE parent_id = ?", parentID); err != nil {
		return 0, fmt.Errorf("failed to count children of %s: %w", parentID, err)
	}
	if index == nil || *index >= count {
		return count, nil
	}
	pos := max(*index, 0)
	if _, err := tx.ExecContext(ctx, "UPDATE nodes SET position = position + 1 WHERE parent_id = ? AND position >= ?", parentID, pos); err != nil {
		return 0, fmt.Errorf("failed to shift children of %s: %w", parentID, err)
	}
	return pos, nil
}

// compact closes the gap left at position in parentID.
func compact(ctx context.Context, tx *sqlx.Tx, parentID string, position int) error {
	if _, err := tx.ExecContext(ctx, "UPDATE nodes SET position = position - 1 WHERE parent_id = ? AND position > ?", parentID, position); err != nil {
		return fmt.Errorf("failed to compact children of %s: %w", parentID, err)
	}
	return nil
}

func mapError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// Ensure StoreImpl satisfies the Store interface
var _ store.Store = (*StoreImpl)(nil)
