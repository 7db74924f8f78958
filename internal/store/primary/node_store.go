package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"marksweep/internal/models"
	"marksweep/internal/store"
)

const nodeColumns = "id, COALESCE(parent_id, '') AS parent_id, title, url, position, date_added"

// --- Bookmark Store Implementation ---

// List returns the whole store as a single-rooted forest.
func (s *StoreImpl) List(ctx context.Context) ([]*models.Node, error) {
	rows, err := s.db.Query(ctx, "SELECT "+nodeColumns+" FROM nodes ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	nodes, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Node])
	if err != nil {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}
	return store.BuildForest(nodes), nil
}

// CreateFolder adds a folder under parentID, at index when given or last otherwise.
func (s *StoreImpl) CreateFolder(ctx context.Context, parentID, title string, index *int) (*models.Node, error) {
	if title == "" {
		return nil, fmt.Errorf("folder title is required: %w", models.ErrValidation)
	}
	node := &models.Node{ID: uuid.NewString(), ParentID: parentID, Title: title, DateAdded: time.Now().UTC()}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := requireFolder(ctx, tx, parentID); err != nil {
			return err
		}
		return insertNode(ctx, tx, node, index)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder %q: %w", title, err)
	}
	return node, nil
}

// Move reparents id to the end of newParentID.
func (s *StoreImpl) Move(ctx context.Context, id, newParentID string) error {
	if store.IsRootFolder(id) {
		return fmt.Errorf("cannot move root folder %s: %w", id, store.ErrConflict)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
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
			if err := tx.QueryRow(ctx, ancestorQuery, newParentID, id).Scan(&hits); err != nil {
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
		if _, err := tx.Exec(ctx, "UPDATE nodes SET parent_id = $1, position = $2 WHERE id = $3", newParentID, pos, id); err != nil {
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
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		node, err := getNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if node.IsFolder() {
			var children int
			if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM nodes WHERE parent_id = $1", id).Scan(&children); err != nil {
				return fmt.Errorf("failed to count children of %s: %w", id, err)
			}
			if children > 0 {
				return fmt.Errorf("folder %s is not empty: %w", id, store.ErrConflict)
			}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM nodes WHERE id = $1", id); err != nil {
			return fmt.Errorf("failed to remove node %s: %w", id, err)
		}
		return compact(ctx, tx, node.ParentID, node.Index)
	})
}

// Import copies nodes under parentID, merging folders by title and skipping
// bookmarks whose URL is already present. It returns the number added.
func (s *StoreImpl) Import(ctx context.Context, parentID string, nodes []*models.Node) (int, error) {
	imported := 0
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := requireFolder(ctx, tx, parentID); err != nil {
			return err
		}

		var insert func(parentID string, nodes []*models.Node) error
		insert = func(parentID string, nodes []*models.Node) error {
			for _, n := range nodes {
				if n.IsFolder() {
					var folderID string
					err := tx.QueryRow(ctx, "SELECT id FROM nodes WHERE parent_id = $1 AND title = $2 AND url = ''", parentID, n.Title).Scan(&folderID)
					if errors.Is(err, pgx.ErrNoRows) {
						folder := &models.Node{ID: uuid.NewString(), ParentID: parentID, Title: n.Title, DateAdded: dateOrNow(n.DateAdded)}
						if err := insertNode(ctx, tx, folder, nil); err != nil {
							return err
						}
						folderID = folder.ID
					} else if err != nil {
						return fmt.Errorf("failed to look up folder %q: %w", n.Title, err)
					}
					if err := insert(folderID, n.Children); err != nil {
						return err
					}
					continue
				}

				var exists bool
				if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM nodes WHERE parent_id = $1 AND url = $2)", parentID, n.URL).Scan(&exists); err != nil {
					return fmt.Errorf("failed to look up %s: %w", n.URL, err)
				}
				if exists {
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

// ancestorQuery counts how often $2 appears on the path from $1 up to the root.
const ancestorQuery = `
	WITH RECURSIVE ancestors(id, parent_id) AS (
		SELECT id, parent_id FROM nodes WHERE id = $1
		UNION ALL
		SELECT n.id, n.parent_id FROM nodes n JOIN ancestors a ON n.id = a.parent_id
	)
	SELECT COUNT(*) FROM ancestors WHERE id = $2`

func getNode(ctx context.Context, tx pgx.Tx, id string) (*models.Node, error) {
	rows, err := tx.Query(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	node, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Node])
	if err != nil {
		return nil, notFound(err, "node "+id)
	}
	return node, nil
}

func requireFolder(ctx context.Context, tx pgx.Tx, id string) error {
	node, err := getNode(ctx, tx, id)
	if err != nil {
		return err
	}
	if !node.IsFolder() {
		return fmt.Errorf("node %s: %w", id, store.ErrNotFolder)
	}
	return nil
}

func insertNode(ctx context.Context, tx pgx.Tx, node *models.Node, index *int) error {
	pos, err := nextPosition(ctx, tx, node.ParentID, index)
	if err != nil {
		return err
	}
	node.Index = pos
	_, err = tx.Exec(ctx, `
		INSERT INTO nodes (id, parent_id, title, url, position, date_added)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		node.ID, node.ParentID, node.Title, node.URL, node.Index, node.DateAdded)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func nextPosition(ctx context.Context, tx pgx.Tx, parentID string, index *int) (int, error) {
	var count int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM nodes WHERE parent_id = $1", parentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count children of %s: %w", parentID, err)
	}
	if index == nil || *index >= count {
		return count, nil
	}
	pos := max(*index, 0)
	if _, err := tx.Exec(ctx, "UPDATE nodes SET position = position + 1 WHERE parent_id = $1 AND position >= $2", parentID, pos); err != nil {
		return 0, fmt.Errorf("failed to shift children of %s: %w", parentID, err)
	}
	return pos, nil
}

func compact(ctx context.Context, tx pgx.Tx, parentID string, position int) error {
	if _, err := tx.Exec(ctx, "UPDATE nodes SET position = position - 1 WHERE parent_id = $1 AND position > $2", parentID, position); err != nil {
		return fmt.Errorf("failed to compact children of %s: %w", parentID, err)
	}
	return nil
}

func dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
