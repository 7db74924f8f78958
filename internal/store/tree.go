package store

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/models"
)

// BuildForest links flat rows into trees. Rows must be ordered by position;
// nodes without a parent become roots.
func BuildForest(nodes []*models.Node) []*models.Node {
	byID := make(map[string]*models.Node, len(nodes))
	for _, n := range nodes {
		n.Children = nil
		byID[n.ID] = n
	}

	var roots []*models.Node
	for _, n := range nodes {
		parent, ok := byID[n.ParentID]
		if n.ParentID == "" || !ok {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots
}

// IsRootFolder reports whether id names one of the seeded folders that can
// never be moved or removed.
func IsRootFolder(id string) bool {
	return id == RootID || id == BookmarksBarID || id == OtherBookmarksID
}

// goose keeps its dialect and filesystem in package globals.
var migrateMu sync.Mutex

// Migrate applies the goose migrations found under dir in fsys.
func Migrate(db *sql.DB, dialect string, fsys fs.FS, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(log.StandardLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect %s: %w", dialect, err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}
