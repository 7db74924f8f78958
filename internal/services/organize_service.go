package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"marksweep/internal/diagnostics"
	"marksweep/internal/metrics"
	"marksweep/internal/models"
	"marksweep/internal/retry"
	"marksweep/internal/store"
)

const (
	DefaultFolderTitle = "Organized Bookmarks"

	folderAttempts = 3
	moveAttempts   = 2
	removeAttempts = 2
)

// OrganizeOptions names the destination of a reorganization.
type OrganizeOptions struct {
	RootFolderID string
	FolderTitle  string
}

// OrganizeService moves scanned bookmarks into category folders and removes
// broken ones. Completed steps are never rolled back.
type OrganizeService struct {
	store store.BookmarkStore
	exec  *retry.Executor
	diag  *diagnostics.Log
	opts  OrganizeOptions
}

// NewOrganizeService creates an OrganizeService.
func NewOrganizeService(bs store.BookmarkStore, exec *retry.Executor, diag *diagnostics.Log, opts OrganizeOptions) *OrganizeService {
	if opts.RootFolderID == "" {
		opts.RootFolderID = store.BookmarksBarID
	}
	if opts.FolderTitle == "" {
		opts.FolderTitle = DefaultFolderTitle
	}
	return &OrganizeService{store: bs, exec: exec, diag: diag, opts: opts}
}

// folderIndex maps existing folders so repeated runs reuse them.
type folderIndex struct {
	topID    string
	children map[string]string // title -> id under the top folder
}

// Apply reorganizes the store. Failure to obtain the top-level folder is fatal;
// every other failure is recorded and the run continues.
func (s *OrganizeService) Apply(ctx context.Context, categories []models.CategoryGroup, broken []models.Bookmark, settings models.Settings) models.OrganizationResult {
	result := models.OrganizationResult{Errors: []string{}}

	if settings.CreateFolders && hasBookmarks(categories) {
		idx := s.indexExisting(ctx)

		topID, err := s.ensureTopFolder(ctx, idx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to create organization folder %q: %v", s.opts.FolderTitle, err))
			s.record(ctx, "Organization-Folder", err, map[string]any{"title": s.opts.FolderTitle})
			result.Success = false
			return result
		}

		for _, group := range categories {
			if len(group.Bookmarks) == 0 {
				continue
			}
			s.organizeGroup(ctx, topID, idx, group, &result)
		}
	}

	if settings.AutoRemoveBroken {
		for _, b := range broken {
			s.removeBroken(ctx, b, &result)
		}
	}

	result.Finalize()
	log.Infof("Organization finished: success=%v organized=%d removed=%d errors=%d",
		result.Success, result.Organized, result.Removed, len(result.Errors))
	return result
}

func (s *OrganizeService) organizeGroup(ctx context.Context, topID string, idx folderIndex, group models.CategoryGroup, result *models.OrganizationResult) {
	folderID, ok := idx.children[group.Name]
	if !ok || idx.topID != topID {
		folder, err := retry.Do(ctx, s.exec, "Create-Category:"+group.Name, folderAttempts, func(ctx context.Context) (*models.Node, error) {
			return s.store.CreateFolder(ctx, topID, group.Name, nil)
		})
		if err != nil {
			metrics.OrganizeActions.WithLabelValues("create_folder", "error").Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to create category %q: %v", group.Name, err))
			s.record(ctx, "Category-Creation", err, map[string]any{"categoryName": group.Name})
			return
		}
		metrics.OrganizeActions.WithLabelValues("create_folder", "ok").Inc()
		folderID = folder.ID
	}

	for _, b := range group.Bookmarks {
		_, err := retry.Do(ctx, s.exec, "Move-Bookmark:"+b.ID, moveAttempts, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.Move(ctx, b.ID, folderID)
		})
		if err != nil {
			metrics.OrganizeActions.WithLabelValues("move", "error").Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to move bookmark %q: %v", b.Title, err))
			s.record(ctx, "Bookmark-Move", err, map[string]any{"bookmarkId": b.ID, "title": b.Title})
			continue
		}
		metrics.OrganizeActions.WithLabelValues("move", "ok").Inc()
		result.Organized++
	}
}

func (s *OrganizeService) removeBroken(ctx context.Context, b models.Bookmark, result *models.OrganizationResult) {
	_, err := retry.Do(ctx, s.exec, "Remove-Broken:"+b.ID, removeAttempts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.Remove(ctx, b.ID)
	})
	if err != nil {
		metrics.OrganizeActions.WithLabelValues("remove", "error").Inc()
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to remove broken bookmark %q: %v", b.Title, err))
		s.record(ctx, "Bookmark-Removal", err, map[string]any{"bookmarkId": b.ID, "title": b.Title})
		return
	}
	metrics.OrganizeActions.WithLabelValues("remove", "ok").Inc()
	result.Removed++
}

func (s *OrganizeService) ensureTopFolder(ctx context.Context, idx folderIndex) (string, error) {
	if idx.topID != "" {
		log.Debugf("Reusing organization folder %s", idx.topID)
		return idx.topID, nil
	}
	index := 0
	folder, err := retry.Do(ctx, s.exec, "Create-Organization-Folder", folderAttempts, func(ctx context.Context) (*models.Node, error) {
		return s.store.CreateFolder(ctx, s.opts.RootFolderID, s.opts.FolderTitle, &index)
	})
	if err != nil {
		metrics.OrganizeActions.WithLabelValues("create_folder", "error").Inc()
		return "", err
	}
	metrics.OrganizeActions.WithLabelValues("create_folder", "ok").Inc()
	return folder.ID, nil
}

// indexExisting finds a previous organization folder and its category folders.
// A listing failure only disables reuse.
func (s *OrganizeService) indexExisting(ctx context.Context) folderIndex {
	idx := folderIndex{children: map[string]string{}}

	forest, err := s.store.List(ctx)
	if err != nil {
		log.Warnf("Could not list bookmarks, existing folders will not be reused: %v", err)
		return idx
	}

	root := findNode(forest, s.opts.RootFolderID)
	if root == nil {
		return idx
	}
	for _, child := range root.Children {
		if child.IsFolder() && child.Title == s.opts.FolderTitle {
			idx.topID = child.ID
			for _, sub := range child.Children {
				if sub.IsFolder() {
					if _, seen := idx.children[sub.Title]; !seen {
						idx.children[sub.Title] = sub.ID
					}
				}
			}
			break
		}
	}
	return idx
}

func (s *OrganizeService) record(ctx context.Context, label string, err error, fields map[string]any) {
	if s.diag != nil {
		s.diag.Record(ctx, label, err, fields)
	}
}

func findNode(nodes []*models.Node, id string) *models.Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if found := findNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

func hasBookmarks(groups []models.CategoryGroup) bool {
	for _, g := range groups {
		if len(g.Bookmarks) > 0 {
			return true
		}
	}
	return false
}
