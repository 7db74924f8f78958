package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"marksweep/internal/models"
	"marksweep/internal/store"
)

// memStore is an in-memory BookmarkStore with failure injection.
type memStore struct {
	mu     sync.Mutex
	nodes  map[string]*models.Node
	nextID int

	failCreate map[string]int // folder title -> remaining failures, -1 forever
	failMove   map[string]int // bookmark id -> remaining failures, -1 forever
	failRemove map[string]int
	listErr    error

	creates int
	moves   int
}

func newMemStore() *memStore {
	s := &memStore{
		nodes:      map[string]*models.Node{},
		nextID:     100,
		failCreate: map[string]int{},
		failMove:   map[string]int{},
		failRemove: map[string]int{},
	}
	s.nodes[store.RootID] = &models.Node{ID: store.RootID}
	s.nodes[store.BookmarksBarID] = &models.Node{ID: store.BookmarksBarID, ParentID: store.RootID, Title: "Bookmarks Bar"}
	s.nodes[store.OtherBookmarksID] = &models.Node{ID: store.OtherBookmarksID, ParentID: store.RootID, Title: "Other Bookmarks", Index: 1}
	return s
}

func (s *memStore) addBookmark(id, title, url string) models.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &models.Node{ID: id, ParentID: store.OtherBookmarksID, Title: title, URL: url, Index: len(s.nodes)}
	s.nodes[id] = n
	return models.BookmarkFromNode(n)
}

func (s *memStore) parentOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok {
		return n.ParentID
	}
	return ""
}

func (s *memStore) titleOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok {
		return n.Title
	}
	return ""
}

func (s *memStore) childrenOf(parentID string) []*models.Node {
	var out []*models.Node
	for _, n := range s.nodes {
		if n.ParentID == parentID && n.ID != store.RootID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memStore) List(ctx context.Context) ([]*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var build func(id string) *models.Node
	build = func(id string) *models.Node {
		n := *s.nodes[id]
		n.Children = nil
		for _, c := range s.childrenOf(id) {
			n.Children = append(n.Children, build(c.ID))
		}
		return &n
	}
	return []*models.Node{build(store.RootID)}, nil
}

func consume(failures map[string]int, key string) bool {
	left, ok := failures[key]
	if !ok || left == 0 {
		return false
	}
	if left > 0 {
		failures[key] = left - 1
	}
	return true
}

func (s *memStore) CreateFolder(ctx context.Context, parentID, title string, index *int) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if consume(s.failCreate, title) {
		return nil, errors.New("quota exceeded")
	}
	parent, ok := s.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("parent %s: %w", parentID, store.ErrNotFound)
	}
	if !parent.IsFolder() {
		return nil, store.ErrNotFolder
	}
	s.nextID++
	n := &models.Node{ID: fmt.Sprintf("%d", s.nextID), ParentID: parentID, Title: title, Index: s.nextID}
	if index != nil {
		n.Index = *index - 1
	}
	s.nodes[n.ID] = n
	cp := *n
	return &cp, nil
}

func (s *memStore) Move(ctx context.Context, id, newParentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves++
	if consume(s.failMove, id) {
		return errors.New("bookmark is locked")
	}
	n, ok := s.nodes[id]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := s.nodes[newParentID]; !ok {
		return store.ErrNotFound
	}
	n.ParentID = newParentID
	return nil
}

func (s *memStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if consume(s.failRemove, id) {
		return errors.New("remove rejected")
	}
	if _, ok := s.nodes[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.nodes, id)
	return nil
}

var _ store.BookmarkStore = (*memStore)(nil)
