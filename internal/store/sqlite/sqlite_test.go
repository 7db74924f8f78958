package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksweep/internal/diagnostics"
	"marksweep/internal/models"
	"marksweep/internal/retry"
	"marksweep/internal/services"
	"marksweep/internal/store"
)

func setupTestStore(t *testing.T) *StoreImpl {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func childTitles(t *testing.T, s *StoreImpl, parentID string) []string {
	t.Helper()
	forest, err := s.List(context.Background())
	require.NoError(t, err)
	parent := find(forest, parentID)
	require.NotNil(t, parent, "parent %s", parentID)
	var titles []string
	for _, c := range parent.Children {
		titles = append(titles, c.Title)
	}
	return titles
}

func find(nodes []*models.Node, id string) *models.Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if hit := find(n.Children, id); hit != nil {
			return hit
		}
	}
	return nil
}

func TestNewSQLiteStore_SeedsRoots(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Ping(context.Background()))

	forest, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, store.RootID, forest[0].ID)
	assert.Equal(t, []string{"Bookmarks Bar", "Other Bookmarks"}, childTitles(t, s, store.RootID))
}

func TestCreateFolder_IndexShiftsSiblings(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFolder(ctx, store.BookmarksBarID, "A", nil)
	require.NoError(t, err)
	_, err = s.CreateFolder(ctx, store.BookmarksBarID, "B", nil)
	require.NoError(t, err)
	zero := 0
	first, err := s.CreateFolder(ctx, store.BookmarksBarID, "Organized Bookmarks", &zero)
	require.NoError(t, err)

	assert.Equal(t, 0, first.Index)
	assert.Equal(t, []string{"Organized Bookmarks", "A", "B"}, childTitles(t, s, store.BookmarksBarID))
}

func TestCreateFolder_Errors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFolder(ctx, store.BookmarksBarID, "Dup", nil)
	require.NoError(t, err)
	_, err = s.CreateFolder(ctx, store.BookmarksBarID, "Dup", nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = s.CreateFolder(ctx, "missing", "X", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateFolder(ctx, store.BookmarksBarID, "", nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	n, err := s.Import(ctx, store.OtherBookmarksID, []*models.Node{{Title: "Go", URL: "https://go.dev"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	link := find(mustList(t, s), store.OtherBookmarksID).Children[0]
	_, err = s.CreateFolder(ctx, link.ID, "Inside a link", nil)
	assert.ErrorIs(t, err, store.ErrNotFolder)
}

func mustList(t *testing.T, s *StoreImpl) []*models.Node {
	t.Helper()
	forest, err := s.List(context.Background())
	require.NoError(t, err)
	return forest
}

func TestMove(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	parent, err := s.CreateFolder(ctx, store.BookmarksBarID, "Parent", nil)
	require.NoError(t, err)
	child, err := s.CreateFolder(ctx, parent.ID, "Child", nil)
	require.NoError(t, err)
	_, err = s.Import(ctx, store.OtherBookmarksID, []*models.Node{
		{Title: "one", URL: "https://one.example"},
		{Title: "two", URL: "https://two.example"},
		{Title: "three", URL: "https://three.example"},
	})
	require.NoError(t, err)
	links := find(mustList(t, s), store.OtherBookmarksID).Children

	require.NoError(t, s.Move(ctx, links[0].ID, child.ID))
	assert.Equal(t, []string{"one"}, childTitles(t, s, child.ID))
	assert.Equal(t, []string{"two", "three"}, childTitles(t, s, store.OtherBookmarksID))
	rest := find(mustList(t, s), store.OtherBookmarksID).Children
	assert.Equal(t, 0, rest[0].Index, "positions are compacted after a move")

	require.NoError(t, s.Move(ctx, links[0].ID, child.ID), "moving into the current parent is a no-op")

	assert.ErrorIs(t, s.Move(ctx, parent.ID, child.ID), store.ErrConflict)
	assert.ErrorIs(t, s.Move(ctx, parent.ID, parent.ID), store.ErrConflict)
	assert.ErrorIs(t, s.Move(ctx, store.BookmarksBarID, child.ID), store.ErrConflict)
	assert.ErrorIs(t, s.Move(ctx, "nope", child.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.Move(ctx, child.ID, links[1].ID), store.ErrNotFolder)
}

func TestRemove(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	folder, err := s.CreateFolder(ctx, store.BookmarksBarID, "Keep", nil)
	require.NoError(t, err)
	_, err = s.Import(ctx, folder.ID, []*models.Node{{Title: "x", URL: "https://x.example"}})
	require.NoError(t, err)
	link := find(mustList(t, s), folder.ID).Children[0]

	assert.ErrorIs(t, s.Remove(ctx, folder.ID), store.ErrConflict)
	assert.ErrorIs(t, s.Remove(ctx, store.OtherBookmarksID), store.ErrConflict)
	require.NoError(t, s.Remove(ctx, link.ID))
	assert.ErrorIs(t, s.Remove(ctx, link.ID), store.ErrNotFound)
	require.NoError(t, s.Remove(ctx, folder.ID))
}

func TestImport_MergesAndSkipsDuplicates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	added := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

	export := []*models.Node{
		{Title: "Dev", Children: []*models.Node{
			{Title: "GitHub", URL: "https://github.com", DateAdded: added},
			{Title: "GitLab", URL: "https://gitlab.com"},
		}},
		{Title: "BBC", URL: "https://bbc.com"},
	}

	n, err := s.Import(ctx, store.BookmarksBarID, export)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Import(ctx, store.BookmarksBarID, export)
	require.NoError(t, err)
	assert.Zero(t, n)

	forest := mustList(t, s)
	bookmarks := models.FlattenBookmarks(forest)
	require.Len(t, bookmarks, 3)
	assert.Equal(t, "GitHub", bookmarks[0].Title)
	assert.True(t, added.Equal(bookmarks[0].DateAdded))
	assert.Equal(t, []string{"Dev", "BBC"}, childTitles(t, s, store.BookmarksBarID))
}

func TestDiagnostics_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	diag := diagnostics.NewLog(2)
	diag.SetSink(s)
	diag.Record(ctx, "URL-Check:https://a", errors.New("first"), map[string]any{"attempt": 1})
	diag.Record(ctx, "URL-Check:https://b", errors.New("second"), nil)
	diag.Record(ctx, "URL-Check:https://c", errors.New("third"), nil)

	entries, err := s.ListDiagnostics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3, "the sink keeps entries the ring evicted")
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, "first", entries[2].Message)
	assert.EqualValues(t, 1, entries[2].Fields["attempt"])
	assert.Equal(t, 2, diag.Len())

	limited, err := s.ListDiagnostics(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestJobs_Lifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	params := store.JobRecordParams{JobID: id, TaskType: "bookmarks:scan", Payload: []byte(`{"organize":true}`), Queue: "default", Status: models.JobStatusEnqueued}
	require.NoError(t, s.RecordJobEnqueue(ctx, params))
	require.NoError(t, s.RecordJobEnqueue(ctx, params), "recording twice is a no-op")

	require.NoError(t, s.UpdateJobStatus(ctx, id, models.JobStatusRunning, nil))
	require.NoError(t, s.UpdateJobStatus(ctx, id, models.JobStatusCompleted, []byte(`{"total":2}`)))

	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"organize":true}`, string(job.Payload))
	assert.JSONEq(t, `{"total":2}`, string(job.Result))

	require.NoError(t, s.UpdateJobStatus(ctx, id, models.JobStatusCompleted, nil))
	job, err = s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(job.Result), "nil result keeps the stored one")

	jobs, err := s.ListJobs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	_, err = s.GetJob(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateJobStatus(ctx, uuid.New(), models.JobStatusFailed, nil), store.ErrNotFound)
}

func TestOrganize_AgainstSQLite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Import(ctx, store.OtherBookmarksID, []*models.Node{
		{Title: "GitHub", URL: "https://github.com"},
		{Title: "BBC", URL: "https://bbc.com"},
		{Title: "Dead", URL: "http://dead.invalid"},
	})
	require.NoError(t, err)
	links := find(mustList(t, s), store.OtherBookmarksID).Children

	groups := []models.CategoryGroup{
		{Name: "Development", Bookmarks: []models.Bookmark{models.BookmarkFromNode(links[0])}},
		{Name: "News", Bookmarks: []models.Bookmark{models.BookmarkFromNode(links[1])}},
	}
	broken := []models.Bookmark{models.BookmarkFromNode(links[2])}
	settings := models.Settings{CreateFolders: true, AutoRemoveBroken: true}
	exec := retry.NewExecutor(retry.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1, MaxAttempts: 3}, nil)
	svc := services.NewOrganizeService(s, exec, nil, services.OrganizeOptions{})

	res := svc.Apply(ctx, groups, broken, settings)
	assert.Equal(t, models.OrganizationResult{Success: true, Organized: 2, Removed: 1, Errors: []string{}}, res)

	bar := find(mustList(t, s), store.BookmarksBarID)
	require.NotEmpty(t, bar.Children)
	top := bar.Children[0]
	assert.Equal(t, services.DefaultFolderTitle, top.Title)
	assert.Equal(t, []string{"Development", "News"}, childTitles(t, s, top.ID))

	again := svc.Apply(ctx, groups, nil, settings)
	assert.True(t, again.Success)
	assert.Empty(t, again.Errors)
	assert.Equal(t, []string{"Development", "News"}, childTitles(t, s, top.ID))
	assert.Len(t, find(mustList(t, s), store.BookmarksBarID).Children, 1)
}
