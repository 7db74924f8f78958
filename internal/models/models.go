package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Categorization methods reported on CategoryResult.Method.
const (
	MethodLLM      = "llm-analysis"
	MethodDomain   = "domain-based"
	MethodFallback = "fallback"
)

// CategoryOther is the catch-all category used by every fallback path.
const CategoryOther = "Other"

// Categories is the closed set the external classifier is asked to choose from.
var Categories = []string{
	"Development",
	"Entertainment",
	"Shopping",
	"Search/Tools",
	"Social Media",
	"Professional",
	"News",
	"Reference",
	"Community",
	"Productivity",
	"Education",
	CategoryOther,
}

// Node is one entry of the bookmark store forest. A node without a URL is a folder.
type Node struct {
	ID        string    `db:"id" json:"id"`
	ParentID  string    `db:"parent_id" json:"parentId,omitempty"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url,omitempty"`
	Index     int       `db:"position" json:"index"`
	DateAdded time.Time `db:"date_added" json:"dateAdded"`
	Children  []*Node   `db:"-" json:"children,omitempty"`
}

// IsFolder reports whether the node can hold children.
func (n *Node) IsFolder() bool { return n.URL == "" }

// Bookmark is a transient view of a store node carried through the pipeline.
// The decoration fields are filled by the scan; the store never sees them.
type Bookmark struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	URL       string    `json:"url" yaml:"url"`
	ParentID  string    `json:"parentId,omitempty" yaml:"parent_id,omitempty"`
	DateAdded time.Time `json:"dateAdded,omitempty" yaml:"date_added,omitempty"`

	Category    string  `json:"category,omitempty" yaml:"category,omitempty"`
	Confidence  float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Method      string  `json:"method,omitempty" yaml:"method,omitempty"`

	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	Permanent    bool   `json:"permanent,omitempty" yaml:"permanent,omitempty"`
	NetworkError bool   `json:"networkError,omitempty" yaml:"network_error,omitempty"`
}

// WithCategory returns a copy of b decorated with r.
func (b Bookmark) WithCategory(r CategoryResult) Bookmark {
	b.Category = r.Category
	b.Confidence = r.Confidence
	b.Description = r.Description
	b.Method = r.Method
	return b
}

// WithFailure returns a copy of b decorated with the failed probe result.
func (b Bookmark) WithFailure(r AccessibilityResult) Bookmark {
	b.Error = r.Error
	b.Permanent = r.Permanent
	b.NetworkError = r.NetworkError
	return b
}

// BookmarkFromNode converts a store node, defaulting an empty title to the URL.
func BookmarkFromNode(n *Node) Bookmark {
	title := n.Title
	if title == "" {
		title = n.URL
	}
	return Bookmark{
		ID:        n.ID,
		Title:     title,
		URL:       n.URL,
		ParentID:  n.ParentID,
		DateAdded: n.DateAdded,
	}
}

// FlattenBookmarks walks the forest depth-first and returns every http(s) bookmark
// in store order. Folders and non-web links (javascript:, file:, ...) are skipped.
func FlattenBookmarks(forest []*Node) []Bookmark {
	var out []Bookmark
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if strings.HasPrefix(n.URL, "http") {
				out = append(out, BookmarkFromNode(n))
			}
			if len(n.Children) > 0 {
				walk(n.Children)
			}
		}
	}
	walk(forest)
	return out
}

// AccessibilityResult is the outcome of probing a single URL.
type AccessibilityResult struct {
	Accessible   bool   `json:"accessible"`
	Status       int    `json:"status,omitempty"`
	Method       string `json:"method,omitempty"`
	Error        string `json:"error,omitempty"`
	Permanent    bool   `json:"permanent,omitempty"`
	NetworkError bool   `json:"networkError,omitempty"`
}

// CategoryResult is what the categorizer assigns to a URL.
type CategoryResult struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	Method      string  `json:"method"`
}

// CategoryGroup is one bucket of a scan, kept in first-seen order.
type CategoryGroup struct {
	Name      string     `json:"name" yaml:"name"`
	Bookmarks []Bookmark `json:"bookmarks" yaml:"bookmarks"`
}

// ScanResult partitions the scanned bookmarks into accessible and broken sets.
type ScanResult struct {
	Accessible []Bookmark      `json:"accessible"`
	Broken     []Bookmark      `json:"broken"`
	Total      int             `json:"total"`
	Categories []CategoryGroup `json:"categories"`
	Errors     []string        `json:"errors"`
}

// AddAccessible appends b to the accessible set and to its category bucket.
func (r *ScanResult) AddAccessible(b Bookmark) {
	r.Accessible = append(r.Accessible, b)
	for i := range r.Categories {
		if r.Categories[i].Name == b.Category {
			r.Categories[i].Bookmarks = append(r.Categories[i].Bookmarks, b)
			return
		}
	}
	r.Categories = append(r.Categories, CategoryGroup{Name: b.Category, Bookmarks: []Bookmark{b}})
}

// AddBroken appends b to the broken set.
func (r *ScanResult) AddBroken(b Bookmark) {
	r.Broken = append(r.Broken, b)
}

// Group returns the bookmarks of the named category, or nil.
func (r *ScanResult) Group(name string) []Bookmark {
	for _, g := range r.Categories {
		if g.Name == name {
			return g.Bookmarks
		}
	}
	return nil
}

// OrganizationResult aggregates the outcome of a reorganization.
type OrganizationResult struct {
	Success        bool     `json:"success" yaml:"success"`
	Organized      int      `json:"organized" yaml:"organized"`
	Removed        int      `json:"removed" yaml:"removed"`
	Errors         []string `json:"errors" yaml:"errors"`
	PartialSuccess bool     `json:"partialSuccess" yaml:"partial_success"`
}

// Finalize derives Success and PartialSuccess from the counters and errors.
func (r *OrganizationResult) Finalize() {
	r.Success = r.Organized+r.Removed > 0 || len(r.Errors) == 0
	r.PartialSuccess = len(r.Errors) > 0 && r.Success
}

// Settings is the read-only configuration consumed by a pipeline run.
type Settings struct {
	Provider                     string `json:"provider,omitempty"`
	APIBaseURL                   string `json:"apiBaseUrl"`
	APIKey                       string `json:"-"`
	ModelName                    string `json:"modelName"`
	EnableExternalClassification bool   `json:"enableExternalClassification"`
	AutoRemoveBroken             bool   `json:"autoRemoveBroken"`
	CreateFolders                bool   `json:"createFolders"`
	SelectedLanguage             string `json:"selectedLanguage"`
}

// ClassifierStatus reports a successful classifier connection test.
type ClassifierStatus struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Job mirrors the jobs table used to track queued scans.
type Job struct {
	JobID     uuid.UUID       `db:"job_id" json:"jobId"`
	TaskType  string          `db:"task_type" json:"taskType"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Queue     string          `db:"queue" json:"queue"`
	Status    string          `db:"status" json:"status"`
	Result    json.RawMessage `db:"result" json:"result,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}
