package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/app"
	"marksweep/internal/models"
	"marksweep/internal/probe"
	"marksweep/internal/store"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// RegisterRoutes mounts the API under /api/v1 plus /health and /metrics.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/scan", h.ScanHandler)
		v1.POST("/check", h.CheckHandler)
		v1.POST("/categorize", h.CategorizeHandler)
		v1.POST("/organize", h.OrganizeHandler)
		v1.POST("/classifier/test", h.TestClassifierHandler)
		v1.GET("/bookmarks", h.ListBookmarksHandler)
		v1.GET("/diagnostics", h.DiagnosticsHandler)
		v1.GET("/jobs", h.ListJobsHandler)
		v1.GET("/jobs/:id", h.GetJobHandler)
	}
	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// ScanRequest is the body of POST /scan.
type ScanRequest struct {
	Organize bool `json:"organize"`
	Async    bool `json:"async"`
}

// URLRequest is the body of POST /check and POST /categorize.
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// OrganizeRequest carries the part of a scan that organize consumes.
type OrganizeRequest struct {
	Categories []models.CategoryGroup `json:"categories"`
	Broken     []models.Bookmark      `json:"broken"`
}

type scanResponse struct {
	Scan         models.ScanResult          `json:"scan"`
	Organization *models.OrganizationResult `json:"organization,omitempty"`
}

func (h *APIHandler) ScanHandler(c *gin.Context) {
	var req ScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	if req.Async {
		jobID, err := h.App.EnqueueScan(c.Request.Context(), req.Organize)
		if err != nil {
			Unavailable(c, "queue_unavailable", fmt.Sprintf("failed to enqueue scan: %v", err))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"job_id": jobID}})
		return
	}

	scan, err := h.App.Scan(c.Request.Context(), nil)
	if err != nil {
		Internal(c, fmt.Sprintf("scan failed after %d bookmarks: %v", scan.Total, err))
		return
	}
	resp := scanResponse{Scan: scan}
	if req.Organize {
		org := h.App.Organize(c.Request.Context(), scan)
		resp.Organization = &org
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *APIHandler) CheckHandler(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.App.CheckAccessibility(c.Request.Context(), req.URL)})
}

func (h *APIHandler) CategorizeHandler(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !probe.ValidURL(req.URL) {
		BadRequest(c, probe.InvalidURLMessage)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.App.Categorize(c.Request.Context(), req.URL)})
}

func (h *APIHandler) OrganizeHandler(c *gin.Context) {
	var req OrganizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res := h.App.Organize(c.Request.Context(), models.ScanResult{Categories: req.Categories, Broken: req.Broken})
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"data": res})
}

func (h *APIHandler) TestClassifierHandler(c *gin.Context) {
	status, err := h.App.TestClassifierConnection(c.Request.Context())
	if err != nil {
		JSONError(c, http.StatusBadGateway, "classifier_unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (h *APIHandler) ListBookmarksHandler(c *gin.Context) {
	bookmarks, err := h.App.Bookmarks(c.Request.Context())
	if err != nil {
		Internal(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bookmarks, "count": len(bookmarks)})
}

// DiagnosticsHandler serves the in-memory ring, or the persisted history
// with ?source=store.
func (h *APIHandler) DiagnosticsHandler(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if c.Query("source") == "store" {
		entries, err := h.App.Store.ListDiagnostics(c.Request.Context(), limit)
		if err != nil {
			Internal(c, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entries})
		return
	}
	entries := h.App.Diagnostics.Entries()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *APIHandler) ListJobsHandler(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	jobs, err := h.App.Store.ListJobs(c.Request.Context(), limit)
	if err != nil {
		Internal(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": jobs})
}

func (h *APIHandler) GetJobHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "Invalid job ID")
		return
	}
	job, err := h.App.Store.GetJob(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		NotFound(c, "job not found")
		return
	}
	if err != nil {
		Internal(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	if err := h.App.Store.Ping(c.Request.Context()); err != nil {
		log.Warnf("Health check failed: %v", err)
		Unavailable(c, "unhealthy", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}
