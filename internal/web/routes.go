package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sstent/runlog/internal/database"
	"github.com/sstent/runlog/internal/export"
	"github.com/sstent/runlog/internal/ingest"
	"github.com/sstent/runlog/internal/models"
	"github.com/sstent/runlog/internal/monitoring"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Uploader ingests one uploaded file.
type Uploader interface {
	IngestUpload(ctx context.Context, filename string, r io.Reader) (ingest.Summary, error)
}

type WebHandler struct {
	db             database.Database
	uploader       Uploader
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewWebHandler(db database.Database, uploader Uploader, logger *slog.Logger, maxUploadBytes int64) *WebHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebHandler{
		db:             db,
		uploader:       uploader,
		logger:         logger.With("component", "web"),
		maxUploadBytes: maxUploadBytes,
	}
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(h *WebHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

func (h *WebHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.POST("/upload", h.Upload)
	router.GET("/runs", h.RunList)
	router.GET("/runs/:id", h.RunDetail)
	router.GET("/imports", h.ImportList)
	router.GET("/export.csv", h.ExportCSV)
}

func (h *WebHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *WebHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	summary, err := h.uploader.IngestUpload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		if ingest.IsUnsupported(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("upload failed", "filename", fileHeader.Filename, "error", err)
		monitoring.Capture(err, map[string]string{"filename": fileHeader.Filename})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *WebHandler) RunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filters := database.RunFilters{
		Source:    models.Source(c.Query("source")),
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if from, ok := queryTime(c, "from"); ok {
		filters.DateFrom = &from
	}
	if to, ok := queryTime(c, "to"); ok {
		filters.DateTo = &to
	}

	runs, err := h.db.ListRuns(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}

	c.JSON(http.StatusOK, runs)
}

func (h *WebHandler) RunDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	run, err := h.db.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		h.logger.Error("get run failed", "id", id, "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *WebHandler) ImportList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}

	records, err := h.db.ListImports(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list imports failed", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []database.ImportRecord{}
	}

	c.JSON(http.StatusOK, records)
}

func (h *WebHandler) ExportCSV(c *gin.Context) {
	runs, err := h.db.ListRuns(c.Request.Context(), database.RunFilters{SortOrder: "asc"})
	if err != nil {
		h.logger.Error("export failed", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="runs.csv"`)
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, runs); err != nil {
		h.logger.Error("export write failed", "error", err)
	}
}

func queryTime(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
