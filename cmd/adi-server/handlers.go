package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adi-index/adi/internal/indexer"
)

// registerRoutes wires the HTTP surface to the index core. The handlers
// only translate requests and serialize results; all logic lives in the
// core.
func registerRoutes(router *gin.Engine, manager *indexer.Manager) {
	h := &handlers{manager: manager}

	router.GET("/", h.health)
	router.GET("/health", h.health)
	router.GET("/status", h.status)
	router.POST("/index", h.index)
	router.POST("/index/cancel", h.cancel)
	router.GET("/search", h.search)
	router.GET("/symbols", h.symbols)
	router.GET("/files", h.files)
}

type handlers struct {
	manager *indexer.Manager
}

// health reports process liveness. It touches no workspace state.
func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "adi-server",
	})
}

func (h *handlers) status(c *gin.Context) {
	status, err := h.manager.Status(defaultWorkspace)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (h *handlers) index(c *gin.Context) {
	status, err := h.manager.StartBuild(c.Request.Context(), defaultWorkspace)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": status})
}

func (h *handlers) cancel(c *gin.Context) {
	if err := h.manager.Cancel(defaultWorkspace); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": "cancellation requested"})
}

func (h *handlers) search(c *gin.Context) {
	query := indexer.Query{Text: c.Query("q")}
	if query.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter 'q'"})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		query.Limit = limit
	}
	if kind := c.Query("kind"); kind != "" {
		if !indexer.ValidKind(indexer.SymbolKind(kind)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown symbol kind"})
			return
		}
		query.Kinds = []indexer.SymbolKind{indexer.SymbolKind(kind)}
	}

	results, err := h.manager.Search(c.Request.Context(), defaultWorkspace, query)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}

func (h *handlers) symbols(c *gin.Context) {
	filter := indexer.SymbolFilter{PathPrefix: c.Query("path")}
	if kind := c.Query("kind"); kind != "" {
		if !indexer.ValidKind(indexer.SymbolKind(kind)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown symbol kind"})
			return
		}
		filter.Kinds = []indexer.SymbolKind{indexer.SymbolKind(kind)}
	}

	symbols, err := h.manager.ListSymbols(defaultWorkspace, filter)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": symbols})
}

func (h *handlers) files(c *gin.Context) {
	files, err := h.manager.ListFiles(defaultWorkspace)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": files})
}

// handleError maps core errors to client-facing status codes.
func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, indexer.ErrNoIndex), errors.Is(err, indexer.ErrNoJob):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, indexer.ErrInvalidWorkspace):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, indexer.ErrUnknownWorkspace):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
